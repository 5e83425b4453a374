package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// colorScheme defines consistent colors for entry outcomes.
// Green: matches found
// Red: failed pipeline
// Yellow: degraded result (conversion failed)
// Cyan: counts and labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
}

// formatColorizedOutcome is formatOutcome with color coding.
// Colors are disabled automatically when output is not a TTY.
func formatColorizedOutcome(result models.EntryResult, scheme *colorScheme) string {
	lines := scheme.label.Sprintf("%d report lines", result.ReportLines)

	switch {
	case result.Err != nil:
		return scheme.fail.Sprintf("FAILED (%s)", pipeline.ErrorKind(result.Err))
	case result.ConvertFailed:
		return fmt.Sprintf("%s, %s", scheme.warn.Sprint("CONVERT FAILED"), lines)
	case result.Topology.Kind == models.MetadataPlusFilter:
		matched := scheme.label.Sprintf("%d matched", result.Matched)
		if result.Matched > 0 {
			matched = scheme.success.Sprintf("%d matched", result.Matched)
		}
		return fmt.Sprintf("%s, %s", matched, lines)
	default:
		return lines
	}
}
