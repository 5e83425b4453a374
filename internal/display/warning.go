// Package display renders user-facing terminal notices.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Entries    []string // Related directory entries (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Entries) > 0 {
		if len(w.Entries) == 1 {
			b.WriteString("    Affected entry:\n")
		} else {
			b.WriteString("    Affected entries:\n")
		}
		for i, entry := range w.Entries {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, entry)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	color.New(color.FgYellow).Fprint(out, b.String())
}

// WarnFailedEntries builds the end-of-run warning for entries whose
// pipeline failed. ok is false when nothing failed.
func WarnFailedEntries(summary models.Summary, logFile string) (w Warning, ok bool) {
	for _, r := range summary.Results {
		if r.Err != nil {
			w.Entries = append(w.Entries, fmt.Sprintf("%s (%s)", r.Name, pipeline.ErrorKind(r.Err)))
		}
	}
	if len(w.Entries) == 0 {
		return Warning{}, false
	}

	w.Title = fmt.Sprintf("%d of %d entries failed", len(w.Entries), summary.Entries)
	w.Message = "Failed entries count as 0 matched sentences in the total."
	if logFile != "" {
		w.Suggestion = "See " + logFile + " for worker details"
	}
	return w, true
}
