// Package logger provides logging implementations for dirstat runs.
//
// Loggers report walk progress at the entry and summary levels. Implementations
// are thread-safe and support various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs walk progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// false when NO_COLOR is set or the stream is not a TTY
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		level = colorLevel(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogEntryResult logs the outcome of one entry at DEBUG level.
// Format: "[HH:MM:SS] <name> (<topology>): <outcome>"
func (cl *ConsoleLogger) LogEntryResult(result models.EntryResult) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	var outcome string
	if cl.colorOutput {
		outcome = formatColorizedOutcome(result, newColorScheme())
	} else {
		outcome = formatOutcome(result)
	}
	fmt.Fprintf(cl.writer, "[%s] %s (%s): %s\n", timestamp(), result.Name, result.Topology.Kind, outcome)
}

// LogSummary logs the walk summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.Summary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var sb strings.Builder

	header := "=== Walk Summary ==="
	matched := fmt.Sprintf("Matched sentences: %d", summary.Matched)
	failed := fmt.Sprintf("Failed: %d", summary.Failed)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		matched = color.New(color.FgGreen).Sprint(matched)
		if summary.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		}
	}

	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	fmt.Fprintf(&sb, "[%s] Directory: %s\n", ts, summary.Root)
	fmt.Fprintf(&sb, "[%s] Entries: %d\n", ts, summary.Entries)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, matched)
	fmt.Fprintf(&sb, "[%s] Report lines: %d\n", ts, summary.ReportLines)
	fmt.Fprintf(&sb, "[%s] %s\n", ts, failed)
	if summary.Skipped > 0 {
		fmt.Fprintf(&sb, "[%s] Skipped: %d\n", ts, summary.Skipped)
	}
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(summary.Duration))

	if summary.Failed > 0 {
		fmt.Fprintf(&sb, "[%s] Failed entries:\n", ts)
		for _, r := range summary.Results {
			if r.Err == nil {
				continue
			}
			fmt.Fprintf(&sb, "[%s]   - %s: %v\n", ts, r.Name, r.Err)
		}
	}

	io.WriteString(cl.writer, sb.String())
}

// LogProgress logs how many entries have been processed.
// Format: "[HH:MM:SS] Progress: [====      ] 4/10 (40%)"
func (cl *ConsoleLogger) LogProgress(done, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(done)
	fmt.Fprintf(cl.writer, "[%s] Progress: %s\n", timestamp(), pb.Render())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatOutcome renders an entry outcome without colors.
func formatOutcome(result models.EntryResult) string {
	switch {
	case result.Err != nil:
		return fmt.Sprintf("FAILED (%s)", pipeline.ErrorKind(result.Err))
	case result.ConvertFailed:
		return fmt.Sprintf("CONVERT FAILED, %d report lines", result.ReportLines)
	case result.Topology.Kind == models.MetadataPlusFilter:
		return fmt.Sprintf("%d matched, %d report lines", result.Matched, result.ReportLines)
	default:
		return fmt.Sprintf("%d report lines", result.ReportLines)
	}
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "450ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(string, ...interface{})     {}
func (n *NoOpLogger) Infof(string, ...interface{})      {}
func (n *NoOpLogger) Warnf(string, ...interface{})      {}
func (n *NoOpLogger) Errorf(string, ...interface{})     {}
func (n *NoOpLogger) LogEntryResult(models.EntryResult) {}
func (n *NoOpLogger) LogSummary(models.Summary)         {}
