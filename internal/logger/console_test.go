package logger

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// TestNewConsoleLogger verifies the constructor creates a ConsoleLogger with the provided writer.
func TestNewConsoleLogger(t *testing.T) {
	t.Run("with valid writer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewConsoleLogger(buf, "DEBUG")

		assert.Same(t, buf, logger.writer)
		assert.Equal(t, "debug", logger.logLevel)
		assert.False(t, logger.colorOutput, "buffers never get colors")
	})

	t.Run("with invalid level", func(t *testing.T) {
		logger := NewConsoleLogger(&bytes.Buffer{}, "loud")
		assert.Equal(t, "info", logger.logLevel)
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
	}{
		{"trace", []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}},
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"info", []string{"INFO", "WARN", "ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"error", []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, tt.level)

			logger.LogTrace("t")
			logger.LogDebug("d")
			logger.LogInfo("i")
			logger.LogWarn("w")
			logger.LogError("e")

			out := buf.String()
			assert.Equal(t, len(tt.expected), strings.Count(out, "\n"))
			for _, lvl := range tt.expected {
				assert.Contains(t, out, "["+lvl+"]")
			}
		})
	}
}

func TestFormattedMethods(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "debug")

	logger.Debugf("started %s pid %d", "producer", 42)
	logger.Warnf("entry %s: %v", "a.txt", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] \[DEBUG\] started producer pid 42$`, lines[0])
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] \[WARN\] entry a\.txt: boom$`, lines[1])
}

func TestLogEntryResult(t *testing.T) {
	tests := []struct {
		name     string
		result   models.EntryResult
		expected string
	}{
		{
			name: "filter",
			result: models.EntryResult{
				Name: "notes.txt", Matched: 2, ReportLines: 9,
				Topology: models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"},
			},
			expected: "notes.txt (metadata+filter): 2 matched, 9 report lines",
		},
		{
			name: "metadata",
			result: models.EntryResult{
				Name: "sub", ReportLines: 6,
				Topology: models.Topology{Kind: models.MetadataOnly},
			},
			expected: "sub (metadata): 6 report lines",
		},
		{
			name: "convert failed",
			result: models.EntryResult{
				Name: "pic.bmp", ReportLines: 11, ConvertFailed: true,
				Topology: models.Topology{Kind: models.MetadataPlusConvert},
			},
			expected: "pic.bmp (metadata+convert): CONVERT FAILED, 11 report lines",
		},
		{
			name: "failed",
			result: models.EntryResult{
				Name:     "x.txt",
				Topology: models.Topology{Kind: models.MetadataPlusFilter},
				Err:      &pipeline.SpawnError{Entry: "x.txt", Role: pipeline.RoleFilter, Err: errors.New("not found")},
			},
			expected: "x.txt (metadata+filter): FAILED (spawn)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			NewConsoleLogger(buf, "debug").LogEntryResult(tt.result)
			assert.Contains(t, buf.String(), tt.expected)
		})
	}

	t.Run("hidden at info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewConsoleLogger(buf, "info").LogEntryResult(tests[0].result)
		assert.Empty(t, buf.String())
	})
}

func TestLogSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogSummary(models.Summary{
		Root:        "/data",
		Entries:     4,
		Matched:     7,
		ReportLines: 30,
		Failed:      1,
		Duration:    1500 * time.Millisecond,
		Results: []models.EntryResult{
			{Name: "ok.txt"},
			{Name: "bad.txt", Err: errors.New("spawn failed")},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"=== Walk Summary ===",
		"Directory: /data",
		"Entries: 4",
		"Matched sentences: 7",
		"Report lines: 30",
		"Failed: 1",
		"Duration: 1s",
		"- bad.txt: spawn failed",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ok.txt")
	assert.NotContains(t, out, "Skipped")
}

func TestLogProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	NewConsoleLogger(buf, "info").LogProgress(4, 10)
	assert.Contains(t, buf.String(), "Progress: [====      ] 4/10 (40%)")
}

// TestTimestampFormat verifies every line starts with [HH:MM:SS]
func TestTimestampFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")
	logger.LogInfo("hello")

	assert.True(t, regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] `).MatchString(buf.String()))
}

func TestConcurrentLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Infof("message %d", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] \[INFO\] message \d+$`, line)
	}
}

func TestNilWriter(t *testing.T) {
	logger := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		logger.LogInfo("x")
		logger.Errorf("y %d", 1)
		logger.LogEntryResult(models.EntryResult{Name: "a"})
		logger.LogSummary(models.Summary{})
		logger.LogProgress(1, 2)
	})
}

func TestColorizedOutcome(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = saved }()

	scheme := newColorScheme()
	failed := formatColorizedOutcome(models.EntryResult{Err: errors.New("x")}, scheme)
	assert.Contains(t, failed, "\x1b[31m")
	assert.Contains(t, failed, "FAILED (unknown)")

	matched := formatColorizedOutcome(models.EntryResult{
		Matched:  3,
		Topology: models.Topology{Kind: models.MetadataPlusFilter},
	}, scheme)
	assert.Contains(t, matched, "\x1b[32m")

	degraded := formatColorizedOutcome(models.EntryResult{ConvertFailed: true}, scheme)
	assert.Contains(t, degraded, "\x1b[33m")
}

func TestDurationFormatting(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{3 * time.Hour, "3h"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.d), func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.d))
		})
	}
}

func TestMultiLogger(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	var m RunLogger = MultiLogger{NewConsoleLogger(a, "debug"), NewConsoleLogger(b, "warn"), NewNoOpLogger()}

	m.Infof("hello %s", "there")
	m.Warnf("careful")

	assert.Contains(t, a.String(), "hello there")
	assert.Contains(t, a.String(), "careful")
	assert.NotContains(t, b.String(), "hello there")
	assert.Contains(t, b.String(), "careful")
}

// Compile-time interface checks
var (
	_ RunLogger       = (*ConsoleLogger)(nil)
	_ RunLogger       = (*FileLogger)(nil)
	_ RunLogger       = (*NoOpLogger)(nil)
	_ pipeline.Logger = (*ConsoleLogger)(nil)
)
