package logger

import "github.com/harrison/dirstat/internal/models"

// RunLogger is what a walk reports to.
type RunLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	LogEntryResult(result models.EntryResult)
	LogSummary(summary models.Summary)
}

// MultiLogger fans every call out to its loggers in order.
type MultiLogger []RunLogger

func (m MultiLogger) Debugf(format string, args ...interface{}) {
	for _, l := range m {
		l.Debugf(format, args...)
	}
}

func (m MultiLogger) Infof(format string, args ...interface{}) {
	for _, l := range m {
		l.Infof(format, args...)
	}
}

func (m MultiLogger) Warnf(format string, args ...interface{}) {
	for _, l := range m {
		l.Warnf(format, args...)
	}
}

func (m MultiLogger) Errorf(format string, args ...interface{}) {
	for _, l := range m {
		l.Errorf(format, args...)
	}
}

func (m MultiLogger) LogEntryResult(result models.EntryResult) {
	for _, l := range m {
		l.LogEntryResult(result)
	}
}

func (m MultiLogger) LogSummary(summary models.Summary) {
	for _, l := range m {
		l.LogSummary(summary)
	}
}
