package models

import "time"

// WorkerStatus is the exit record of one waited-on worker process
type WorkerStatus struct {
	Role     string // "producer", "filter" or "converter"
	PID      int    // Process id while it was running
	ExitCode int    // -1 when killed by a signal
	Err      error  // Wait error, nil on exit code 0
}

// EntryResult represents the outcome of one entry's pipeline
type EntryResult struct {
	Name          string
	Path          string
	Kind          FileKind
	Topology      Topology
	Matched       int            // Sentences counted by the filter (0 without a filter stage)
	ReportLines   int            // Lines in the entry's metadata report
	ReportPath    string         // Where the metadata record was written
	ConvertFailed bool           // Converter worker exited non-zero
	Workers       []WorkerStatus // One record per spawned worker, in spawn order
	Duration      time.Duration
	Err           error // Pipeline failure; Matched is 0 when set
}

// Summary represents the aggregate result of walking one directory
type Summary struct {
	RunID       string
	Root        string
	StartedAt   time.Time
	Entries     int // Entries whose pipeline ran (failed ones included)
	Matched     int // Aggregate counter: sum of Matched over all entries
	ReportLines int
	Failed      int // Entries whose pipeline returned an error
	Skipped     int // Entries that could not be statted or were excluded
	Duration    time.Duration
	Results     []EntryResult // In name order
}
