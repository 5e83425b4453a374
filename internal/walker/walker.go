// Package walker enumerates a directory and drives one pipeline per entry.
package walker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/dirstat/internal/fileutil"
	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/pipeline"
)

// Runner executes the pipeline of a single entry.
type Runner interface {
	Run(ctx context.Context, entry models.DirectoryEntry, topo models.Topology) (models.EntryResult, error)
}

// Logger receives walk diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options configures a walk.
type Options struct {
	ImageExtensions []string
	Pattern         string
	Exclude         []string

	// MaxConcurrency caps pipelines running at once (<= 1 = sequential)
	MaxConcurrency int

	// OnResult is called from the fold loop after each entry, in name order
	OnResult func(result models.EntryResult, done, total int)

	// RunID identifies the walk (generated when empty)
	RunID string

	// Ignore lists paths the run itself writes (summary file, reports, logs).
	// An entry of root that is, or contains, one of them is skipped.
	Ignore []string
}

// Walker folds per-entry pipeline results into a Summary.
type Walker struct {
	runner Runner
	opts   Options
	logger Logger
}

// New creates a Walker. logger may be nil.
func New(runner Runner, opts Options, logger Logger) *Walker {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Walker{runner: runner, opts: opts, logger: logger}
}

type job struct {
	index int
	entry models.DirectoryEntry
	topo  models.Topology
}

type outcome struct {
	index  int
	result models.EntryResult
}

// Walk processes every entry of root and writes one line per entry plus a
// total line to sink. Only a failure to enumerate root or to write sink is
// returned as an error; entry failures are logged and reported in sink.
func (w *Walker) Walk(ctx context.Context, root string, sink io.Writer) (models.Summary, error) {
	start := time.Now()
	summary := models.Summary{RunID: w.opts.RunID, Root: root, StartedAt: start}
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}

	listing, err := fileutil.ListEntries(root, fileutil.ListOptions{Exclude: w.opts.Exclude})
	if err != nil {
		return summary, fmt.Errorf("failed to enumerate %s: %w", root, err)
	}
	for _, lerr := range listing.Errors {
		w.logger.Warnf("%v", lerr)
	}
	for _, name := range listing.Excluded {
		w.logger.Debugf("excluded %s", name)
	}
	summary.Skipped = len(listing.Excluded)

	own := ownEntries(root, w.opts.Ignore)
	jobs := make([]job, 0, len(listing.Names))
	for _, name := range listing.Names {
		if own[name] {
			w.logger.Debugf("skipping %s: written by this run", name)
			summary.Skipped++
			continue
		}
		entry, err := fileutil.StatEntry(root, name)
		if err != nil {
			w.logger.Warnf("skipping %s: %v", name, err)
			summary.Skipped++
			continue
		}
		topo := models.ChooseTopology(entry, w.opts.ImageExtensions, w.opts.Pattern)
		jobs = append(jobs, job{index: len(jobs), entry: entry, topo: topo})
	}

	results := w.dispatch(ctx, jobs)

	// Single fold loop: results are folded and written in name order.
	pending := make(map[int]models.EntryResult)
	next := 0
	var sinkErr error
	for out := range results {
		pending[out.index] = out.result
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			w.fold(&summary, res)
			if sinkErr == nil {
				sinkErr = writeLine(sink, res)
			}
			if w.opts.OnResult != nil {
				w.opts.OnResult(res, next, len(jobs))
			}
		}
	}

	summary.Duration = time.Since(start)
	if sinkErr != nil {
		return summary, fmt.Errorf("failed to write summary: %w", sinkErr)
	}
	if _, err := fmt.Fprintf(sink, "total matched sentences for %s is %d\n", root, summary.Matched); err != nil {
		return summary, fmt.Errorf("failed to write summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("walk of %s interrupted: %w", root, err)
	}
	return summary, nil
}

// dispatch runs jobs with at most MaxConcurrency pipelines in flight and
// returns their outcomes on a channel that is closed when all are done.
// Jobs not yet started when ctx is done are not run.
func (w *Walker) dispatch(ctx context.Context, jobs []job) <-chan outcome {
	limit := w.opts.MaxConcurrency
	if limit < 1 {
		limit = 1
	}

	out := make(chan outcome, limit)
	go func() {
		defer close(out)

		sem := make(chan struct{}, limit)
		var wg sync.WaitGroup
		for _, j := range jobs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}

			wg.Add(1)
			go func(j job) {
				defer wg.Done()
				defer func() { <-sem }()
				out <- outcome{index: j.index, result: w.runOne(ctx, j)}
			}(j)
		}
		wg.Wait()
	}()
	return out
}

func (w *Walker) runOne(ctx context.Context, j job) models.EntryResult {
	w.logger.Debugf("%s: %s (%s)", j.entry.Name, j.topo.Kind, j.entry.Kind)

	result, err := w.runner.Run(ctx, j.entry, j.topo)
	if err != nil {
		w.logger.Errorf("%s failed (%s): %v", j.entry.Name, pipeline.ErrorKind(err), err)
		result.Err = err
		result.Matched = 0
	}
	if result.Name == "" {
		result.Name = j.entry.Name
		result.Path = j.entry.Path
		result.Kind = j.entry.Kind
		result.Topology = j.topo
	}
	return result
}

func (w *Walker) fold(summary *models.Summary, res models.EntryResult) {
	summary.Entries++
	summary.Matched += res.Matched
	summary.ReportLines += res.ReportLines
	if res.Err != nil {
		summary.Failed++
	}
	summary.Results = append(summary.Results, res)
}

// writeLine appends the entry's line to the summary. Failed entries keep
// the numeric form (their count is 0); the error kind goes to the logs.
func writeLine(sink io.Writer, res models.EntryResult) error {
	var err error
	if res.Topology.Kind == models.MetadataPlusFilter {
		_, err = fmt.Fprintf(sink, "matched sentences for %s is %d\n", res.Name, res.Matched)
	} else {
		_, err = fmt.Fprintf(sink, "lines written for %s is %d\n", res.Name, res.ReportLines)
	}
	return err
}

// ownEntries returns the names of root's children that are, or contain,
// one of paths.
func ownEntries(root string, paths []string) map[string]bool {
	own := make(map[string]bool)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return own
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		own[strings.SplitN(rel, string(filepath.Separator), 2)[0]] = true
	}
	return own
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
