package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/dirstat/internal/fileutil"
	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/report"
)

// Logger receives orchestrator diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// waitDelay bounds how long Wait keeps copying a canceled worker's output
const waitDelay = 2 * time.Second

// ReportSuffix is appended to an entry name to form its report file name
const ReportSuffix = "_stat.txt"

// Options configures how workers are launched.
type Options struct {
	// WorkerPath is the executable re-run for producer and converter workers
	WorkerPath string
	// WorkerArgs precede the worker verb, e.g. ["worker"]
	WorkerArgs []string

	// FilterPath is the filter executable; the pattern is appended to FilterArgs
	FilterPath string
	FilterArgs []string

	// Env is appended to the inherited environment of every worker
	Env []string

	// ReportDir receives one <name>_stat.txt record per entry
	ReportDir string

	// FilterTimeout bounds the wait for the filter result (0 = unbounded)
	FilterTimeout time.Duration

	// Stderr receives worker diagnostics (nil = os.Stderr)
	Stderr io.Writer
}

// Orchestrator runs the pipeline of a single directory entry.
// It keeps no per-entry state and may be shared by concurrent callers.
type Orchestrator struct {
	opts     Options
	reporter *report.Reporter
	logger   Logger
}

// NewOrchestrator creates an Orchestrator. logger may be nil.
func NewOrchestrator(opts Options, reporter *report.Reporter, logger Logger) *Orchestrator {
	if reporter == nil {
		reporter = &report.Reporter{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Orchestrator{opts: opts, reporter: reporter, logger: logger}
}

// ReportPath returns where the record for entry is written.
func (o *Orchestrator) ReportPath(entry models.DirectoryEntry) string {
	return filepath.Join(o.opts.ReportDir, entry.Name+ReportSuffix)
}

// Run builds the topology for entry, waits for every worker it spawned and
// closes every pipe end it created before returning. On error the result's
// Matched is 0 and Err is set.
func (o *Orchestrator) Run(ctx context.Context, entry models.DirectoryEntry, topo models.Topology) (models.EntryResult, error) {
	start := time.Now()
	result := models.EntryResult{
		Name:       entry.Name,
		Path:       entry.Path,
		Kind:       entry.Kind,
		Topology:   topo,
		ReportPath: o.ReportPath(entry),
	}

	var err error
	switch topo.Kind {
	case models.MetadataOnly:
		err = o.runMetadata(&result, entry)
	case models.MetadataPlusConvert:
		err = o.runConvert(ctx, &result, entry)
	case models.MetadataPlusFilter:
		err = o.runFilter(ctx, &result, entry, topo.Pattern)
	default:
		err = fmt.Errorf("entry %s: unknown topology %v", entry.Name, topo.Kind)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Matched = 0
		result.Err = err
	}
	return result, err
}

// runMetadata renders the record in-process. No worker is spawned.
func (o *Orchestrator) runMetadata(result *models.EntryResult, entry models.DirectoryEntry) error {
	lines, err := o.writeReport(entry, result.ReportPath)
	if err != nil {
		return err
	}
	result.ReportLines = lines
	return nil
}

// runConvert renders the record, then blocks on a converter worker.
func (o *Orchestrator) runConvert(ctx context.Context, result *models.EntryResult, entry models.DirectoryEntry) error {
	if err := o.runMetadata(result, entry); err != nil {
		return err
	}

	cmd := o.workerCommand(ctx, VerbConvert, entry.Path)
	h, err := o.start(entry.Name, RoleConverter, cmd)
	if err != nil {
		return err
	}

	status := h.Wait()
	result.Workers = append(result.Workers, status)
	if ctx.Err() != nil {
		return fmt.Errorf("entry %s: conversion interrupted: %w", entry.Name, ctx.Err())
	}

	if status.ExitCode != 0 {
		result.ConvertFailed = true
		o.logger.Warnf("%v", &WorkerExitError{Entry: entry.Name, Role: RoleConverter, PID: status.PID, ExitCode: status.ExitCode})
		return nil
	}
	o.logger.Debugf("%s: converter pid %d exited with code 0", entry.Name, status.PID)
	return nil
}

// runFilter wires producer -> link A -> filter -> link B -> orchestrator.
func (o *Orchestrator) runFilter(ctx context.Context, result *models.EntryResult, entry models.DirectoryEntry, pattern string) error {
	pctx := ctx
	if o.opts.FilterTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, o.opts.FilterTimeout)
		defer cancel()
	}

	linkA, err := NewPipeLink()
	if err != nil {
		return &PipeError{Entry: entry.Name, Link: "A", Err: err}
	}
	defer linkA.Close()

	linkB, err := NewPipeLink()
	if err != nil {
		return &PipeError{Entry: entry.Name, Link: "B", Err: err}
	}
	defer linkB.Close()

	var handles []*WorkerHandle
	defer func() {
		// Reap anything an early return left running.
		for _, h := range handles {
			if !h.Waited() {
				result.Workers = append(result.Workers, h.Wait())
			}
		}
	}()

	producer := o.workerCommand(pctx, VerbProduce, entry.Path, result.ReportPath)
	aw := linkA.TakeWriter()
	producer.Stdout = aw
	prod, err := o.start(entry.Name, RoleProducer, producer, aw)
	if err != nil {
		return err
	}
	handles = append(handles, prod)

	filter := o.filterCommand(pctx, pattern)
	ar := linkA.TakeReader()
	bw := linkB.TakeWriter()
	filter.Stdin = ar
	filter.Stdout = bw
	filt, err := o.start(entry.Name, RoleFilter, filter, ar, bw)
	if err != nil {
		// Link A has no reader left; the producer ends on EPIPE or after
		// filling the pipe buffer and is reaped by the deferred wait.
		return err
	}
	handles = append(handles, filt)

	// Only link B's read end is still open here, so the read ends at EOF
	// once the filter exits. A descendant of the filter may still hold the
	// write end, so expiry of pctx also ends the read.
	br := linkB.Reader()
	stopRead := context.AfterFunc(pctx, func() {
		br.SetReadDeadline(time.Now())
	})
	line, readErr := bufio.NewReader(br).ReadString('\n')
	stopRead()
	linkB.Close()

	prodStatus := prod.Wait()
	filtStatus := filt.Wait()
	result.Workers = append(result.Workers, prodStatus, filtStatus)

	if ctx.Err() != nil {
		return fmt.Errorf("entry %s: pipeline interrupted: %w", entry.Name, ctx.Err())
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Entry: entry.Name, Timeout: o.opts.FilterTimeout}
	}

	o.checkProducer(result, entry, prodStatus)

	if filtStatus.ExitCode != 0 {
		o.logger.Warnf("%v; counting 0", &WorkerExitError{Entry: entry.Name, Role: RoleFilter, PID: filtStatus.PID, ExitCode: filtStatus.ExitCode})
		result.Matched = 0
		return nil
	}

	count, perr := parseCount(entry.Name, line, readErr)
	if perr != nil {
		o.logger.Warnf("%v; counting 0", perr)
		result.Matched = 0
		return nil
	}
	result.Matched = count
	o.logger.Debugf("%s: filter pid %d reported %d", entry.Name, filtStatus.PID, count)
	return nil
}

// checkProducer records the report line count and logs producer failures.
// The producer exits with its report's line count, so a non-zero code is
// normal; ProducerFailed and signals are not.
func (o *Orchestrator) checkProducer(result *models.EntryResult, entry models.DirectoryEntry, status models.WorkerStatus) {
	if status.ExitCode == ProducerFailed || status.ExitCode < 0 {
		o.logger.Warnf("%v", &WorkerExitError{Entry: entry.Name, Role: RoleProducer, PID: status.PID, ExitCode: status.ExitCode})
	}

	lines, err := fileutil.CountLines(result.ReportPath)
	if err != nil {
		o.logger.Warnf("%v", &IOError{Entry: entry.Name, Op: "count lines of", Path: result.ReportPath, Err: err})
		return
	}
	result.ReportLines = lines

	if status.ExitCode >= 0 && status.ExitCode != ProducerFailed && status.ExitCode != clampExit(lines) {
		o.logger.Debugf("%s: producer exit code %d, report has %d lines", entry.Name, status.ExitCode, lines)
	}
}

// parseCount converts the filter's result line.
func parseCount(entry, line string, readErr error) (int, error) {
	text := strings.TrimSpace(line)
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return 0, &ParseError{Entry: entry, Output: text, Err: readErr}
	}
	if text == "" {
		return 0, &ParseError{Entry: entry}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &ParseError{Entry: entry, Output: text, Err: err}
	}
	if n < 0 {
		return 0, &ParseError{Entry: entry, Output: text}
	}
	return n, nil
}

// writeReport renders entry to path and returns the record's line count.
func (o *Orchestrator) writeReport(entry models.DirectoryEntry, path string) (int, error) {
	data, err := o.reporter.Render(entry)
	if err != nil {
		return 0, &IOError{Entry: entry.Name, Op: "render report for", Path: entry.Path, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, &IOError{Entry: entry.Name, Op: "write report", Path: path, Err: err}
	}
	lines, err := fileutil.CountLines(path)
	if err != nil {
		return 0, &IOError{Entry: entry.Name, Op: "count lines of", Path: path, Err: err}
	}
	return lines, nil
}

// start launches cmd and closes the handed pipe ends in this process; the
// child holds its own duplicates. The ends are closed whether or not the
// start succeeded.
func (o *Orchestrator) start(entry, role string, cmd *exec.Cmd, handed ...*os.File) (*WorkerHandle, error) {
	err := cmd.Start()
	for _, f := range handed {
		f.Close()
	}
	if err != nil {
		return nil, &SpawnError{Entry: entry, Role: role, Err: err}
	}

	h := newWorkerHandle(role, cmd)
	o.logger.Debugf("%s: started %s worker pid %d", entry, role, h.PID())
	return h, nil
}

func (o *Orchestrator) workerCommand(ctx context.Context, verb string, args ...string) *exec.Cmd {
	argv := make([]string, 0, len(o.opts.WorkerArgs)+1+len(args))
	argv = append(argv, o.opts.WorkerArgs...)
	argv = append(argv, verb)
	argv = append(argv, args...)
	return o.command(ctx, o.opts.WorkerPath, argv)
}

func (o *Orchestrator) filterCommand(ctx context.Context, pattern string) *exec.Cmd {
	argv := make([]string, 0, len(o.opts.FilterArgs)+1)
	argv = append(argv, o.opts.FilterArgs...)
	argv = append(argv, pattern)
	return o.command(ctx, o.opts.FilterPath, argv)
}

func (o *Orchestrator) command(ctx context.Context, path string, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, path, argv...)
	cmd.Env = append(os.Environ(), o.opts.Env...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	if o.opts.Stderr != nil {
		cmd.Stderr = o.opts.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
