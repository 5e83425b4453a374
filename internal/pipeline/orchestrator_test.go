package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dirstat/internal/fileutil"
	"github.com/harrison/dirstat/internal/models"
	"github.com/harrison/dirstat/internal/report"
)

const threeLines = "Ana are mere.\nThis has an a too.\nno capital here, a.\n"

// regularRecordLines is the record length for a plain file (8 fields + blank).
const regularRecordLines = 9

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}
func (l *recordingLogger) Infof(string, ...interface{})  {}
func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.warnings = append(l.warnings, format)
}
func (l *recordingLogger) Errorf(string, ...interface{}) {}

// testOptions runs producer/converter workers and the sentence filter from
// the test binary itself.
func testOptions(t *testing.T, filterMode string) Options {
	t.Helper()
	opts := Options{
		WorkerPath: os.Args[0],
		FilterPath: os.Args[0],
		FilterArgs: []string{VerbSentences},
		Env:        []string{"DIRSTAT_TEST_WORKER=1"},
		ReportDir:  t.TempDir(),
	}
	if filterMode != "" {
		opts.FilterArgs = []string{"fakefilter"}
		opts.Env = append(opts.Env, "DIRSTAT_TEST_FILTER_MODE="+filterMode)
	}
	return opts
}

func entryFor(t *testing.T, dir, name string) models.DirectoryEntry {
	t.Helper()
	entry, err := fileutil.StatEntry(dir, name)
	require.NoError(t, err)
	return entry
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func openFDs(t *testing.T) int {
	t.Helper()
	fds, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(fds)
}

func TestRun_MetadataOnlySpawnsNoWorker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	writeFile(t, dir, "target.txt", "x")
	require.NoError(t, os.Symlink("target.txt", filepath.Join(dir, "link")))

	orch := NewOrchestrator(testOptions(t, ""), nil, nil)

	for _, name := range []string{"sub", "link"} {
		t.Run(name, func(t *testing.T) {
			entry := entryFor(t, dir, name)
			topo := models.ChooseTopology(entry, nil, "a")
			require.Equal(t, models.MetadataOnly, topo.Kind)

			result, err := orch.Run(context.Background(), entry, topo)
			require.NoError(t, err)
			assert.Equal(t, 0, result.Matched)
			assert.Empty(t, result.Workers)
			assert.Greater(t, result.ReportLines, 0)
			assert.FileExists(t, result.ReportPath)
		})
	}
}

func TestRun_FilterCountsMatchingSentences(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)
	entry := entryFor(t, dir, "notes.txt")

	orch := NewOrchestrator(testOptions(t, ""), nil, nil)
	result, err := orch.Run(context.Background(), entry, models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, regularRecordLines, result.ReportLines)
	require.Len(t, result.Workers, 2)

	byRole := map[string]models.WorkerStatus{}
	for _, w := range result.Workers {
		byRole[w.Role] = w
		assert.NotZero(t, w.PID)
	}
	assert.Equal(t, regularRecordLines, byRole[RoleProducer].ExitCode)
	assert.Equal(t, 0, byRole[RoleFilter].ExitCode)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file name: "+entry.Path)
}

func TestRun_FilterEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "")

	orch := NewOrchestrator(testOptions(t, ""), nil, nil)
	result, err := orch.Run(context.Background(), entryFor(t, dir, "empty.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
}

func TestRun_FilterReturnsPrintedCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	orch := NewOrchestrator(testOptions(t, "count"), nil, nil)
	result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.NoError(t, err)
	assert.Equal(t, 42, result.Matched)
}

func TestRun_DegradedFilterResults(t *testing.T) {
	tests := []struct {
		mode string
	}{
		{"garbage"},
		{"empty"},
		{"negative"},
		{"fail"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "notes.txt", threeLines)

			log := &recordingLogger{}
			orch := NewOrchestrator(testOptions(t, tt.mode), nil, log)
			result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})

			require.NoError(t, err)
			assert.Equal(t, 0, result.Matched)
			assert.Len(t, result.Workers, 2)
			assert.NotEmpty(t, log.warnings)
		})
	}
}

func TestRun_MissingFilterIsSpawnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	opts := testOptions(t, "")
	opts.FilterPath = filepath.Join(dir, "no-such-filter")
	orch := NewOrchestrator(opts, nil, nil)

	result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
	assert.Equal(t, "spawn", ErrorKind(err))
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, err, result.Err)

	// The producer was started and must have been reaped.
	require.Len(t, result.Workers, 1)
	assert.Equal(t, RoleProducer, result.Workers[0].Role)
}

func TestRun_MissingWorkerIsSpawnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	opts := testOptions(t, "")
	opts.WorkerPath = filepath.Join(dir, "no-such-worker")
	orch := NewOrchestrator(opts, nil, nil)

	result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
	assert.Empty(t, result.Workers)
}

func TestRun_FilterTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	opts := testOptions(t, "hang")
	opts.FilterTimeout = 300 * time.Millisecond
	orch := NewOrchestrator(opts, nil, nil)

	start := time.Now()
	result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
	assert.Equal(t, "timeout", ErrorKind(err))
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Len(t, result.Workers, 2)
}

func TestRun_FilterTimeoutWithDescendantHoldingResultPipe(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	// The shell's sleep child inherits the result pipe's write end.
	opts := testOptions(t, "")
	opts.FilterPath = "/bin/sh"
	opts.FilterArgs = []string{"-c", "cat >/dev/null; sleep 8; echo 1", "filter"}
	opts.FilterTimeout = 500 * time.Millisecond
	orch := NewOrchestrator(opts, nil, nil)

	start := time.Now()
	result, err := orch.Run(context.Background(), entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, 0, result.Matched)
	assert.Len(t, result.Workers, 2)
}

func TestRun_CanceledContextWithDescendantHoldingResultPipe(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)

	opts := testOptions(t, "")
	opts.FilterPath = "/bin/sh"
	opts.FilterArgs = []string{"-c", "cat >/dev/null; sleep 8; echo 1", "filter"}
	orch := NewOrchestrator(opts, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := orch.Run(ctx, entryFor(t, dir, "notes.txt"), models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_NoDescriptorLeak(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires /proc/self/fd")
	}

	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", threeLines)
	entry := entryFor(t, dir, "notes.txt")
	topo := models.Topology{Kind: models.MetadataPlusFilter, Pattern: "a"}

	orch := NewOrchestrator(testOptions(t, ""), nil, nil)

	// Warm up so lazily opened runtime descriptors are not counted.
	_, err := orch.Run(context.Background(), entry, topo)
	require.NoError(t, err)

	before := openFDs(t)
	for i := 0; i < 5; i++ {
		_, err := orch.Run(context.Background(), entry, topo)
		require.NoError(t, err)
	}
	assert.Equal(t, before, openFDs(t))

	opts := testOptions(t, "")
	opts.FilterPath = filepath.Join(dir, "no-such-filter")
	failing := NewOrchestrator(opts, nil, nil)
	_, err = failing.Run(context.Background(), entry, topo)
	require.Error(t, err)
	assert.Equal(t, before, openFDs(t))
}

func TestRun_ConvertBitmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.bmp")
	require.NoError(t, os.WriteFile(path, bitmap2x1(), 0644))

	entry := entryFor(t, dir, "pic.bmp")
	topo := models.ChooseTopology(entry, []string{".bmp"}, "a")
	require.Equal(t, models.MetadataPlusConvert, topo.Kind)

	orch := NewOrchestrator(testOptions(t, ""), report.NewReporter([]string{".bmp"}), nil)
	result, err := orch.Run(context.Background(), entry, topo)
	require.NoError(t, err)
	assert.False(t, result.ConvertFailed)
	require.Len(t, result.Workers, 1)
	assert.Equal(t, RoleConverter, result.Workers[0].Role)
	assert.Equal(t, 0, result.Matched)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// (255,0,0) -> 76, (0,0,255) -> 29
	assert.Equal(t, []byte{76, 76, 76, 29, 29, 29}, data[54:60])

	rec, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(rec), "height: 1\n")
	assert.Contains(t, string(rec), "width: 2\n")
}

func TestRun_ConvertFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fake.bmp", "this is not a bitmap")

	log := &recordingLogger{}
	entry := entryFor(t, dir, "fake.bmp")
	orch := NewOrchestrator(testOptions(t, ""), report.NewReporter([]string{"bmp"}), log)

	result, err := orch.Run(context.Background(), entry, models.Topology{Kind: models.MetadataPlusConvert})
	require.NoError(t, err)
	assert.True(t, result.ConvertFailed)
	assert.NotEmpty(t, log.warnings)
	assert.FileExists(t, result.ReportPath)
}

func TestRun_ReportDirMissingIsIOError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	opts := testOptions(t, "")
	opts.ReportDir = filepath.Join(dir, "missing")
	orch := NewOrchestrator(opts, nil, nil)

	_, err := orch.Run(context.Background(), entryFor(t, dir, "sub"), models.Topology{Kind: models.MetadataOnly})
	require.Error(t, err)
	assert.Equal(t, "io", ErrorKind(err))
}

// bitmap2x1 is a 24-bit 2x1 image: red, blue, two padding bytes.
func bitmap2x1() []byte {
	data := make([]byte, 54+8)
	data[0], data[1] = 'B', 'M'
	putLE32(data[2:], uint32(len(data)))
	putLE32(data[10:], 54)
	putLE32(data[14:], 40)
	putLE32(data[18:], 2)
	putLE32(data[22:], 1)
	data[26] = 1
	data[28] = 24
	putLE32(data[34:], 8)
	copy(data[54:], []byte{0, 0, 255, 255, 0, 0})
	return data
}

func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
