package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/dirstat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestListEntries_SingleLevelSorted(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.txt", "b")
	touch(t, dir, "a.txt", "a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	touch(t, filepath.Join(dir, "sub"), "nested.txt", "nested")
	require.NoError(t, os.Symlink("a.txt", filepath.Join(dir, "link")))

	res, err := ListEntries(dir, ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "link", "sub"}, res.Names)
	assert.Empty(t, res.Excluded)
	assert.Empty(t, res.Errors)
}

func TestListEntries_DoesNotFollowDirectorySymlinks(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	touch(t, target, "inside.txt", "x")
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "dirlink")))

	res, err := ListEntries(dir, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dirlink"}, res.Names)
}

func TestListEntries_Exclude(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "keep.txt", "")
	touch(t, dir, "drop.swp", "")
	touch(t, dir, ".hidden", "")

	res, err := ListEntries(dir, ListOptions{Exclude: []string{"*.swp", ".*"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.txt"}, res.Names)
	assert.Equal(t, []string{".hidden", "drop.swp"}, res.Excluded)
}

func TestListEntries_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := ListEntries(filepath.Join(t.TempDir(), "nope"), ListOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to access directory")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := touch(t, t.TempDir(), "f.txt", "")
		_, err := ListEntries(path, ListOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("malformed exclude pattern", func(t *testing.T) {
		_, err := ListEntries(t.TempDir(), ListOptions{Exclude: []string{"[a-"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid exclude pattern")
	})
}

func TestListEntries_EmptyDirectory(t *testing.T) {
	res, err := ListEntries(t.TempDir(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Names)
}

func TestStatEntry(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.txt", "hello\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0750))
	require.NoError(t, os.Symlink("file.txt", filepath.Join(dir, "link")))

	file, err := StatEntry(dir, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, models.KindRegular, file.Kind)
	assert.Equal(t, int64(6), file.Size)
	assert.Equal(t, filepath.Join(dir, "file.txt"), file.Path)
	assert.Equal(t, uint32(os.Getuid()), file.UID)
	assert.Equal(t, uint64(1), file.Nlink)

	sub, err := StatEntry(dir, "sub")
	require.NoError(t, err)
	assert.Equal(t, models.KindDirectory, sub.Kind)

	link, err := StatEntry(dir, "link")
	require.NoError(t, err)
	assert.Equal(t, models.KindSymlink, link.Kind)
	assert.Equal(t, int64(len("file.txt")), link.Size)

	_, err = StatEntry(dir, "missing")
	require.Error(t, err)
}
