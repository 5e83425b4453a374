package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/harrison/dirstat/internal/models"
)

// ListOptions configures directory enumeration
type ListOptions struct {
	// Exclude holds doublestar patterns matched against each base name
	Exclude []string
}

// ListResult contains the results of a directory enumeration
type ListResult struct {
	// Names contains the child names, sorted
	Names []string
	// Excluded contains the names dropped by an exclude pattern, sorted
	Excluded []string
	// Errors contains non-fatal errors reported for individual children
	Errors []error
}

// ValidatePatterns returns an error for the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

// ListEntries enumerates the immediate children of dir without descending
// into subdirectories or following symlinks.
func ListEntries(dir string, opts ListOptions) (*ListResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}
	if err := ValidatePatterns(opts.Exclude); err != nil {
		return nil, err
	}

	result := &ListResult{
		Names:    make([]string, 0),
		Excluded: make([]string, 0),
		Errors:   make([]error, 0),
	}

	root := filepath.Clean(dir)
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}

	// walkFn runs on several goroutines at once
	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if filepath.Clean(path) == root {
			return err
		}

		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}

		name := d.Name()
		if excluded(name, opts.Exclude) {
			result.Excluded = append(result.Excluded, name)
		} else {
			result.Names = append(result.Names, name)
		}

		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	sort.Strings(result.Names)
	sort.Strings(result.Excluded)
	return result, nil
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// StatEntry lstats dir/name and builds the entry record. Symlinks describe
// the link itself.
func StatEntry(dir, name string) (models.DirectoryEntry, error) {
	path := filepath.Join(dir, name)
	info, err := os.Lstat(path)
	if err != nil {
		return models.DirectoryEntry{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	entry := models.DirectoryEntry{
		Name:    name,
		Path:    path,
		Kind:    models.KindFromMode(info.Mode()),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Nlink:   1,
	}
	fillOwner(&entry, info)
	return entry, nil
}
