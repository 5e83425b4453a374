// Package fileutil provides the filesystem primitives used by a walk.
//
// It enumerates the immediate children of a directory, resolves the lstat
// record of each child into a models.DirectoryEntry, and counts line
// terminators in report files.
//
// # Enumeration
//
// ListEntries walks a single directory level with fastwalk (symlinks are never
// followed) and returns the child names sorted, so every run processes entries
// in the same order. The "." and ".." pseudo-entries are never produced.
// Names matching an exclude glob (doublestar syntax, matched against the base
// name) are reported separately instead of being returned:
//
//	res, err := fileutil.ListEntries("/data/in", fileutil.ListOptions{
//	    Exclude: []string{"*.swp", ".*"},
//	})
//	if err != nil {
//	    return err // root cannot be opened: fatal
//	}
//	for _, name := range res.Names {
//	    entry, err := fileutil.StatEntry("/data/in", name)
//	    ...
//	}
//
// # Error Tolerance
//
// Only a root that cannot be opened is fatal. Errors on individual children
// are collected in ListResult.Errors and StatEntry errors are left for the
// caller to log and skip.
package fileutil
