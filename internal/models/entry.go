package models

import (
	"os"
	"time"
)

// FileKind classifies a directory entry by its lstat mode
type FileKind int

const (
	KindRegular   FileKind = iota // Plain file
	KindDirectory                 // Subdirectory
	KindSymlink                   // Symbolic link (never followed)
	KindOther                     // Devices, sockets, FIFOs
)

// String returns the string representation of FileKind.
func (k FileKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode maps an lstat mode to a FileKind.
func KindFromMode(mode os.FileMode) FileKind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

// DirectoryEntry is one item returned by directory enumeration together with
// its raw status record. It is never mutated after creation.
type DirectoryEntry struct {
	Name    string      // Base name as listed in the directory
	Path    string      // Root joined with Name
	Kind    FileKind    // Classification from the lstat mode
	Size    int64       // Size in bytes (for symlinks: length of the target path)
	UID     uint32      // Owner user id
	GID     uint32      // Owner group id
	Mode    os.FileMode // Permission and type bits
	ModTime time.Time   // Last modification time
	Nlink   uint64      // Hard link count
}
