package models

import (
	"path/filepath"
	"strings"
)

// TopologyKind names one of the worker layouts the orchestrator can build
type TopologyKind int

const (
	// MetadataOnly renders the record in-process and spawns nothing.
	MetadataOnly TopologyKind = iota
	// MetadataPlusConvert renders the record and spawns one converter worker.
	MetadataPlusConvert
	// MetadataPlusFilter spawns a producer and a filter joined by a pipe.
	MetadataPlusFilter
)

// String returns the string representation of TopologyKind.
func (k TopologyKind) String() string {
	switch k {
	case MetadataOnly:
		return "metadata"
	case MetadataPlusConvert:
		return "metadata+convert"
	case MetadataPlusFilter:
		return "metadata+filter"
	default:
		return "unknown"
	}
}

// Topology is the declarative plan for one entry's pipeline.
// Pattern is only meaningful for MetadataPlusFilter.
type Topology struct {
	Kind    TopologyKind
	Pattern string
}

// ChooseTopology picks the worker layout for an entry. Directories, symlinks
// and special files only get metadata; regular files whose extension is in
// imageExts are converted; every other regular file is filtered for pattern.
func ChooseTopology(entry DirectoryEntry, imageExts []string, pattern string) Topology {
	if entry.Kind != KindRegular {
		return Topology{Kind: MetadataOnly}
	}
	if HasImageExtension(entry.Name, imageExts) {
		return Topology{Kind: MetadataPlusConvert}
	}
	return Topology{Kind: MetadataPlusFilter, Pattern: pattern}
}

// HasImageExtension reports whether name ends in one of exts (case-insensitive).
func HasImageExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
