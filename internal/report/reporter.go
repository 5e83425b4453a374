// Package report renders the metadata record written for every walked entry.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harrison/dirstat/internal/bmp"
	"github.com/harrison/dirstat/internal/models"
)

// dateLayout renders modification times as dd.mm.yyyy
const dateLayout = "02.01.2006"

// Reporter renders entry records. The zero value is usable: no image
// extensions and local time.
type Reporter struct {
	// ImageExtensions marks regular files whose record includes bitmap dimensions
	ImageExtensions []string
	// Location used for modification dates (nil = time.Local)
	Location *time.Location
}

// NewReporter creates a Reporter that treats imageExts as bitmaps.
func NewReporter(imageExts []string) *Reporter {
	return &Reporter{ImageExtensions: imageExts}
}

// Render returns the metadata record for entry. Records end with a blank
// line. Symlink records stat the link target; bitmap records read the
// image header. Neither touches the entry otherwise.
func (r *Reporter) Render(entry models.DirectoryEntry) ([]byte, error) {
	var sb strings.Builder

	switch entry.Kind {
	case models.KindRegular:
		r.renderRegular(&sb, entry)
	case models.KindDirectory:
		fmt.Fprintf(&sb, "directory name: %s\n", entry.Path)
		fmt.Fprintf(&sb, "owner id: %d\n", entry.UID)
		writePermissions(&sb, entry.Mode)
	case models.KindSymlink:
		target := "-"
		if info, err := os.Stat(entry.Path); err == nil {
			target = fmt.Sprintf("%d", info.Size())
		}
		fmt.Fprintf(&sb, "link name: %s\n", entry.Path)
		fmt.Fprintf(&sb, "link size: %d\n", entry.Size)
		fmt.Fprintf(&sb, "target size: %s\n", target)
		fmt.Fprintf(&sb, "user permissions (link): %s\n", triplet(entry.Mode, 6))
	case models.KindOther:
		fmt.Fprintf(&sb, "entry name: %s\n", entry.Path)
		fmt.Fprintf(&sb, "type: %s\n", entry.Mode.Type())
		fmt.Fprintf(&sb, "owner id: %d\n", entry.UID)
		writePermissions(&sb, entry.Mode)
	default:
		return nil, fmt.Errorf("unknown entry kind %d for %s", entry.Kind, entry.Path)
	}

	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

func (r *Reporter) renderRegular(sb *strings.Builder, entry models.DirectoryEntry) {
	fmt.Fprintf(sb, "file name: %s\n", entry.Path)

	// A bitmap whose header cannot be read is reported as a plain file.
	if models.HasImageExtension(entry.Name, r.ImageExtensions) {
		if h, err := bmp.ReadHeaderFile(entry.Path); err == nil {
			fmt.Fprintf(sb, "height: %d\n", h.Height)
			fmt.Fprintf(sb, "width: %d\n", h.Width)
		}
	}

	fmt.Fprintf(sb, "size: %d\n", entry.Size)
	fmt.Fprintf(sb, "owner id: %d\n", entry.UID)
	fmt.Fprintf(sb, "last modified: %s\n", r.date(entry.ModTime))
	fmt.Fprintf(sb, "link count: %d\n", entry.Nlink)
	writePermissions(sb, entry.Mode)
}

func (r *Reporter) date(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

func writePermissions(sb *strings.Builder, mode os.FileMode) {
	fmt.Fprintf(sb, "user permissions: %s\n", triplet(mode, 6))
	fmt.Fprintf(sb, "group permissions: %s\n", triplet(mode, 3))
	fmt.Fprintf(sb, "others permissions: %s\n", triplet(mode, 0))
}

// triplet renders the rwx bits at shift as e.g. "RW-".
func triplet(mode os.FileMode, shift uint) string {
	bits := (mode.Perm() >> shift) & 07
	out := []byte("---")
	if bits&04 != 0 {
		out[0] = 'R'
	}
	if bits&02 != 0 {
		out[1] = 'W'
	}
	if bits&01 != 0 {
		out[2] = 'X'
	}
	return string(out)
}
