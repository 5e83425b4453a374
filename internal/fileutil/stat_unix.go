//go:build unix

package fileutil

import (
	"os"
	"syscall"

	"github.com/harrison/dirstat/internal/models"
)

// fillOwner copies owner ids and the link count from the raw stat record.
func fillOwner(entry *models.DirectoryEntry, info os.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	entry.UID = st.Uid
	entry.GID = st.Gid
	entry.Nlink = uint64(st.Nlink)
}
