//go:build !unix

package fileutil

import (
	"os"

	"github.com/harrison/dirstat/internal/models"
)

// fillOwner is a no-op where the platform has no uid/gid/nlink.
func fillOwner(entry *models.DirectoryEntry, info os.FileInfo) {}
