package file

import (
	"context"
	"path/filepath"
	"strings"
)

// File describes a stored payload.
type File struct {
	Filename     string
	Size         int64
	MIMEType     string
	Extension    string
	AbsolutePath string
	RelativePath string
}

// Storage persists payloads offered for download.
type Storage interface {
	// Save writes data at path, replacing any existing content.
	Save(ctx context.Context, path, contentType string, data []byte) (*File, error)
	// Exists checks if a file exists.
	Exists(ctx context.Context, path string) bool
	// URL returns the location a stored file can be fetched from.
	URL(path string) string
}

// SanitizeFilename removes any path components and NUL bytes from a filename.
// Returns "unnamed" for empty or special directory references.
//
//	safe := file.SanitizeFilename("../../../etc/passwd") // "passwd"
//	safe = file.SanitizeFilename("C:\\Windows\\file.txt") // "file.txt"
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")

	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}

	return filename
}

func newFile(path, contentType string, size int64) *File {
	name := filepath.Base(filepath.ToSlash(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &File{
		Filename:     name,
		Size:         size,
		MIMEType:     contentType,
		Extension:    filepath.Ext(name),
		RelativePath: path,
	}
}
