package media

import (
	"path/filepath"
	"strings"
)

// MimeTypeFor derives the upload content type from the file extension. The
// temporary-file endpoint needs an explicit type; anything unrecognized is
// sent as an octet stream.
func MimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
