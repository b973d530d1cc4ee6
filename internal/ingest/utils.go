package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/tradedocs/constants"
)

// AllowedExt checks if a file extension is one the extractor accepts.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions()[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// DocTypeFromPath reads the document type from the nearest parent directory
// whose name canonicalizes, so inbox/invoice/2024/a.pdf is an invoice.
func DocTypeFromPath(path string) (constants.DocType, bool) {
	dir := filepath.Dir(filepath.Clean(path))
	for {
		if dt, ok := constants.Canonicalize(strings.ReplaceAll(filepath.Base(dir), "-", "_")); ok {
			return dt, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
