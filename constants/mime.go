package constants

import "strings"

const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMETIFF = "image/tiff"
)

// SupportedMIMETypes holds the payload types the extractor accepts.
var SupportedMIMETypes = map[string]struct{}{
	MIMEPDF:  {},
	MIMEJPEG: {},
	MIMEPNG:  {},
	MIMETIFF: {},
}

var extToMIME = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"tif":  MIMETIFF,
	"tiff": MIMETIFF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME drops parameters (e.g. "; charset=binary") and lowercases.
func NormalizeMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/jpg" {
		return MIMEJPEG
	}
	return mt
}

// IsSupportedMIME reports whether the extractor accepts the MIME type.
func IsSupportedMIME(mt string) bool {
	_, ok := SupportedMIMETypes[NormalizeMIME(mt)]
	return ok
}

// MIMEFromExt maps a file extension to a supported MIME type, or "".
func MIMEFromExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// AllowedExtensions returns the file extensions the inbox watcher picks up.
func AllowedExtensions() map[string]struct{} {
	out := make(map[string]struct{}, len(extToMIME))
	for ext := range extToMIME {
		out[ext] = struct{}{}
	}
	return out
}
