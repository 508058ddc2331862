package constants

import (
	"path/filepath"
	"strings"
)

// Format is the coarse input class an upload is routed by.
type Format string

const (
	SPREADSHEET Format = "SPREADSHEET"
	IMAGE       Format = "IMAGE"
	UNSUPPORTED Format = "UNSUPPORTED"
)

var spreadsheetExtensions = map[string]struct{}{
	"csv":  {},
	"xls":  {},
	"xlsx": {},
}

var imageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat classifies an extension. Case-insensitive, suffix only,
// no content sniffing.
func MapExtToFormat(ext string) Format {
	switch e := NormalizeExt(ext); {
	case hasKey(spreadsheetExtensions, e):
		return SPREADSHEET
	case hasKey(imageExtensions, e):
		return IMAGE
	default:
		return UNSUPPORTED
	}
}

// ClassifyFilename classifies a full filename by its suffix.
func ClassifyFilename(name string) Format {
	return MapExtToFormat(filepath.Ext(name))
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
