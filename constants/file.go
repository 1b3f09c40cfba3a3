package constants

import "strings"

// Document formats handled by the extraction stage.
const (
	PDF  = "PDF"
	TEXT = "TEXT"
)

// AllowedExtensions holds the default allowed file extensions for purchase-order uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
	"txt": {},
	"csv": {},
	"md":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a document format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "txt", "csv", "md", "text":
		return TEXT
	default:
		return ""
	}
}
