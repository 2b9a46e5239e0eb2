package constants

import "strings"

// DocumentFormats holds the raw document formats partners send.
var DocumentFormats = []string{"PDF", "XLSX"}

// AllowedExtensions holds the file extensions picked up from the invoice inbox.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// PrimaryExt is the extension of the document a partner's invoice is read from.
func PrimaryExt(p Partner) string {
	switch p {
	case LiberoLogistics, SWDeVries, MagicMovers:
		return "xlsx"
	default:
		return "pdf"
	}
}

// SecondaryExt is the extension of the companion document, or "" when the
// partner sends a single file.
func SecondaryExt(p Partner) string {
	if p == LiberoLogistics {
		return "pdf"
	}
	return ""
}
