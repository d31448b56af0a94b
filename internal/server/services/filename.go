package services

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dekinai/internal/common"
)

// Extension returns the lowercased extension of a client-supplied filename.
// Directory components are ignored. A name whose only dot is the leading one
// (".bashrc") has no extension; "archive.tar.gz" yields "gz".
func Extension(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ValidExtension reports whether ext can be placed in a URL path segment
// as-is: ASCII letters, digits, '-', '_' and '~'. The empty extension is
// valid.
func ValidExtension(ext string) bool {
	for _, r := range ext {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '~':
		default:
			return false
		}
	}
	return true
}

// SplitFilename parses a public filename ("stem" or "stem.ext") into its
// ledger key. Names that could escape the output directory, carry no stem or
// end in a dot (which would alias the extensionless key) are rejected with
// common.ErrorBadRequest.
func SplitFilename(name string) (stem, ext string, err error) {
	if name == "" || strings.HasSuffix(name, ".") || strings.ContainsAny(name, "/\\\x00") {
		return "", "", fmt.Errorf("%w: invalid filename %q", common.ErrorBadRequest, name)
	}

	stem = name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem, ext = name[:i], name[i+1:]
	}
	if stem == "" || strings.HasPrefix(stem, ".") {
		return "", "", fmt.Errorf("%w: invalid filename %q", common.ErrorBadRequest, name)
	}

	return stem, ext, nil
}
