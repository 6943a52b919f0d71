package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// filenameCleaner replaces runs of characters other than letters, digits
// and dots with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9.]+`)

// HashString returns a stable SHA1 hex digest of s.
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// SafeFilenameFromURL derives a filesystem-safe filename from a raw URL,
// used to name scratch downloads. It prefers the last path segment
// ("04_From_500_To_Beyond.zip"), then the raw query string, and falls back
// to hashing the whole URL when:
//
//   - the URL cannot be parsed, or
//   - both the segment and the query clean to nothing.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}

	if base := path.Base(u.Path); base != "." && base != "/" {
		if clean := strings.Trim(filenameCleaner.ReplaceAllString(base, "_"), "_."); clean != "" {
			return clean
		}
	}
	if clean := strings.Trim(filenameCleaner.ReplaceAllString(u.RawQuery, "_"), "_."); clean != "" {
		return clean
	}
	return HashString(rawURL)
}
