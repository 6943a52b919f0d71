package csv

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// stripBOM removes a leading byte-order mark. A UTF-16 BOM also switches
// decoding to UTF-16; input without a BOM passes through untouched.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}
