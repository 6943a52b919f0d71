package file

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
)

// ErrBadListEntry is wrapped by ReadList for a line that is not a usable
// source URL.
var ErrBadListEntry = errors.New("bad source entry")

// listSchemes are the schemes the importer can fetch.
var listSchemes = map[string]bool{"http": true, "https": true, "s3": true, "file": true}

// ReadList reads a source list: one archive URL or path per line, blank
// lines and '#' comments ignored, order kept. An unsupported scheme, a line
// holding more than one token or a repeated source fails the whole list with
// the offending line number.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		out  []string
		seen = map[string]int{}
		n    int
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
		src := strings.TrimSpace(sc.Text())
		if src == "" || src[0] == '#' {
			continue
		}
		if strings.ContainsAny(src, " \t") {
			return nil, fmt.Errorf("%s:%d: %w: one source per line", path, n, ErrBadListEntry)
		}
		if s := datasource.Scheme(src); !listSchemes[s] {
			return nil, fmt.Errorf("%s:%d: %w: unsupported scheme %q", path, n, ErrBadListEntry, s)
		}
		if first, dup := seen[src]; dup {
			return nil, fmt.Errorf("%s:%d: %w: repeats line %d", path, n, ErrBadListEntry, first)
		}
		seen[src] = n
		out = append(out, src)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
