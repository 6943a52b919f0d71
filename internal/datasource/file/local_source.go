// Package file fetches archives that are already on local disk: a ZIP file,
// or a directory holding previously extracted CSV files. It accepts bare
// paths and file:// URLs.
package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
)

// Local is a filesystem Fetcher. The zero value is ready to use and safe for
// concurrent use.
type Local struct{}

var _ datasource.Fetcher = Local{}

// Fetch resolves rawURL to a local path and returns it as an Archive.
//
// Behavior:
//   - If the context is already canceled, Fetch returns the context error
//     without touching the filesystem.
//   - Directories and regular files are returned as path-backed archives;
//     nothing is copied and Close leaves the path in place.
//   - Filesystem errors are wrapped with the path while still permitting
//     errors.Is checks (e.g. errors.Is(err, os.ErrNotExist)).
func (Local) Fetch(ctx context.Context, rawURL string) (*datasource.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := Path(rawURL)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	var size int64
	if !fi.IsDir() {
		size = fi.Size()
	}
	return datasource.NewFileArchive(rawURL, p, size, nil), nil
}

// Path converts a file:// URL or bare path into a filesystem path.
func Path(rawURL string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(rawURL), "file:") {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("file url %q: %w", rawURL, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file url %q: remote host %q not supported", rawURL, u.Host)
	}
	if u.Path == "" {
		// file:relative/path
		return u.Opaque, nil
	}
	return u.Path, nil
}
