// Package datasource defines how the importer obtains source archives. A
// Fetcher turns a URL into an Archive, which is either fully buffered in
// memory or a path on local disk. Mux routes URLs to fetchers by scheme.
package datasource

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// Fetcher retrieves the archive at rawURL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Archive, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) (*Archive, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*Archive, error) { return f(ctx, rawURL) }

// Archive is a fetched source. Exactly one of Data or Path is set.
type Archive struct {
	// URL is the address the archive was requested from.
	URL string
	// Name is a short label for logs, usually the last path segment.
	Name string
	// Data holds the archive bytes in memory mode.
	Data []byte
	// Path is a local zip file or an already-extracted directory.
	Path string
	// Size is the byte size, when known.
	Size int64

	closeOnce sync.Once
	cleanup   func() error
	closeErr  error
}

// NewMemoryArchive wraps bytes already read into memory.
func NewMemoryArchive(rawURL string, data []byte) *Archive {
	return &Archive{URL: rawURL, Name: NameFromURL(rawURL), Data: data, Size: int64(len(data))}
}

// NewFileArchive wraps a local path. cleanup, when non-nil, runs on Close
// (e.g. removing a scratch download).
func NewFileArchive(rawURL, p string, size int64, cleanup func() error) *Archive {
	return &Archive{URL: rawURL, Name: NameFromURL(rawURL), Path: p, Size: size, cleanup: cleanup}
}

// InMemory reports whether the archive bytes are held in memory.
func (a *Archive) InMemory() bool { return a.Path == "" }

// Close releases scratch storage. It is safe to call more than once.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.Data = nil
		if a.cleanup != nil {
			a.closeErr = a.cleanup()
		}
	})
	return a.closeErr
}

// NameFromURL returns the last path segment of rawURL, or rawURL itself when
// it has none.
func NameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	if base := path.Base(strings.TrimRight(p, "/")); base != "." && base != "/" && base != "" {
		return base
	}
	return rawURL
}

// Mux dispatches Fetch calls by URL scheme. URLs without a scheme are
// treated as "file".
type Mux struct {
	byScheme map[string]Fetcher
}

// NewMux returns an empty Mux.
func NewMux() *Mux { return &Mux{byScheme: map[string]Fetcher{}} }

// Handle registers f for scheme (case-insensitive).
func (m *Mux) Handle(scheme string, f Fetcher) {
	m.byScheme[strings.ToLower(scheme)] = f
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, rawURL string) (*Archive, error) {
	scheme := Scheme(rawURL)
	f, ok := m.byScheme[scheme]
	if !ok {
		return nil, fmt.Errorf("datasource: no fetcher for scheme %q (%s)", scheme, rawURL)
	}
	return f.Fetch(ctx, rawURL)
}

// Schemes lists the registered schemes.
func (m *Mux) Schemes() []string {
	out := make([]string, 0, len(m.byScheme))
	for s := range m.byScheme {
		out = append(out, s)
	}
	return out
}

// Scheme returns the lower-cased scheme of rawURL, or "file" for bare paths.
func Scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	// A single-letter scheme is a Windows drive letter.
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
