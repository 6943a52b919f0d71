package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
)

// Buffering modes.
const (
	ModeMemory = "memory"
	ModeDisk   = "disk"
)

// DefaultMaxRedirects caps redirect chains when FetchOptions leaves it zero.
const DefaultMaxRedirects = 10

// FetchOptions configure a Fetcher.
type FetchOptions struct {
	// Mode is ModeMemory (buffer the body) or ModeDisk (stream to ScratchDir).
	Mode string
	// ScratchDir receives disk-mode downloads; empty means os.TempDir().
	ScratchDir string
	// MaxRedirects bounds the number of 3xx hops followed.
	MaxRedirects int
}

// Fetcher downloads archives over HTTP(S).
type Fetcher struct {
	client *Client
	opt    FetchOptions
	log    zerolog.Logger
}

var _ datasource.Fetcher = (*Fetcher)(nil)

// NewFetcher builds a Fetcher on top of c.
func NewFetcher(c *Client, opt FetchOptions, log zerolog.Logger) *Fetcher {
	if opt.Mode == "" {
		opt.Mode = ModeMemory
	}
	if opt.MaxRedirects <= 0 {
		opt.MaxRedirects = DefaultMaxRedirects
	}
	return &Fetcher{client: c, opt: opt, log: log}
}

// Fetch follows up to MaxRedirects redirects and returns the final 200
// response body as an Archive. Relative Location headers resolve against
// the URL that produced them.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*datasource.Archive, error) {
	start := time.Now()
	resp, hops, err := f.follow(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp)
		return nil, &DownloadError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}
	a, err := f.consume(resp, rawURL)
	if err != nil {
		return nil, err
	}
	f.log.Info().
		Str("url", rawURL).
		Str("mode", f.opt.Mode).
		Int("redirects", hops).
		Str("size", humanize.Bytes(uint64(a.Size))).
		Dur("elapsed", time.Since(start)).
		Msg("fetch: archive downloaded")
	return a, nil
}

// follow issues GETs until a non-redirect response arrives and returns it
// with the number of hops taken. The caller owns the response body.
func (f *Fetcher) follow(ctx context.Context, rawURL string, headers http.Header) (*http.Response, int, error) {
	current := rawURL
	for hops := 0; ; hops++ {
		resp, err := f.client.Get(ctx, current, headers)
		if err != nil {
			return nil, hops, err
		}
		if !isRedirect(resp.StatusCode) {
			return resp, hops, nil
		}

		loc := resp.Header.Get("Location")
		drain(resp)
		if loc == "" {
			return nil, hops, &DownloadError{URL: current, StatusCode: resp.StatusCode}
		}
		if hops >= f.opt.MaxRedirects {
			return nil, hops, fmt.Errorf("%w: more than %d hops from %s", ErrTooManyRedirects, f.opt.MaxRedirects, rawURL)
		}
		next, err := resolve(current, loc)
		if err != nil {
			return nil, hops, fmt.Errorf("httpds: bad redirect location %q: %w", loc, err)
		}
		f.log.Debug().Str("from", current).Str("to", next).Msg("fetch: following redirect")
		current = next
	}
}

// consume reads the body according to the buffering mode.
func (f *Fetcher) consume(resp *http.Response, rawURL string) (*datasource.Archive, error) {
	defer resp.Body.Close()

	if f.opt.Mode != ModeDisk {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}
		return datasource.NewMemoryArchive(rawURL, data), nil
	}

	dir := f.opt.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "import-*-"+SafeFilenameFromURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("httpds: create scratch file: %w", err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return nil, &TransportError{URL: rawURL, Err: copyErr}
		}
		return nil, fmt.Errorf("httpds: write scratch file: %w", closeErr)
	}
	path := tmp.Name()
	return datasource.NewFileArchive(rawURL, path, n, func() error { return os.Remove(path) }), nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolve(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}

// drain discards a small remainder of the body so the connection can be
// reused, then closes it.
func drain(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)
	_ = resp.Body.Close()
}
