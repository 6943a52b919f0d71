package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// zipMagic is the local file header signature that starts every ZIP archive.
var zipMagic = []byte("PK\x03\x04")

// Peek retrieves up to n bytes from the given URL, following redirects.
//
// It:
//   - Adds a Range header ("bytes=0-(n-1)") as an optimization
//   - Uses a client-side LimitedReader so the result is capped even when
//     the server ignores the Range header.
//
// The returned slice length is <= n.
func (f *Fetcher) Peek(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("httpds: n must be > 0")
	}

	h := make(http.Header)
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, _, err := f.follow(ctx, url, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	// Regardless of 206 or 200, only read up to n bytes.
	lr := &io.LimitedReader{R: resp.Body, N: int64(n)}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(lr); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return buf.Bytes(), nil
}

// ProbeZip reports whether url serves something that starts like a ZIP
// archive, without downloading it.
func (f *Fetcher) ProbeZip(ctx context.Context, url string) (bool, error) {
	head, err := f.Peek(ctx, url, len(zipMagic))
	if err != nil {
		return false, err
	}
	return bytes.Equal(head, zipMagic), nil
}
