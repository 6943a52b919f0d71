package httpds

import (
	"errors"
	"fmt"
)

// ErrTooManyRedirects is returned when a fetch exceeds its redirect budget.
var ErrTooManyRedirects = errors.New("httpds: too many redirects")

// DownloadError reports a final HTTP status other than 200.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("httpds: download %s: unexpected status %d", e.URL, e.StatusCode)
}

// TransportError reports a network-level failure (DNS, TLS, reset) that
// persisted through every retry.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpds: transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
