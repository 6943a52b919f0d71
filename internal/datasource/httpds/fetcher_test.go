package httpds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveBody = "PK\x03\x04fake-archive-bytes"

func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/a.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(archiveBody))
	})
	// Relative Location, resolved against the request URL.
	mux.HandleFunc("/old/a.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "../files/a.zip")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/old/a.zip", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/nolocation", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_MemoryMode(t *testing.T) {
	srv := archiveServer(t)
	f := newTestFetcher(FetchOptions{Mode: ModeMemory})

	a, err := f.Fetch(context.Background(), srv.URL+"/files/a.zip")
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.InMemory())
	assert.Equal(t, archiveBody, string(a.Data))
	assert.Equal(t, int64(len(archiveBody)), a.Size)
	assert.Equal(t, "a.zip", a.Name)
}

func TestFetch_FollowsRedirectsToSameBytes(t *testing.T) {
	srv := archiveServer(t)
	f := newTestFetcher(FetchOptions{})

	direct, err := f.Fetch(context.Background(), srv.URL+"/files/a.zip")
	require.NoError(t, err)
	redirected, err := f.Fetch(context.Background(), srv.URL+"/hop")
	require.NoError(t, err)

	assert.Equal(t, direct.Data, redirected.Data)
	assert.Equal(t, srv.URL+"/hop", redirected.URL)
}

func TestFetch_TooManyRedirects(t *testing.T) {
	srv := archiveServer(t)
	f := newTestFetcher(FetchOptions{MaxRedirects: 3})

	_, err := f.Fetch(context.Background(), srv.URL+"/loop")
	assert.ErrorIs(t, err, ErrTooManyRedirects)

	// Two hops fit in a budget of two.
	f = newTestFetcher(FetchOptions{MaxRedirects: 2})
	_, err = f.Fetch(context.Background(), srv.URL+"/hop")
	assert.NoError(t, err)
}

func TestFetch_StatusErrors(t *testing.T) {
	srv := archiveServer(t)
	f := newTestFetcher(FetchOptions{})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.zip")
	var dl *DownloadError
	require.True(t, errors.As(err, &dl), "got %v", err)
	assert.Equal(t, http.StatusNotFound, dl.StatusCode)

	_, err = f.Fetch(context.Background(), srv.URL+"/nolocation")
	require.True(t, errors.As(err, &dl), "got %v", err)
	assert.Equal(t, http.StatusFound, dl.StatusCode)
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(archiveBody))
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	c.wait = noWait
	f := NewFetcher(c, FetchOptions{}, zerolog.Nop())

	a, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, archiveBody, string(a.Data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetch_DiskMode(t *testing.T) {
	srv := archiveServer(t)
	dir := t.TempDir()
	f := newTestFetcher(FetchOptions{Mode: ModeDisk, ScratchDir: dir})

	a, err := f.Fetch(context.Background(), srv.URL+"/files/a.zip")
	require.NoError(t, err)

	assert.False(t, a.InMemory())
	assert.Equal(t, dir, filepath.Dir(a.Path))
	got, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, archiveBody, string(got))
	assert.Equal(t, int64(len(archiveBody)), a.Size)

	require.NoError(t, a.Close())
	_, err = os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err), "scratch file should be removed on Close")
}
