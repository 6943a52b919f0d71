package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"https://sco.ca.gov/files/a.zip": "https",
		"HTTP://x/y.zip":                 "http",
		"s3://bucket/key.zip":            "s3",
		"file:///tmp/a.zip":              "file",
		"/tmp/a.zip":                     "file",
		"data/extracted":                 "file",
		`C:\data\a.zip`:                  "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, Scheme(in), in)
	}
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "04_From_500_To_Beyond.zip", NameFromURL("https://dpupd.sco.ca.gov/04_From_500_To_Beyond.zip"))
	assert.Equal(t, "key.zip", NameFromURL("s3://bucket/dir/key.zip"))
	assert.Equal(t, "extracted", NameFromURL("/tmp/extracted/"))
}

func TestMuxRoutesByScheme(t *testing.T) {
	m := NewMux()
	var got string
	m.Handle("HTTPS", FetcherFunc(func(_ context.Context, u string) (*Archive, error) {
		got = u
		return NewMemoryArchive(u, []byte("PK")), nil
	}))

	a, err := m.Fetch(context.Background(), "https://example.com/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.zip", got)
	assert.True(t, a.InMemory())
	assert.Equal(t, int64(2), a.Size)
	assert.Equal(t, []string{"https"}, m.Schemes())

	_, err = m.Fetch(context.Background(), "ftp://example.com/a.zip")
	assert.ErrorContains(t, err, `no fetcher for scheme "ftp"`)
}

func TestArchiveCloseRunsCleanupOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	a := NewFileArchive("u", "/tmp/x.zip", 10, func() error { calls++; return boom })

	assert.False(t, a.InMemory())
	assert.ErrorIs(t, a.Close(), boom)
	assert.ErrorIs(t, a.Close(), boom)
	assert.Equal(t, 1, calls)
}
