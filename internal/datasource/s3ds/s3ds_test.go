package s3ds

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/datasource/httpds"
)

// fakeDownloader serves a fixed payload and remembers the last request.
type fakeDownloader struct {
	s3manageriface.DownloaderAPI

	body []byte
	err  error
	got  *s3.GetObjectInput
}

func (d *fakeDownloader) DownloadWithContext(_ aws.Context, w io.WriterAt, in *s3.GetObjectInput, _ ...func(*s3manager.Downloader)) (int64, error) {
	d.got = in
	if d.err != nil {
		return 0, d.err
	}
	n, err := w.WriteAt(d.body, 0)
	return int64(n), err
}

func TestParseURL(t *testing.T) {
	t.Parallel()

	b, k, err := ParseURL("s3://bucket/dir/archive.zip")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "dir/archive.zip", k)

	for _, bad := range []string{"https://bucket/key", "s3://bucket", "s3:///key", "s3://bucket/"} {
		_, _, err := ParseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestFetch_Memory(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{body: []byte("PK\x03\x04zip")}
	f := NewWithDownloader(dl, Options{}, zerolog.Nop())

	a, err := f.Fetch(context.Background(), "s3://data/archive.zip")
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.InMemory())
	assert.Equal(t, dl.body, a.Data)
	assert.Equal(t, "archive.zip", a.Name)
	assert.Equal(t, "data", aws.StringValue(dl.got.Bucket))
	assert.Equal(t, "archive.zip", aws.StringValue(dl.got.Key))
}

func TestFetch_DiskRemovesScratchOnClose(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{body: []byte("PK\x03\x04zip")}
	f := NewWithDownloader(dl, Options{Mode: httpds.ModeDisk, ScratchDir: t.TempDir()}, zerolog.Nop())

	a, err := f.Fetch(context.Background(), "s3://data/archive.zip")
	require.NoError(t, err)
	require.False(t, a.InMemory())

	got, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, dl.body, got)
	assert.EqualValues(t, len(dl.body), a.Size)

	require.NoError(t, a.Close())
	_, err = os.Stat(a.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFetch_DiskCleansUpOnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dl := &fakeDownloader{err: errors.New("access denied")}
	f := NewWithDownloader(dl, Options{Mode: httpds.ModeDisk, ScratchDir: dir}, zerolog.Nop())

	_, err := f.Fetch(context.Background(), "s3://data/archive.zip")
	require.ErrorContains(t, err, "access denied")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
