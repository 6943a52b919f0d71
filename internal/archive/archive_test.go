package archive

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
)

// buildZip returns a zip holding files in the given order.
func buildZip(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		require.NoError(t, err)
		_, err = io.WriteString(w, f[1])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, e Entry) string {
	t.Helper()
	rc, err := e.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpen_MemoryFiltersCSV(t *testing.T) {
	t.Parallel()

	data := buildZip(t,
		[2]string{"readme.txt", "hello"},
		[2]string{"b/second.CSV", "h\n2\n"},
		[2]string{"first.csv", "h\n1\n"},
		[2]string{"__MACOSX/._first.csv", "junk"},
	)
	r, err := Open(datasource.NewMemoryArchive("https://x/a.zip", data))
	require.NoError(t, err)
	defer r.Close()

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b/second.CSV", entries[0].Name)
	assert.Equal(t, "second.CSV", entries[0].Base())
	assert.Equal(t, "first.csv", entries[1].Name)
	assert.Equal(t, "h\n1\n", readAll(t, entries[1]))

	// Members can be reopened for a second pass.
	assert.Equal(t, "h\n1\n", readAll(t, entries[1]))
}

func TestOpen_NoCSVIsEmptyNotError(t *testing.T) {
	t.Parallel()

	data := buildZip(t, [2]string{"notes.txt", "nothing here"})
	r, err := Open(datasource.NewMemoryArchive("a.zip", data))
	require.NoError(t, err)
	assert.Empty(t, r.Entries())
}

func TestOpen_CorruptIsArchiveError(t *testing.T) {
	t.Parallel()

	_, err := Open(datasource.NewMemoryArchive("a.zip", []byte("<html>not a zip</html>")))
	var ae *ArchiveError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, "a.zip", ae.Path)
}

func TestOpen_ZipFileOnDisk(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(p, buildZip(t, [2]string{"x.csv", "h\nv\n"}), 0o644))

	r, err := Open(datasource.NewFileArchive("file://"+p, p, 0, nil))
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Entries(), 1)
	assert.Equal(t, "h\nv\n", readAll(t, r.Entries()[0]))
}

func TestOpen_DirectoryRecurses(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deeper", "b.csv"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "skip.json"), []byte("{}"), 0o644))

	r, err := Open(datasource.NewFileArchive(dir, dir, 0, nil))
	require.NoError(t, err)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.csv", entries[0].Name)
	assert.Equal(t, "nested/deeper/b.csv", entries[1].Name)
	assert.EqualValues(t, 2, entries[1].Size)
	assert.Equal(t, "bb", readAll(t, entries[1]))
}

func TestOpen_MissingPath(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "gone.zip")
	_, err := Open(datasource.NewFileArchive(p, p, 0, nil))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsCSV(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"a.csv":             true,
		"dir/A.CSV":         true,
		"a.csv.bak":         false,
		"a.txt":             false,
		"__MACOSX/a.csv":    false,
		"x/__MACOSX/a.csv":  false,
		"dir/._a.csv":       false,
		`windows\style.csv`: true,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsCSV(name), name)
	}
}
