// Package archive enumerates the CSV members of a fetched source: a ZIP held
// in memory, a ZIP file on disk, or a directory of already extracted files.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
)

// ErrNoCSV marks a readable archive that holds no CSV members.
var ErrNoCSV = errors.New("archive: no csv files found")

// ArchiveError reports a container that could not be opened or read.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string { return fmt.Sprintf("archive: %s: %v", e.Path, e.Err) }
func (e *ArchiveError) Unwrap() error { return e.Err }

// Entry is one CSV member. Open may be called more than once and from
// several goroutines; each call returns an independent reader.
type Entry struct {
	// Name is the member path inside the archive, or the path relative to
	// the extracted directory, using forward slashes.
	Name string
	// Size is the uncompressed size when known.
	Size int64

	open func() (io.ReadCloser, error)
}

// Base returns the last element of Name.
func (e Entry) Base() string { return path.Base(e.Name) }

// Open returns a reader over the member's uncompressed bytes.
func (e Entry) Open() (io.ReadCloser, error) {
	rc, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", e.Name, err)
	}
	return rc, nil
}

// Reader holds an opened archive. Close releases the underlying file.
type Reader struct {
	entries []Entry
	closer  io.Closer
}

// Entries returns the CSV members in archive order (lexical order for
// directories). It is empty, not nil-with-error, when none are present.
func (r *Reader) Entries() []Entry { return r.entries }

// Close releases the archive file, if one was opened.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Open lists the CSV members of a. Failures to open the container are
// returned as *ArchiveError.
func Open(a *datasource.Archive) (*Reader, error) {
	if a.InMemory() {
		zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
		if err != nil {
			return nil, &ArchiveError{Path: a.Name, Err: err}
		}
		return &Reader{entries: zipEntries(zr.File)}, nil
	}

	fi, err := os.Stat(a.Path)
	if err != nil {
		return nil, &ArchiveError{Path: a.Path, Err: err}
	}
	if fi.IsDir() {
		entries, err := walkDir(a.Path)
		if err != nil {
			return nil, &ArchiveError{Path: a.Path, Err: err}
		}
		return &Reader{entries: entries}, nil
	}

	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return nil, &ArchiveError{Path: a.Path, Err: err}
	}
	return &Reader{entries: zipEntries(zr.File), closer: zr}, nil
}

// IsCSV reports whether name looks like a CSV member worth loading.
// Hidden files and macOS resource forks are skipped.
func IsCSV(name string) bool {
	name = filepath.ToSlash(name)
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}
	base := path.Base(name)
	if strings.HasPrefix(base, "._") {
		return false
	}
	return strings.EqualFold(path.Ext(base), ".csv")
}

func zipEntries(files []*zip.File) []Entry {
	out := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.FileInfo().IsDir() || !IsCSV(f.Name) {
			continue
		}
		out = append(out, Entry{
			Name: f.Name,
			Size: int64(f.UncompressedSize64),
			open: f.Open,
		})
	}
	return out
}

func walkDir(root string) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if !IsCSV(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Entry{
			Name: filepath.ToSlash(rel),
			Size: info.Size(),
			open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
		return nil
	})
	return out, err
}
