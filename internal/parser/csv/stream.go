// Package csv implements a pull-based, header-keyed CSV stream over
// encoding/csv. Rows are produced one at a time as the caller asks for them,
// so multi-gigabyte members never sit in memory as a whole.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Options configures the reader. The zero value reads RFC 4180 CSV with a
// comma delimiter and doubled-quote escaping.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// LazyQuotes relaxes quote handling (csv.Reader.LazyQuotes).
	LazyQuotes bool
}

// ParseError reports a structurally malformed record (unbalanced quotes and
// the like). It is carried on the Row rather than returned from Next so the
// stream can continue with the following record.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("csv: line %d: %v", e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Row is one data record.
type Row struct {
	// Number is the 1-based ordinal of the data row within its file
	// (the header is not counted).
	Number int

	// Line is the physical line the record starts on.
	Line int

	// Fields maps every header name to its cell. Cells missing from a short
	// row read as "" and cells beyond the header are dropped.
	Fields map[string]string

	// Width is how many cells the source row actually carried, capped at
	// the header width.
	Width int

	// Err is non-nil (a *ParseError) when the record could not be parsed.
	// Fields is nil in that case.
	Err error
}

// Stream yields header-keyed rows. It is not safe for concurrent use and
// cannot be restarted.
type Stream struct {
	cr     *csv.Reader
	header []string
	n      int
	done   bool
}

// NewStream consumes the header row from r and returns a stream positioned
// at the first data row. An input with no rows at all yields an empty stream.
// A header that cannot be parsed is a fatal error.
func NewStream(r io.Reader, opt Options) (*Stream, error) {
	cr := newReader(r, opt)
	s := &Stream{cr: cr}

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		s.done = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	s.header = make([]string, len(hdr))
	for i, h := range hdr {
		s.header[i] = strings.TrimSpace(h)
	}
	return s, nil
}

// Header returns the trimmed header names in file order.
func (s *Stream) Header() []string { return s.header }

// Next returns the next row, or io.EOF once the input is exhausted. A
// malformed record is returned as a Row with Err set and a nil error; any
// other read failure is returned as the error and ends the stream.
func (s *Stream) Next() (Row, error) {
	if s.done {
		return Row{}, io.EOF
	}
	rec, err := s.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return Row{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			s.n++
			return Row{Number: s.n, Line: pe.StartLine, Err: &ParseError{Line: pe.StartLine, Err: pe.Err}}, nil
		}
		s.done = true
		return Row{}, fmt.Errorf("csv: read: %w", err)
	}
	s.n++
	line, _ := s.cr.FieldPos(0)

	fields := make(map[string]string, len(s.header))
	width := min(len(rec), len(s.header))
	for i, h := range s.header {
		if i < len(rec) {
			fields[h] = rec[i]
		} else {
			fields[h] = ""
		}
	}
	return Row{Number: s.n, Line: line, Fields: fields, Width: width}, nil
}

// All adapts the stream to a range-over-func sequence. Iteration stops after
// the first fatal error is yielded.
func (s *Stream) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			row, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// CountRows counts the data rows in r the same way Stream would yield them:
// header excluded, blank lines skipped, malformed records included.
func CountRows(r io.Reader, opt Options) (int64, error) {
	cr := newReader(r, opt)
	cr.ReuseRecord = true

	var n int64
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return 0, fmt.Errorf("csv: count: %w", err)
			}
		}
		n++
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}

func newReader(r io.Reader, opt Options) *csv.Reader {
	cr := csv.NewReader(stripBOM(r))
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1
	return cr
}
