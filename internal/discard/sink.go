// Package discard records rows that never reached the property table. Each
// discard becomes a discarded_records row (buffered and flushed in chunks),
// bumps a per-reason tally, and is optionally appended to a local CSV audit
// file.
package discard

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/metrics"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
	"github.com/kzetxa/getmoneyclaude/internal/transformer/builtin"
)

// DefaultBufferSize is used when Options.BufferSize is not positive.
const DefaultBufferSize = 500

// Options configure a Sink.
type Options struct {
	// BufferSize is how many discards are held before a flush.
	BufferSize int
	// AuditPath, when set, receives a CSV line per discard.
	AuditPath string
	// Job labels metrics.
	Job string
}

// Sink collects the discards of one import run. It is safe for concurrent
// use. Store failures are logged and the affected rows dropped.
type Sink struct {
	store    storage.DiscardStore
	importID string
	opt      Options
	log      zerolog.Logger
	newID    func() string

	mu     sync.Mutex
	buf    []domain.DiscardedRecord
	counts map[domain.DiscardReason]int64
	lost   int64

	auditFile *os.File
	auditCSV  *csv.Writer
	auditEnc  *csvutil.Encoder
}

var _ storage.DiscardRecorder = (*Sink)(nil)

// auditRow is one line of the audit file.
type auditRow struct {
	ImportID string `csv:"import_id"`
	Reason   string `csv:"reason"`
	File     string `csv:"file_name"`
	Row      int    `csv:"row_number"`
	Error    string `csv:"error_message"`
	Raw      string `csv:"original_data"`
}

// NewSink returns a Sink writing to store under importID. It fails only when
// the audit file cannot be created.
func NewSink(store storage.DiscardStore, importID string, opt Options, log zerolog.Logger) (*Sink, error) {
	if opt.BufferSize <= 0 {
		opt.BufferSize = DefaultBufferSize
	}
	s := &Sink{
		store:    store,
		importID: importID,
		opt:      opt,
		log:      log,
		newID:    uuid.NewString,
		counts:   map[domain.DiscardReason]int64{},
	}
	if opt.AuditPath != "" {
		if err := os.MkdirAll(filepath.Dir(opt.AuditPath), 0o755); err != nil {
			return nil, fmt.Errorf("discard: create dir %s: %w", filepath.Dir(opt.AuditPath), err)
		}
		f, err := os.Create(opt.AuditPath)
		if err != nil {
			return nil, fmt.Errorf("discard: open %s: %w", opt.AuditPath, err)
		}
		s.auditFile = f
		s.auditCSV = csv.NewWriter(f)
		s.auditEnc = csvutil.NewEncoder(s.auditCSV)
	}
	return s, nil
}

// Record stores a row the Normalizer refused. Accepted results are ignored.
func (s *Sink) Record(ctx context.Context, file string, rowNumber int, res builtin.Result) {
	if res.Accepted() {
		return
	}
	s.add(ctx, res.Reason, res.Message, file, rowNumber, res.Original)
}

// Reject implements storage.DiscardRecorder for rows refused at commit time.
func (s *Sink) Reject(ctx context.Context, c domain.Candidate, reason domain.DiscardReason, msg string) {
	s.add(ctx, reason, msg, c.FileName, c.RowNumber, c.Property)
}

func (s *Sink) add(ctx context.Context, reason domain.DiscardReason, msg, file string, row int, original any) {
	raw, err := json.Marshal(original)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"unserializable": fmt.Sprint(original)})
	}
	rec := domain.DiscardedRecord{
		ID:            s.newID(),
		OriginalData:  raw,
		DiscardReason: reason,
		ErrorMessage:  domain.StringPtr(msg),
		FileName:      domain.StringPtr(file),
		ImportID:      s.importID,
		CreatedAt:     storage.Now(),
	}
	if row > 0 {
		rec.RowNumber = &row
	}
	metrics.RecordRow(s.opt.Job, "discarded_"+string(reason), 1)

	s.mu.Lock()
	s.counts[reason]++
	s.buf = append(s.buf, rec)
	if s.auditEnc != nil {
		if err := s.auditEnc.Encode(auditRow{
			ImportID: s.importID, Reason: string(reason), File: file, Row: row, Error: msg, Raw: string(raw),
		}); err != nil {
			s.log.Warn().Err(err).Msg("discard: audit write failed")
		}
	}
	full := len(s.buf) >= s.opt.BufferSize
	s.mu.Unlock()

	s.log.Debug().Str("reason", string(reason)).Str("file", file).Int("row", row).Msg("discard: row discarded")
	if full {
		s.Flush(ctx)
	}
}

// Flush writes buffered discards to the store. It runs even when ctx is
// already cancelled so a cancelled run keeps its audit trail.
func (s *Sink) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	if err := s.store.InsertDiscards(context.WithoutCancel(ctx), batch); err != nil {
		s.mu.Lock()
		s.lost += int64(len(batch))
		s.mu.Unlock()
		s.log.Warn().Err(err).Int("rows", len(batch)).Str("import_id", s.importID).Msg("discard: store write failed")
	}
}

// Counts returns a copy of the per-reason tallies.
func (s *Sink) Counts() map[domain.DiscardReason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.DiscardReason]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of discards seen, excluding reasons in except.
func (s *Sink) Total(except ...domain.DiscardReason) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for r, c := range s.counts {
		skip := false
		for _, e := range except {
			if r == e {
				skip = true
			}
		}
		if !skip {
			n += c
		}
	}
	return n
}

// Lost returns how many discards could not be stored.
func (s *Sink) Lost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Close flushes the buffer and the audit file.
func (s *Sink) Close(ctx context.Context) error {
	s.Flush(ctx)
	if s.auditFile == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditCSV.Flush()
	err := s.auditCSV.Error()
	if cerr := s.auditFile.Close(); err == nil {
		err = cerr
	}
	s.auditFile, s.auditEnc = nil, nil
	if err != nil {
		return fmt.Errorf("discard: close audit file: %w", err)
	}
	return nil
}
