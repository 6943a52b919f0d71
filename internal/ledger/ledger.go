// Package ledger tracks import runs in the data_imports table. Apart from
// Create and Cancel, writes are best-effort: a failed status write is logged
// and the import carries on.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// ErrFinished is returned by Cancel for a run already in a terminal state.
var ErrFinished = errors.New("ledger: import already finished")

// Ledger writes ImportRun rows. It is safe for concurrent use.
type Ledger struct {
	store storage.LedgerStore
	log   zerolog.Logger
	newID func() string

	mu        sync.Mutex
	finalized map[string]domain.ImportStatus
	// order lists finalized ids oldest first; once it exceeds keep the
	// oldest id is forgotten.
	order []string
	keep  int
}

// finalizedKept bounds how many finalized runs a Ledger remembers.
const finalizedKept = 256

// New returns a Ledger over store.
func New(store storage.LedgerStore, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		log:       log,
		newID:     uuid.NewString,
		finalized: map[string]domain.ImportStatus{},
		keep:      finalizedKept,
	}
}

// Create inserts a pending run for sourceURL. Unlike the other writes its
// failure is returned: without a row there is nothing to report progress on.
func (l *Ledger) Create(ctx context.Context, sourceURL string) (domain.ImportRun, error) {
	now := storage.Now()
	run := domain.ImportRun{
		ID:        l.newID(),
		SourceURL: sourceURL,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.CreateImport(ctx, run); err != nil {
		return domain.ImportRun{}, fmt.Errorf("ledger: create import: %w", err)
	}
	l.log.Info().Str("import_id", run.ID).Msg("ledger: import created")
	return run, nil
}

// Begin records the counted total and moves a pending run to in_progress.
// It reports false when the run was cancelled while it was still pending;
// the cancelled status is left in place.
func (l *Ledger) Begin(ctx context.Context, id string, total int64) bool {
	if err := l.store.UpdateTotal(ctx, id, total); err != nil {
		l.warn(err, id, "ledger: set total failed")
	}
	st, from := domain.StatusInProgress, domain.StatusPending
	var zero int64
	err := l.store.UpdateImport(ctx, id, storage.ImportUpdate{Status: &st, Successful: &zero, Failed: &zero, From: &from})
	switch {
	case err == nil:
		return true
	case errors.Is(err, storage.ErrNotFound) && l.cancelled(ctx, id):
		l.log.Info().Str("import_id", id).Msg("ledger: import cancelled before loading")
		return false
	}
	l.warn(err, id, "ledger: begin failed")
	return true
}

// Progress persists the running counters.
func (l *Ledger) Progress(ctx context.Context, id string, successful, failed int64) {
	l.update(ctx, id, storage.ImportUpdate{Successful: &successful, Failed: &failed}, "ledger: progress update failed")
}

// Finalize writes the terminal state of a run. Only the first call per id
// has an effect; it reports whether this call was that one. A run cancelled
// from elsewhere stays cancelled whatever status is passed.
func (l *Ledger) Finalize(ctx context.Context, id string, status domain.ImportStatus, successful, failed int64, errMsg string) (domain.ImportStatus, bool) {
	l.mu.Lock()
	if prev, done := l.finalized[id]; done {
		l.mu.Unlock()
		return prev, false
	}
	l.finalized[id] = status
	l.order = append(l.order, id)
	if len(l.order) > l.keep {
		delete(l.finalized, l.order[0])
		l.order = l.order[1:]
	}
	l.mu.Unlock()

	// The run's own context may already be cancelled; the write must land.
	ctx = context.WithoutCancel(ctx)
	if status != domain.StatusCancelled && l.cancelled(ctx, id) {
		status = domain.StatusCancelled
		l.mu.Lock()
		l.finalized[id] = status
		l.mu.Unlock()
	}

	u := storage.ImportUpdate{Status: &status, Successful: &successful, Failed: &failed}
	if errMsg != "" {
		u.ErrorMessage = &errMsg
	}
	l.update(ctx, id, u, "ledger: finalize failed")
	l.log.Info().
		Str("import_id", id).
		Str("status", string(status)).
		Int64("successful", successful).
		Int64("failed", failed).
		Msg("ledger: import finalized")
	return status, true
}

// Cancel flips a live run to cancelled. Unknown ids yield
// storage.ErrNotFound and finished runs ErrFinished.
func (l *Ledger) Cancel(ctx context.Context, id string) (domain.ImportRun, error) {
	run, err := l.store.GetImport(ctx, id)
	if err != nil {
		return domain.ImportRun{}, err
	}
	if run.Status.Terminal() {
		return run, ErrFinished
	}
	st := domain.StatusCancelled
	if err := l.store.UpdateImport(ctx, id, storage.ImportUpdate{Status: &st}); err != nil {
		return run, fmt.Errorf("ledger: cancel %s: %w", id, err)
	}
	run.Status = st
	l.log.Info().Str("import_id", id).Msg("ledger: import cancelled")
	return run, nil
}

// Get returns the current snapshot of a run.
func (l *Ledger) Get(ctx context.Context, id string) (domain.ImportRun, error) {
	return l.store.GetImport(ctx, id)
}

// cancelled reads the stored status of id. Read errors count as not
// cancelled.
func (l *Ledger) cancelled(ctx context.Context, id string) bool {
	run, err := l.store.GetImport(ctx, id)
	return err == nil && run.Status == domain.StatusCancelled
}

// IsCancelled reports whether another caller has cancelled id.
func (l *Ledger) IsCancelled(ctx context.Context, id string) bool { return l.cancelled(ctx, id) }

// TerminalStatus maps the outcome of a run onto its final status.
func TerminalStatus(failed int64, aborted, cancelled bool) domain.ImportStatus {
	switch {
	case cancelled:
		return domain.StatusCancelled
	case aborted:
		return domain.StatusFailed
	case failed > 0:
		return domain.StatusCompletedWithErrors
	}
	return domain.StatusCompleted
}

func (l *Ledger) update(ctx context.Context, id string, u storage.ImportUpdate, msg string) {
	if err := l.store.UpdateImport(ctx, id, u); err != nil {
		l.warn(err, id, msg)
	}
}

func (l *Ledger) warn(err error, id, msg string) {
	l.log.Warn().Err(err).Str("import_id", id).Msg(msg)
}
