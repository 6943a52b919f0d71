// Package storage contains the storage-agnostic contracts of the import and
// the batch Committer that drives them. Concrete backends (postgres, sqlite,
// mysql, mssql) live in subpackages and register themselves with New.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ConflictPolicy decides what an upsert does when the id already exists.
type ConflictPolicy string

const (
	// ConflictUpdate overwrites the existing row.
	ConflictUpdate ConflictPolicy = "update"
	// ConflictIgnore keeps the existing row and skips the new one.
	ConflictIgnore ConflictPolicy = "ignore"
)

// PropertyStore is the destination table.
type PropertyStore interface {
	// UpsertBatch writes recs keyed on id. recs must not repeat an id.
	// Writing the same batch twice leaves the table unchanged after the
	// first write. It returns the number of rows submitted.
	UpsertBatch(ctx context.Context, recs []domain.Property, policy ConflictPolicy) (int64, error)
	Truncate(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, f SearchFilter) ([]domain.Property, error)
}

// SearchFilter narrows a property search. Zero fields do not filter.
type SearchFilter struct {
	// OwnerName matches as a case-insensitive substring.
	OwnerName string
	// MinBalance and MaxBalance bound current_cash_balance inclusively.
	MinBalance *float64
	MaxBalance *float64
	// City matches owner_city as a case-insensitive substring.
	City string
	// PropertyType matches exactly.
	PropertyType string
	// Limit caps the result; see EffectiveLimit.
	Limit int
}

// Search result limits.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// EffectiveLimit clamps Limit to [1, MaxSearchLimit], defaulting to
// DefaultSearchLimit.
func (f SearchFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		return MaxSearchLimit
	}
	return f.Limit
}

// ImportUpdate carries the ledger fields to change. Nil fields are left as is.
type ImportUpdate struct {
	Status       *domain.ImportStatus
	Successful   *int64
	Failed       *int64
	ErrorMessage *string

	// From makes the update conditional on the stored status. When the row
	// exists with another status nothing is written and UpdateImport returns
	// ErrNotFound.
	From *domain.ImportStatus
}

// LedgerStore persists ImportRun rows.
type LedgerStore interface {
	CreateImport(ctx context.Context, run domain.ImportRun) error
	UpdateImport(ctx context.Context, id string, u ImportUpdate) error
	// UpdateTotal records the counted row total of a run.
	UpdateTotal(ctx context.Context, id string, total int64) error
	// GetImport returns ErrNotFound for an unknown id.
	GetImport(ctx context.Context, id string) (domain.ImportRun, error)
	// ListImports returns the newest runs first.
	ListImports(ctx context.Context, limit int) ([]domain.ImportRun, error)
}

// ReasonCount is one row of a GROUP BY discard_reason.
type ReasonCount struct {
	Reason domain.DiscardReason `db:"discard_reason"`
	Count  int64                `db:"n"`
}

// FileCount is one row of a GROUP BY file_name.
type FileCount struct {
	FileName string `db:"file_name"`
	Count    int64  `db:"n"`
}

// MessageCount is one row of a GROUP BY error_message.
type MessageCount struct {
	Message string `db:"error_message"`
	Count   int64  `db:"n"`
}

// DiscardBreakdown aggregates the discards of one import.
type DiscardBreakdown struct {
	Total     int64
	ByReason  []ReasonCount
	ByFile    []FileCount
	TopErrors []MessageCount
}

// DiscardStore persists DiscardedRecord rows.
type DiscardStore interface {
	InsertDiscards(ctx context.Context, recs []domain.DiscardedRecord) error
	// ClearDiscards removes every discard row.
	ClearDiscards(ctx context.Context) error
	// ListDiscards returns an import's discards in insertion order.
	ListDiscards(ctx context.Context, importID string, limit int) ([]domain.DiscardedRecord, error)
	CountDiscards(ctx context.Context, importID string) (int64, error)
	// DiscardBreakdown groups an import's discards; topN bounds TopErrors.
	DiscardBreakdown(ctx context.Context, importID string, topN int) (DiscardBreakdown, error)
}

// AnalysisStore persists the optional pre-load ImportAnalysis.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, a domain.ImportAnalysis) error
	ClearAnalysis(ctx context.Context) error
	// GetAnalysis returns ErrNotFound when the import has none.
	GetAnalysis(ctx context.Context, importID string) (domain.ImportAnalysis, error)
}

// Repository is what a backend provides.
type Repository interface {
	PropertyStore
	LedgerStore
	DiscardStore
	AnalysisStore

	// EnsureSchema creates the import tables when absent. It is idempotent.
	EnsureSchema(ctx context.Context) error
	Close()
}

// Now is the clock backends use to stamp rows. Tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }
