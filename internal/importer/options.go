package importer

import (
	"github.com/kzetxa/getmoneyclaude/internal/config"
	"github.com/kzetxa/getmoneyclaude/internal/discard"
	"github.com/kzetxa/getmoneyclaude/internal/parser/csv"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Options parameterize one import run.
type Options struct {
	// URLs are the archives to load, in order.
	URLs []string

	BatchSize      int
	ConflictPolicy storage.ConflictPolicy
	IDPolicy       string

	// Analyze computes the id-coverage analysis while counting.
	Analyze      bool
	CountWorkers int

	// CancelPollBatches re-reads the ledger every N batches to notice a
	// cancel issued by another process. 0 disables polling.
	CancelPollBatches int

	// ClearSideTables empties discards and analysis with the property table.
	ClearSideTables bool

	CSV     csv.Options
	Discard discard.Options
	Job     string
}

// OptionsFromConfig derives run options from the loaded configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		URLs:              append([]string(nil), cfg.Source.URLs...),
		BatchSize:         cfg.Runtime.EffectiveBatchSize(),
		ConflictPolicy:    storage.ConflictPolicy(cfg.Storage.ConflictPolicy),
		IDPolicy:          cfg.Runtime.IDPolicy,
		Analyze:           cfg.Runtime.Analyze,
		CountWorkers:      cfg.Runtime.CountWorkers,
		CancelPollBatches: cfg.Runtime.CancelPollBatches,
		ClearSideTables:   cfg.Storage.ClearSideTables,
		CSV:               csv.Options{Comma: cfg.Parser.CommaRune(), LazyQuotes: cfg.Parser.LazyQuotes},
		Discard: discard.Options{
			BufferSize: cfg.Runtime.DiscardBuffer,
			AuditPath:  cfg.Audit.DiscardFile,
			Job:        cfg.Job,
		},
		Job: cfg.Job,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = config.DefaultBatchSize
	}
	if o.BatchSize > config.MaxBatchSize {
		o.BatchSize = config.MaxBatchSize
	}
	if o.ConflictPolicy == "" {
		o.ConflictPolicy = storage.ConflictUpdate
	}
	if o.CountWorkers <= 0 {
		o.CountWorkers = 1
	}
	if o.Job == "" {
		o.Job = "unclaimed_property_import"
	}
	if o.Discard.Job == "" {
		o.Discard.Job = o.Job
	}
	return o
}
