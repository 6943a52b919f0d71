// Package importer runs the unclaimed-property import: it fetches the source
// archives, counts their CSV rows, replaces the property table with the
// normalized and deduplicated records, and keeps the import ledger and the
// discard audit trail current along the way.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kzetxa/getmoneyclaude/internal/archive"
	"github.com/kzetxa/getmoneyclaude/internal/datasource"
	"github.com/kzetxa/getmoneyclaude/internal/discard"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/ledger"
	"github.com/kzetxa/getmoneyclaude/internal/metrics"
	"github.com/kzetxa/getmoneyclaude/internal/parser/csv"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
	"github.com/kzetxa/getmoneyclaude/internal/transformer/builtin"
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle          State = "idle"
	StateFetching      State = "fetching"
	StateExtracting    State = "extracting"
	StateCounting      State = "counting"
	StateLedgerCreated State = "ledger_created"
	StateTruncating    State = "truncating"
	StateLoading       State = "loading"
	StateFinalizing    State = "finalizing"
	StateDone          State = "done"
	StateFailedAborted State = "failed_aborted"
)

// ErrCancelled is returned by Run when the import was cancelled.
var ErrCancelled = errors.New("importer: import cancelled")

// Outcome summarizes a finished run.
type Outcome struct {
	ImportID   string
	Status     domain.ImportStatus
	Files      int
	Total      int64
	Successful int64
	Failed     int64
	// Discarded excludes insertion errors, which are counted in Failed.
	Discarded int64
	Discards  map[domain.DiscardReason]int64
	Duration  time.Duration
}

// Conserved reports whether every counted row landed in exactly one bucket.
func (o Outcome) Conserved() bool {
	return o.Successful+o.Failed+o.Discarded == o.Total
}

// Orchestrator sequences one import run at a time. The repository must not
// be loaded by another run concurrently: each run truncates the table first.
type Orchestrator struct {
	repo   storage.Repository
	fetch  datasource.Fetcher
	ledger *ledger.Ledger
	opt    Options
	log    zerolog.Logger

	state atomic.Value
}

// New returns an Orchestrator. The ledger must write to repo.
func New(repo storage.Repository, fetch datasource.Fetcher, l *ledger.Ledger, opt Options, log zerolog.Logger) *Orchestrator {
	o := &Orchestrator{repo: repo, fetch: fetch, ledger: l, opt: opt.withDefaults(), log: log}
	o.state.Store(StateIdle)
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State { return o.state.Load().(State) }

func (o *Orchestrator) enter(s State, importID string) {
	o.state.Store(s)
	o.log.Debug().Str("import_id", importID).Str("state", string(s)).Msg("importer: state")
}

// source is one CSV member together with the archive it came from.
type source struct {
	archive string
	entry   archive.Entry
}

// run carries the mutable counters of one import.
type run struct {
	id         string
	total      int64
	successful int64
	failed     int64
	batches    int64
	lastPoll   int64
	analysis   *domain.ImportAnalysis
}

// Run executes the import for the pending ledger row importID. It finalizes
// the ledger exactly once. The returned error is nil for completed runs,
// ErrCancelled for cancelled ones, and the abort cause otherwise.
func (o *Orchestrator) Run(ctx context.Context, importID string) (Outcome, error) {
	start := time.Now()
	r := &run{id: importID}
	log := o.log.With().Str("import_id", importID).Logger()

	sink, err := discard.NewSink(o.repo, importID, o.opt.Discard, log)
	if err != nil {
		return o.finish(ctx, r, nil, start, err)
	}

	files, cleanup, err := o.acquire(ctx, r)
	defer cleanup()
	if err != nil {
		return o.finish(ctx, r, sink, start, err)
	}

	if err := o.count(ctx, r, files); err != nil {
		return o.finish(ctx, r, sink, start, err)
	}
	// Nothing has been written yet; a cancel here keeps the current data.
	if err := o.checkCancel(ctx, r); err != nil {
		return o.finish(ctx, r, sink, start, err)
	}

	o.enter(StateTruncating, r.id)
	o.truncate(ctx, r.id)
	// Saved after truncation, which may clear the analysis table.
	if r.analysis != nil {
		if err := o.repo.SaveAnalysis(ctx, *r.analysis); err != nil {
			log.Warn().Err(err).Msg("importer: save analysis failed")
		}
	}

	o.enter(StateLoading, r.id)
	err = o.load(ctx, r, files, sink)
	return o.finish(ctx, r, sink, start, err)
}

// acquire fetches every archive and lists its CSV members. The returned
// cleanup releases readers and scratch files and is never nil.
func (o *Orchestrator) acquire(ctx context.Context, r *run) ([]source, func(), error) {
	var (
		archives []*datasource.Archive
		readers  []*archive.Reader
	)
	cleanup := func() {
		for _, rd := range readers {
			_ = rd.Close()
		}
		for _, a := range archives {
			if err := a.Close(); err != nil {
				o.log.Warn().Err(err).Str("archive", a.Name).Msg("importer: archive cleanup failed")
			}
		}
	}

	o.enter(StateFetching, r.id)
	for _, u := range o.opt.URLs {
		t := time.Now()
		a, err := o.fetch.Fetch(ctx, u)
		metrics.RecordStep(o.opt.Job, "fetch", err, time.Since(t))
		if err != nil {
			return nil, cleanup, fmt.Errorf("fetch %s: %w", u, err)
		}
		archives = append(archives, a)
		o.log.Info().Str("import_id", r.id).Str("archive", a.Name).Str("size", humanize.Bytes(uint64(a.Size))).
			Dur("took", time.Since(t).Truncate(time.Millisecond)).Msg("importer: archive fetched")
	}

	o.enter(StateExtracting, r.id)
	var files []source
	for _, a := range archives {
		t := time.Now()
		rd, err := archive.Open(a)
		metrics.RecordStep(o.opt.Job, "extract", err, time.Since(t))
		if err != nil {
			return nil, cleanup, err
		}
		readers = append(readers, rd)
		for _, e := range rd.Entries() {
			files = append(files, source{archive: a.Name, entry: e})
		}
		o.log.Info().Str("import_id", r.id).Str("archive", a.Name).Int("csv_files", len(rd.Entries())).Msg("importer: archive opened")
	}
	if len(files) == 0 {
		return nil, cleanup, archive.ErrNoCSV
	}
	return files, cleanup, nil
}

// count sums the data rows of every file before anything is written, then
// records the total on the ledger.
func (o *Orchestrator) count(ctx context.Context, r *run, files []source) error {
	o.enter(StateCounting, r.id)
	t := time.Now()
	counts := make([]fileCount, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opt.CountWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := countEntry(f.entry, o.opt.CSV, o.opt.Analyze)
			counts[i] = c
			return err
		})
	}
	err := g.Wait()
	metrics.RecordStep(o.opt.Job, "count", err, time.Since(t))
	if err != nil {
		return fmt.Errorf("importer: %w", err)
	}

	for i, c := range counts {
		r.total += c.rows
		o.log.Info().Str("import_id", r.id).Str("file", files[i].entry.Name).Int64("rows", c.rows).Msg("importer: file counted")
	}
	o.log.Info().Str("import_id", r.id).Int("files", len(files)).Int64("total", r.total).Msg("importer: total records to process")

	o.enter(StateLedgerCreated, r.id)
	if !o.ledger.Begin(ctx, r.id, r.total) {
		return ErrCancelled
	}
	if o.opt.Analyze {
		a := buildAnalysis(r.id, counts)
		a.CreatedAt = storage.Now()
		r.analysis = &a
		o.log.Info().Str("import_id", r.id).
			Int64("with_ids", a.RecordsWithIDs).
			Int64("without_ids", a.RecordsWithoutIDs).
			Float64("pct_with_ids", a.PercentageWithIDs).
			Msg("importer: id analysis")
	}
	return nil
}

// truncate clears the destination, and optionally the side tables. A
// failure is logged only: on a first run the tables may not exist yet.
func (o *Orchestrator) truncate(ctx context.Context, importID string) {
	t := time.Now()
	err := o.repo.Truncate(ctx)
	metrics.RecordStep(o.opt.Job, "truncate", err, time.Since(t))
	if err != nil {
		o.log.Warn().Err(err).Str("import_id", importID).Msg("importer: could not clear existing data")
	}
	if !o.opt.ClearSideTables {
		return
	}
	if err := o.repo.ClearDiscards(ctx); err != nil {
		o.log.Warn().Err(err).Str("import_id", importID).Msg("importer: could not clear discarded records")
	}
	if err := o.repo.ClearAnalysis(ctx); err != nil {
		o.log.Warn().Err(err).Str("import_id", importID).Msg("importer: could not clear import analysis")
	}
}

// load streams every file through the normalizer and committer in order.
func (o *Orchestrator) load(ctx context.Context, r *run, files []source, sink *discard.Sink) (err error) {
	t := time.Now()
	defer func() { metrics.RecordStep(o.opt.Job, "load", err, time.Since(t)) }()

	norm := builtin.NewNormalizer(builtin.NewIDGenerator(o.opt.IDPolicy))
	committer := storage.NewCommitter(o.repo, sink, o.opt.ConflictPolicy, o.opt.Job, o.log.With().Str("import_id", r.id).Logger())

	for i, f := range files {
		if err := o.checkCancel(ctx, r); err != nil {
			return err
		}
		o.log.Info().Str("import_id", r.id).Str("file", f.entry.Name).
			Int("index", i+1).Int("of", len(files)).Msg("importer: processing file")
		if err := o.loadFile(ctx, r, f, norm, committer, sink); err != nil {
			return err
		}
		o.ledger.Progress(ctx, r.id, r.successful, r.failed)
	}
	return nil
}

func (o *Orchestrator) loadFile(ctx context.Context, r *run, f source, norm *builtin.Normalizer, committer *storage.Committer, sink *discard.Sink) error {
	rc, err := f.entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	s, err := csv.NewStream(rc, o.opt.CSV)
	if err != nil {
		return fmt.Errorf("load %s: %w", f.entry.Name, err)
	}

	name := f.entry.Base()
	var rows, written, failed, discarded int64
	batch := make([]domain.Candidate, 0, o.opt.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := o.checkCancel(ctx, r); err != nil {
			return err
		}
		res, err := committer.Commit(ctx, batch)
		batch = batch[:0]
		r.batches++
		r.successful += int64(res.Written)
		r.failed += int64(res.Failed)
		written += int64(res.Written)
		failed += int64(res.Failed)
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
		}
		// A failed batch is already accounted for; the run continues.
		o.ledger.Progress(ctx, r.id, r.successful, r.failed)
		return nil
	}

	for {
		row, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", f.entry.Name, err)
		}
		rows++
		res := norm.Normalize(row, name)
		if !res.Accepted() {
			sink.Record(ctx, name, row.Number, res)
			discarded++
			continue
		}
		batch = append(batch, res.Candidate)
		if len(batch) >= o.opt.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	o.log.Info().Str("import_id", r.id).Str("file", f.entry.Name).
		Int64("rows", rows).
		Int64("written", written).
		Int64("failed", failed).
		Int64("discarded", discarded).
		Msg("importer: file completed")
	return nil
}

// checkCancel reports ErrCancelled when ctx is done or, every
// CancelPollBatches batches, when the ledger says another caller cancelled.
func (o *Orchestrator) checkCancel(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	n := int64(o.opt.CancelPollBatches)
	if n <= 0 || r.batches == 0 || r.batches == r.lastPoll || r.batches%n != 0 {
		return nil
	}
	r.lastPoll = r.batches
	if o.ledger.IsCancelled(ctx, r.id) {
		return ErrCancelled
	}
	return nil
}

// finish finalizes the ledger exactly once and builds the Outcome.
func (o *Orchestrator) finish(ctx context.Context, r *run, sink *discard.Sink, start time.Time, cause error) (Outcome, error) {
	o.enter(StateFinalizing, r.id)

	out := Outcome{
		ImportID:   r.id,
		Total:      r.total,
		Successful: r.successful,
		Failed:     r.failed,
	}
	if sink != nil {
		if err := sink.Close(ctx); err != nil {
			o.log.Warn().Err(err).Str("import_id", r.id).Msg("importer: discard sink close failed")
		}
		out.Discards = sink.Counts()
		out.Discarded = sink.Total(domain.ReasonInsertionError)
	}

	cancelled := errors.Is(cause, ErrCancelled) || errors.Is(cause, context.Canceled)
	aborted := cause != nil && !cancelled
	status := ledger.TerminalStatus(r.failed, aborted, cancelled)
	msg := ""
	if aborted {
		msg = cause.Error()
	}
	out.Status, _ = o.ledger.Finalize(ctx, r.id, status, r.successful, r.failed, msg)
	out.Duration = time.Since(start)
	metrics.RecordRun(o.opt.Job, string(out.Status))

	ev := o.log.Info()
	if aborted {
		ev = o.log.Error().Err(cause)
	}
	ev.Str("import_id", r.id).
		Str("status", string(out.Status)).
		Int64("total", out.Total).
		Int64("successful", out.Successful).
		Int64("failed", out.Failed).
		Int64("discarded", out.Discarded).
		Dur("elapsed", out.Duration.Truncate(time.Millisecond)).
		Msg("importer: import finished")

	switch {
	case aborted:
		o.enter(StateFailedAborted, r.id)
		return out, cause
	case out.Status == domain.StatusCancelled:
		o.enter(StateDone, r.id)
		return out, ErrCancelled
	}
	if !out.Conserved() {
		o.log.Warn().Str("import_id", r.id).Msg("importer: record counters do not add up to the counted total")
	}
	o.enter(StateDone, r.id)
	return out, nil
}
