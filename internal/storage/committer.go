package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/metrics"
	"github.com/kzetxa/getmoneyclaude/internal/transformer/builtin"
)

// DiscardRecorder receives the rows a commit refuses. Implementations must
// not fail the caller; recording is best-effort.
type DiscardRecorder interface {
	Reject(ctx context.Context, c domain.Candidate, reason domain.DiscardReason, msg string)
}

// CommitResult accounts for every row of one batch: Written + Failed +
// Duplicates == len(batch).
type CommitResult struct {
	Written    int
	Failed     int
	Duplicates int
}

// Committer dedups and upserts batches of candidates, one batch at a time.
// It is not safe for concurrent use.
type Committer struct {
	store    PropertyStore
	discards DiscardRecorder
	policy   ConflictPolicy
	job      string
	log      zerolog.Logger

	start     time.Time
	lastFlush time.Time
	total     int64
	lastTotal int64
	batches   int64
}

// NewCommitter returns a Committer writing to store and reporting rejected
// rows to discards.
func NewCommitter(store PropertyStore, discards DiscardRecorder, policy ConflictPolicy, job string, log zerolog.Logger) *Committer {
	if policy == "" {
		policy = ConflictUpdate
	}
	now := time.Now()
	return &Committer{
		store:     store,
		discards:  discards,
		policy:    policy,
		job:       job,
		log:       log,
		start:     now,
		lastFlush: now,
	}
}

// Commit removes intra-batch id repeats (recorded as duplicate_id), then
// upserts the survivors. When the upsert fails every survivor is recorded as
// an insertion_error discard, counted in Failed, and the error is returned;
// the caller may continue with the next batch.
func (c *Committer) Commit(ctx context.Context, batch []domain.Candidate) (CommitResult, error) {
	var res CommitResult
	if len(batch) == 0 {
		return res, nil
	}

	kept, dropped := builtin.DeDup{}.Apply(batch)
	for _, d := range dropped {
		c.discards.Reject(ctx, d, domain.ReasonDuplicateID, "Duplicate ID within batch")
	}
	res.Duplicates = len(dropped)
	metrics.RecordRow(c.job, "discarded_"+string(domain.ReasonDuplicateID), int64(len(dropped)))

	recs := make([]domain.Property, len(kept))
	for i := range kept {
		recs[i] = kept[i].Property
	}

	n, err := c.store.UpsertBatch(ctx, recs, c.policy)
	if err != nil {
		msg := err.Error()
		for _, k := range kept {
			c.discards.Reject(ctx, k, domain.ReasonInsertionError, msg)
		}
		res.Failed = len(kept)
		metrics.RecordRow(c.job, "failed", int64(len(kept)))
		c.log.Error().Err(err).Int("rows", len(kept)).Int64("total_written", c.total).Msg("loader: batch upsert failed")
		return res, fmt.Errorf("storage: commit batch: %w", err)
	}

	res.Written = int(n)
	c.total += n
	c.batches++
	metrics.RecordRow(c.job, "written", n)
	metrics.RecordBatches(c.job, 1)

	now := time.Now()
	sinceLast := now.Sub(c.lastFlush)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(c.total-c.lastTotal) / sinceLast.Seconds()
	}
	c.log.Debug().
		Int64("batch", c.batches).
		Float64("rps", rps).
		Int64("written", n).
		Int("duplicates", len(dropped)).
		Int64("total_written", c.total).
		Dur("elapsed", now.Sub(c.start).Truncate(time.Millisecond)).
		Msg("loader: batch committed")
	c.lastFlush = now
	c.lastTotal = c.total
	return res, nil
}

// Totals returns the rows written and batches committed so far.
func (c *Committer) Totals() (written, batches int64) { return c.total, c.batches }
