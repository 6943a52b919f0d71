package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
)

// memStore is a map-backed PropertyStore.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]domain.Property
	calls  int
	failOn int // 1-based call number that fails; 0 never
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.Property{}} }

func (m *memStore) UpsertBatch(_ context.Context, recs []domain.Property, policy ConflictPolicy) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failOn == m.calls {
		return 0, errors.New("connection reset by peer")
	}
	seen := map[string]bool{}
	for _, r := range recs {
		if seen[r.ID] {
			return 0, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[r.ID] = true
		if _, exists := m.rows[r.ID]; exists && policy == ConflictIgnore {
			continue
		}
		m.rows[r.ID] = r
	}
	return int64(len(recs)), nil
}

func (m *memStore) Truncate(context.Context) error { m.rows = map[string]domain.Property{}; return nil }
func (m *memStore) Count(context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}
func (m *memStore) Search(context.Context, SearchFilter) ([]domain.Property, error) { return nil, nil }

type rejection struct {
	id     string
	reason domain.DiscardReason
	msg    string
}

type recorder struct{ got []rejection }

func (r *recorder) Reject(_ context.Context, c domain.Candidate, reason domain.DiscardReason, msg string) {
	r.got = append(r.got, rejection{c.ID, reason, msg})
}

func cands(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, len(ids))
	for i, id := range ids {
		out[i] = domain.Candidate{Property: domain.Property{ID: id, OwnerName: "owner " + id}, FileName: "f.csv", RowNumber: i + 1}
	}
	return out
}

func TestCommit_DedupsWithinBatch(t *testing.T) {
	t.Parallel()

	store, rec := newMemStore(), &recorder{}
	c := NewCommitter(store, rec, ConflictUpdate, "test", zerolog.Nop())

	res, err := c.Commit(context.Background(), cands("A", "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, CommitResult{Written: 2, Duplicates: 1}, res)
	assert.Equal(t, []rejection{{"A", domain.ReasonDuplicateID, "Duplicate ID within batch"}}, rec.got)

	n, _ := store.Count(context.Background())
	assert.EqualValues(t, 2, n)
}

func TestCommit_Idempotent(t *testing.T) {
	t.Parallel()

	for _, policy := range []ConflictPolicy{ConflictUpdate, ConflictIgnore} {
		store := newMemStore()
		c := NewCommitter(store, &recorder{}, policy, "test", zerolog.Nop())
		batch := cands("A", "B", "C")

		_, err := c.Commit(context.Background(), batch)
		require.NoError(t, err)
		before := len(store.rows)

		_, err = c.Commit(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, before, len(store.rows), "policy %s", policy)
	}
}

func TestCommit_InsertionErrorRecordsEveryRow(t *testing.T) {
	t.Parallel()

	store, rec := newMemStore(), &recorder{}
	store.failOn = 1
	c := NewCommitter(store, rec, ConflictUpdate, "test", zerolog.Nop())

	res, err := c.Commit(context.Background(), cands("A", "B", "B"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, CommitResult{Failed: 2, Duplicates: 1}, res)

	require.Len(t, rec.got, 3)
	assert.Equal(t, domain.ReasonDuplicateID, rec.got[0].reason)
	assert.Equal(t, rejection{"A", domain.ReasonInsertionError, "connection reset by peer"}, rec.got[1])
	assert.Equal(t, rejection{"B", domain.ReasonInsertionError, "connection reset by peer"}, rec.got[2])

	// The next batch still goes through.
	res, err = c.Commit(context.Background(), cands("C"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)

	written, batches := c.Totals()
	assert.EqualValues(t, 1, written)
	assert.EqualValues(t, 1, batches)
}

func TestCommit_EmptyBatch(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	c := NewCommitter(store, &recorder{}, "", "test", zerolog.Nop())
	res, err := c.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, CommitResult{}, res)
	assert.Equal(t, 0, store.calls)
}

func TestSearchFilter_EffectiveLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSearchLimit, SearchFilter{}.EffectiveLimit())
	assert.Equal(t, 10, SearchFilter{Limit: 10}.EffectiveLimit())
	assert.Equal(t, MaxSearchLimit, SearchFilter{Limit: 10_000}.EffectiveLimit())
}
