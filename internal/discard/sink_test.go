package discard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
	"github.com/kzetxa/getmoneyclaude/internal/transformer/builtin"
)

// memDiscards is a slice-backed storage.DiscardStore.
type memDiscards struct {
	storage.DiscardStore

	mu      sync.Mutex
	rows    []domain.DiscardedRecord
	inserts int
	fail    bool
	ctxErr  error
}

func (m *memDiscards) InsertDiscards(ctx context.Context, recs []domain.DiscardedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.ctxErr = ctx.Err()
	if m.fail {
		return errors.New("disk full")
	}
	m.rows = append(m.rows, recs...)
	return nil
}

func TestSink_BuffersAndFlushes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memDiscards{}
	s, err := NewSink(store, "imp-1", Options{BufferSize: 2}, zerolog.Nop())
	require.NoError(t, err)

	s.Record(ctx, "a.csv", 3, builtin.Result{
		Reason: domain.ReasonMissingRequiredFields, Message: "Missing owner name",
		Original: map[string]string{"OWNER_NAME": ""},
	})
	assert.Equal(t, 0, store.inserts, "below buffer size")

	s.Reject(ctx, domain.Candidate{Property: domain.Property{ID: "P1", OwnerName: "Jane"}, FileName: "a.csv", RowNumber: 4},
		domain.ReasonDuplicateID, "Duplicate ID within batch")
	require.Equal(t, 1, store.inserts)
	require.Len(t, store.rows, 2)

	first := store.rows[0]
	assert.Equal(t, "imp-1", first.ImportID)
	assert.Equal(t, domain.ReasonMissingRequiredFields, first.DiscardReason)
	assert.Equal(t, 3, *first.RowNumber)
	assert.Equal(t, "a.csv", *first.FileName)
	assert.JSONEq(t, `{"OWNER_NAME":""}`, string(first.OriginalData))
	assert.NotEmpty(t, first.ID)
	assert.Contains(t, string(store.rows[1].OriginalData), `"id":"P1"`)

	s.Record(ctx, "a.csv", 5, builtin.Result{Reason: domain.ReasonParseError, Message: "bare quote"})
	require.NoError(t, s.Close(ctx))
	assert.Len(t, store.rows, 3)

	assert.EqualValues(t, 3, s.Total())
	assert.EqualValues(t, 2, s.Total(domain.ReasonDuplicateID))
	assert.EqualValues(t, 1, s.Counts()[domain.ReasonParseError])
}

func TestSink_IgnoresAcceptedResults(t *testing.T) {
	t.Parallel()
	store := &memDiscards{}
	s, err := NewSink(store, "imp", Options{}, zerolog.Nop())
	require.NoError(t, err)

	s.Record(context.Background(), "a.csv", 1, builtin.Result{})
	require.NoError(t, s.Close(context.Background()))
	assert.Zero(t, s.Total())
	assert.Zero(t, store.inserts)
}

func TestSink_StoreFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	store := &memDiscards{fail: true}
	s, err := NewSink(store, "imp", Options{BufferSize: 1}, zerolog.Nop())
	require.NoError(t, err)

	s.Record(context.Background(), "a.csv", 1, builtin.Result{Reason: domain.ReasonMalformedData})
	assert.EqualValues(t, 1, s.Lost())
	assert.EqualValues(t, 1, s.Total())
}

func TestSink_FlushSurvivesCancelledContext(t *testing.T) {
	t.Parallel()
	store := &memDiscards{}
	s, err := NewSink(store, "imp", Options{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Record(ctx, "a.csv", 1, builtin.Result{Reason: domain.ReasonMalformedData})
	cancel()
	require.NoError(t, s.Close(ctx))
	assert.Len(t, store.rows, 1)
	assert.NoError(t, store.ctxErr)
}

func TestSink_AuditFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit", "discards.csv")
	s, err := NewSink(&memDiscards{}, "imp-9", Options{AuditPath: path}, zerolog.Nop())
	require.NoError(t, err)

	s.Record(context.Background(), "b.csv", 7, builtin.Result{
		Reason: domain.ReasonMalformedData, Message: "Record has too few fields (2 of 9)",
		Original: map[string]string{"OWNER_NAME": "X, Y"},
	})
	require.NoError(t, s.Close(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "import_id,reason,file_name,row_number,error_message,original_data", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "imp-9,malformed_data,b.csv,7,"))
	assert.Contains(t, lines[1], `OWNER_NAME`)
}
