package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
)

func cand(id, owner string, row int) domain.Candidate {
	return domain.Candidate{Property: domain.Property{ID: id, OwnerName: owner}, FileName: "f.csv", RowNumber: row}
}

func TestDeDupKeepFirst(t *testing.T) {
	t.Parallel()

	in := []domain.Candidate{cand("A", "first", 1), cand("A", "second", 2), cand("B", "b", 3)}
	kept, dropped := DeDup{}.Apply(in)

	assert.Equal(t, []domain.Candidate{cand("A", "first", 1), cand("B", "b", 3)}, kept)
	assert.Equal(t, []domain.Candidate{cand("A", "second", 2)}, dropped)
}

func TestDeDupNoDuplicates(t *testing.T) {
	t.Parallel()

	in := []domain.Candidate{cand("A", "a", 1), cand("B", "b", 2)}
	kept, dropped := DeDup{}.Apply(in)
	assert.Equal(t, in, kept)
	assert.Empty(t, dropped)
}

func TestDeDupEmpty(t *testing.T) {
	t.Parallel()

	kept, dropped := DeDup{}.Apply(nil)
	assert.Empty(t, kept)
	assert.Empty(t, dropped)
}

func TestDeDupManyRepeats(t *testing.T) {
	t.Parallel()

	in := []domain.Candidate{cand("A", "1", 1), cand("A", "2", 2), cand("A", "3", 3), cand("B", "4", 4), cand("B", "5", 5)}
	kept, dropped := DeDup{}.Apply(in)
	assert.Len(t, kept, 2)
	assert.Len(t, dropped, 3)
	assert.Equal(t, "1", kept[0].OwnerName)
	assert.Equal(t, "4", kept[1].OwnerName)
}
