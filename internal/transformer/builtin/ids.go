package builtin

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
)

// IDGenerator assigns a primary key to a record whose source carried none.
// Implementations hold per-run state and are not safe for concurrent use;
// create one per import run.
type IDGenerator interface {
	NextID(p *domain.Property) string
}

// NewIDGenerator returns the generator for policy ("deterministic" or
// "random"). Unknown policies fall back to deterministic.
func NewIDGenerator(policy string) IDGenerator {
	if policy == "random" {
		return NewRandomIDs(time.Now)
	}
	return NewDeterministicIDs()
}

// DeterministicIDs derives ids from record content so that re-importing the
// same file produces the same keys and upserts in place. Repeats of identical
// content within a run get a "_N" suffix (N >= 2) to stay unique.
type DeterministicIDs struct {
	seen map[xxh3.Uint128]int
	buf  strings.Builder
}

// NewDeterministicIDs returns an empty per-run generator.
func NewDeterministicIDs() *DeterministicIDs {
	return &DeterministicIDs{seen: make(map[xxh3.Uint128]int)}
}

// NextID implements IDGenerator.
func (g *DeterministicIDs) NextID(p *domain.Property) string {
	g.buf.Reset()
	for _, s := range []string{
		p.OwnerName, p.HolderName, p.PropertyType,
		p.CurrentCashBalance.String(), p.CashReported.String(), p.SharesReported.String(),
		domain.Deref(p.OwnerStreet1), domain.Deref(p.OwnerCity), domain.Deref(p.OwnerState),
		domain.Deref(p.OwnerZip), domain.Deref(p.HolderStreet1), domain.Deref(p.HolderCity),
		domain.Deref(p.CUSIP),
	} {
		g.buf.WriteString(s)
		g.buf.WriteByte(0x1f)
	}
	h := xxh3.HashString128(g.buf.String())
	g.seen[h]++

	id := fmt.Sprintf("gen_%016x%016x", h.Hi, h.Lo)
	if n := g.seen[h]; n > 1 {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	return id
}

// RandomIDs produces timestamp+counter+random ids. They are unique within a
// run but differ on every re-import, so ID-less rows accumulate as new rows
// under repeated imports.
type RandomIDs struct {
	now     func() time.Time
	counter int64
}

// NewRandomIDs returns a generator using now for the timestamp component.
func NewRandomIDs(now func() time.Time) *RandomIDs {
	return &RandomIDs{now: now}
}

// NextID implements IDGenerator.
func (g *RandomIDs) NextID(*domain.Property) string {
	g.counter++
	return fmt.Sprintf("generated_%d_%d_%06x", g.now().UnixMilli(), g.counter, rand.IntN(1<<24))
}
