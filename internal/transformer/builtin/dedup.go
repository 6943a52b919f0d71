// Package builtin contains the record transforms of the import: the
// Normalizer that maps raw CSV rows onto domain.Property, and DeDup, which
// collapses repeated ids inside one batch.
package builtin

import "github.com/kzetxa/getmoneyclaude/internal/domain"

// DeDup removes intra-batch id collisions before a batch reaches the
// database. A single multi-row upsert cannot target the same primary key
// twice, so every batch passes through here first.
//
// The first occurrence of each id wins; later occurrences are returned as
// dropped so the caller can record them as duplicate_id discards. The table's
// primary key remains the backstop across batches.
type DeDup struct{}

// Apply partitions in into kept and dropped, both in input order.
func (DeDup) Apply(in []domain.Candidate) (kept, dropped []domain.Candidate) {
	if len(in) == 0 {
		return in, nil
	}
	seen := make(map[string]struct{}, len(in))
	kept = make([]domain.Candidate, 0, len(in))
	for _, c := range in {
		if _, dup := seen[c.ID]; dup {
			dropped = append(dropped, c)
			continue
		}
		seen[c.ID] = struct{}{}
		kept = append(kept, c)
	}
	return kept, dropped
}
