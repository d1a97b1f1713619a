package qa

import (
	"sort"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// MergeEvidence combines the structured and semantic contributions into one
// deduplicated evidence set. A record surfaced by both paths keeps its higher
// score and is tagged BOTH. Ordering is total — score descending, then
// inspection timestamp descending, then record ID ascending — so the same
// inputs always produce the same set. The result is truncated to limit when
// limit > 0.
func MergeEvidence(structured, semantic []domain.EvidenceItem, limit int) domain.EvidenceSet {
	byID := make(map[string]int, len(structured)+len(semantic))
	merged := make([]domain.EvidenceItem, 0, len(structured)+len(semantic))

	add := func(items []domain.EvidenceItem) {
		for _, it := range items {
			j, ok := byID[it.Record.ID]
			if !ok {
				byID[it.Record.ID] = len(merged)
				merged = append(merged, it)
				continue
			}
			cur := merged[j]
			if it.Score > cur.Score {
				cur.Score = it.Score
			}
			cur.Provenance = domain.FromBoth
			merged[j] = cur
		}
	}
	add(structured)
	add(semantic)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.InspectedAt.Equal(b.Record.InspectedAt) {
			return a.Record.InspectedAt.After(b.Record.InspectedAt)
		}
		return a.Record.ID < b.Record.ID
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return domain.EvidenceSet{
		Items:           merged,
		StructuredCount: len(structured),
		SemanticCount:   len(semantic),
	}
}
