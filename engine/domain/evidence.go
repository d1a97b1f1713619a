package domain

// Provenance records which retrieval path produced an evidence item.
type Provenance string

const (
	FromStructured Provenance = "STRUCTURED"
	FromSemantic   Provenance = "SEMANTIC"
	FromBoth       Provenance = "BOTH"
)

// EvidenceItem is one retrieved record plus its provenance and a relevance
// score normalized to [0,1] within its own path: structured matches score
// 1.0, semantic matches score by similarity. Never mutated after creation;
// the merger builds replacement items instead of editing these.
type EvidenceItem struct {
	Record     InspectionRecord `json:"record"`
	Provenance Provenance       `json:"provenance"`
	Score      float64          `json:"score"`
}

// EvidenceSet is the merged, deduplicated, capped evidence for one run,
// ordered by (score desc, inspection timestamp desc, record ID asc). The
// aggregate fields feed the enrichment block of the answer prompt and the
// response metadata.
type EvidenceSet struct {
	Items []EvidenceItem `json:"items"`

	// StructuredTotal is the number of records matching the structured
	// filter before the row limit, 0 when the structured path did not run.
	StructuredTotal int `json:"structured_total,omitempty"`
	// StaleDropped counts semantic hits whose records no longer exist.
	StaleDropped int `json:"stale_dropped,omitempty"`
	// StructuredCount and SemanticCount are the per-path contributions
	// before merging.
	StructuredCount int `json:"structured_count,omitempty"`
	SemanticCount   int `json:"semantic_count,omitempty"`
}

// Empty reports whether no evidence survived retrieval and merging.
func (s EvidenceSet) Empty() bool { return len(s.Items) == 0 }

// IDs returns the record identifiers in evidence order.
func (s EvidenceSet) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.Record.ID
	}
	return ids
}

// Citation is the caller-facing projection of one evidence item.
type Citation struct {
	RecordID   string     `json:"record_id"`
	Provenance Provenance `json:"provenance"`
	Score      float64    `json:"score"`
}

// Citations projects the evidence set for transport.
func (s EvidenceSet) Citations() []Citation {
	cs := make([]Citation, len(s.Items))
	for i, it := range s.Items {
		cs[i] = Citation{RecordID: it.Record.ID, Provenance: it.Provenance, Score: it.Score}
	}
	return cs
}
