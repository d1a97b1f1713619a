package semantic

import (
	"context"
	"fmt"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
)

// DefaultTopK is the neighbor count used when the caller passes k <= 0.
const DefaultTopK = 5

// Result is scored, record-resolved evidence from one similarity search.
// StaleIDs lists neighbors whose records have been deleted since indexing;
// they are dropped from Evidence and reported so the caller can count them
// and schedule index cleanup.
type Result struct {
	Evidence []domain.EvidenceItem
	StaleIDs []string
}

// Retriever embeds a query, searches the vector index, and resolves the
// neighbors back to full inspection records.
type Retriever struct {
	embedder llm.Embedder
	index    Searcher
	store    records.Store
}

func NewRetriever(embedder llm.Embedder, index Searcher, store records.Store) *Retriever {
	return &Retriever{embedder: embedder, index: index, store: store}
}

// Retrieve runs the semantic path for one query. Scores are normalized to
// [0,1]; evidence keeps the index's ranking order.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return Result{}, fmt.Errorf("semantic: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return Result{}, fmt.Errorf("semantic: embedder returned %d vectors for one query", len(vectors))
	}

	neighbors, err := r.index.Nearest(ctx, vectors[0], k)
	if err != nil {
		return Result{}, err
	}
	if len(neighbors) == 0 {
		return Result{}, nil
	}

	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if n.RecordID != "" {
			ids = append(ids, n.RecordID)
		}
	}
	found, err := r.store.GetByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("semantic: resolve records: %w", err)
	}

	var res Result
	for _, n := range neighbors {
		if n.RecordID == "" {
			continue
		}
		rec, ok := found[n.RecordID]
		if !ok {
			res.StaleIDs = append(res.StaleIDs, n.RecordID)
			continue
		}
		res.Evidence = append(res.Evidence, domain.EvidenceItem{
			Record:     rec,
			Provenance: domain.FromSemantic,
			Score:      NormalizeScore(n.Score),
		})
	}
	return res, nil
}

// NormalizeScore maps a raw cosine or dot similarity from [-1,1] onto
// [0,1]. Results outside the expected range clamp rather than leak
// out-of-band scores into merging.
func NormalizeScore(raw float32) float64 {
	s := (float64(raw) + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
