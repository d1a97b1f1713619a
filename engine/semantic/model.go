// Package semantic owns the vector index: the Qdrant-backed store, the
// deterministic record-to-point mapping, and the retriever that turns a
// question into scored, record-resolved evidence.
package semantic

import "context"

// Neighbor is one raw vector hit: the record it points at and the
// similarity score as reported by the index.
type Neighbor struct {
	RecordID string
	Score    float32
}

// VectorRecord is one point to index: the record's identity, the summary
// text that was embedded, and a few payload fields for operability.
type VectorRecord struct {
	RecordID    string
	Summary     string
	VIN         string
	Model       string
	InspectedAt string
	Embedding   []float32
}

// Searcher is the slice of the vector store the retriever needs.
type Searcher interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
}

// VectorStore is the full surface of the vector index, including the
// maintenance operations used only by index tooling.
type VectorStore interface {
	Searcher
	EnsureCollection(ctx context.Context, dims int, metric string) error
	ValidateCollection(ctx context.Context, dims int, metric string) error
	Upsert(ctx context.Context, records []VectorRecord) error
	DeleteByRecordIDs(ctx context.Context, ids []string) error
}
