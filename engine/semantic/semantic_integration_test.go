//go:build integration

package semantic

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *Qdrant {
	t.Helper()
	vs, err := NewQdrant(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		vs.DeleteCollection(context.Background())
		vs.Close()
	})
	return vs
}

func TestQdrant_EnsureCollection(t *testing.T) {
	vs := testStore(t, "test_ensure")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	// Calling again should be idempotent
	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection (idempotent): %v", err)
	}
	if err := vs.ValidateCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("ValidateCollection: %v", err)
	}
}

func TestQdrant_ValidateCollectionMismatch(t *testing.T) {
	vs := testStore(t, "test_validate")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := vs.ValidateCollection(ctx, 8, "cosine"); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	if err := vs.ValidateCollection(ctx, 4, "dot"); !errors.Is(err, domain.ErrMetricMismatch) {
		t.Fatalf("expected metric mismatch, got %v", err)
	}
}

func TestQdrant_UpsertAndNearest(t *testing.T) {
	vs := testStore(t, "test_upsert_search")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	recs := []VectorRecord{
		{RecordID: "INSP-1", Summary: "scratched left fender", Embedding: []float32{1, 0, 0, 0}},
		{RecordID: "INSP-2", Summary: "dented hood", Embedding: []float32{0, 1, 0, 0}},
		{RecordID: "INSP-3", Summary: "scuffed bumper", Embedding: []float32{0.9, 0.1, 0, 0}},
	}
	if err := vs.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Search near [1,0,0,0] should return INSP-1 first
	neighbors, err := vs.Nearest(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].RecordID != "INSP-1" {
		t.Fatalf("expected INSP-1 first, got %q", neighbors[0].RecordID)
	}
	if s := NormalizeScore(neighbors[0].Score); s < 0 || s > 1 {
		t.Fatalf("normalized score out of range: %v", s)
	}
}

func TestQdrant_UpsertIdempotent(t *testing.T) {
	vs := testStore(t, "test_upsert_idem")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	rec := []VectorRecord{{RecordID: "INSP-1", Summary: "first pass", Embedding: []float32{1, 0, 0, 0}}}
	if err := vs.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Reindexing the same record must replace the point, not add one.
	rec[0].Summary = "second pass"
	if err := vs.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert (again): %v", err)
	}

	neighbors, err := vs.Nearest(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(neighbors) != 1 {
		t.Fatalf("expected 1 point after reindex, got %d", len(neighbors))
	}
}

func TestQdrant_DeleteByRecordIDs(t *testing.T) {
	vs := testStore(t, "test_delete")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4, "cosine"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	recs := []VectorRecord{
		{RecordID: "INSP-1", Summary: "to delete", Embedding: []float32{1, 0, 0, 0}},
		{RecordID: "INSP-2", Summary: "keep this", Embedding: []float32{0, 1, 0, 0}},
	}
	if err := vs.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := vs.DeleteByRecordIDs(ctx, []string{"INSP-1"}); err != nil {
		t.Fatalf("DeleteByRecordIDs: %v", err)
	}

	neighbors, err := vs.Nearest(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	for _, n := range neighbors {
		if n.RecordID == "INSP-1" {
			t.Fatal("deleted record still indexed")
		}
	}
}
