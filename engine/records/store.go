// Package records provides read access to the inspection table: the Store
// interface the retrieval paths depend on, the filter-to-SQL builder, and
// the SQLite implementation. The engine never mutates records; writes exist
// only for ingest tooling upstream of retrieval.
package records

import (
	"context"
	"errors"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// ErrNotFound reports a record ID with no live row.
var ErrNotFound = errors.New("records: record not found")

// Store is the read-only view of the inspection table. Find and
// CountMatches execute the bounded filter algebra; GetByIDs resolves
// semantic hits; ScanPage walks the table for index builds.
type Store interface {
	Find(ctx context.Context, f domain.Filter, limit int) ([]domain.InspectionRecord, error)
	CountMatches(ctx context.Context, f domain.Filter) (int, error)
	Get(ctx context.Context, id string) (domain.InspectionRecord, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.InspectionRecord, error)
	ScanPage(ctx context.Context, afterID string, limit int) ([]domain.InspectionRecord, error)
}
