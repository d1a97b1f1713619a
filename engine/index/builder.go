// Package index builds and repairs the vector index over inspection
// record summaries. The API server never writes vectors directly; the
// backfill tool and the indexer worker both go through Builder.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/engine/semantic"
	"github.com/aditya01hpl/Inspectra/pkg/fn"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
)

// VectorWriter is the slice of the vector store the builder needs.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByRecordIDs(ctx context.Context, ids []string) error
}

// Options tune a build run.
type Options struct {
	PageSize  int           // records per store scan page
	BatchSize int           // summaries per embedding call
	Workers   int           // concurrent embedding batches
	RetryWait time.Duration // backoff before the single embed retry
}

// DefaultOptions returns batch sizes that keep a local Ollama busy
// without drowning it.
func DefaultOptions() Options {
	return Options{PageSize: 512, BatchSize: 64, Workers: 4, RetryWait: time.Second}
}

// Builder embeds record summaries and writes them to the vector store.
type Builder struct {
	store    records.Store
	vectors  VectorWriter
	embedder llm.Embedder
	logger   *slog.Logger
	opts     Options
}

// NewBuilder wires a Builder. Zero-valued options fall back to defaults.
func NewBuilder(store records.Store, vectors VectorWriter, embedder llm.Embedder, logger *slog.Logger, opts Options) *Builder {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = def.RetryWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, vectors: vectors, embedder: embedder, logger: logger, opts: opts}
}

// Stats reports what one build run touched.
type Stats struct {
	Scanned int
	Indexed int
	Deleted int
}

// Rebuild walks the whole store in ID order and upserts one point per
// record. Points for records deleted since the last build are not
// removed here; stale reports handle those.
func (b *Builder) Rebuild(ctx context.Context) (Stats, error) {
	var stats Stats
	afterID := ""
	for {
		page, err := b.store.ScanPage(ctx, afterID, b.opts.PageSize)
		if err != nil {
			return stats, fmt.Errorf("scan after %q: %w", afterID, err)
		}
		if len(page) == 0 {
			return stats, nil
		}
		stats.Scanned += len(page)

		indexed, err := b.indexRecords(ctx, page)
		stats.Indexed += indexed
		if err != nil {
			return stats, err
		}

		afterID = page[len(page)-1].ID
		b.logger.Info("index progress", "scanned", stats.Scanned, "indexed", stats.Indexed)
	}
}

// ReindexRecords re-embeds the named records. IDs with no live record
// are removed from the index instead, so a reindex request doubles as
// a repair.
func (b *Builder) ReindexRecords(ctx context.Context, ids []string) (Stats, error) {
	var stats Stats
	ids = fn.Unique(ids)
	if len(ids) == 0 {
		return stats, nil
	}

	found, err := b.store.GetByIDs(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("resolve records: %w", err)
	}

	live := make([]domain.InspectionRecord, 0, len(found))
	var missing []string
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			live = append(live, rec)
		} else {
			missing = append(missing, id)
		}
	}
	stats.Scanned = len(ids)

	if len(live) > 0 {
		indexed, err := b.indexRecords(ctx, live)
		stats.Indexed += indexed
		if err != nil {
			return stats, err
		}
	}
	if len(missing) > 0 {
		if err := b.vectors.DeleteByRecordIDs(ctx, missing); err != nil {
			return stats, fmt.Errorf("delete missing records: %w", err)
		}
		stats.Deleted = len(missing)
		b.logger.Info("pruned points for missing records", "count", len(missing))
	}
	return stats, nil
}

// DeleteRecords removes the points for the given record IDs.
func (b *Builder) DeleteRecords(ctx context.Context, ids []string) (Stats, error) {
	ids = fn.Unique(ids)
	if len(ids) == 0 {
		return Stats{}, nil
	}
	if err := b.vectors.DeleteByRecordIDs(ctx, ids); err != nil {
		return Stats{}, fmt.Errorf("delete points: %w", err)
	}
	return Stats{Deleted: len(ids)}, nil
}

// indexRecords embeds and upserts records in batches with bounded
// parallelism. Returns how many records made it into the index.
func (b *Builder) indexRecords(ctx context.Context, recs []domain.InspectionRecord) (int, error) {
	batches := fn.Chunk(recs, b.opts.BatchSize)
	counts, err := fn.ParMapErr(batches, b.opts.Workers, func(batch []domain.InspectionRecord) (int, error) {
		if err := b.indexBatch(ctx, batch); err != nil {
			return 0, err
		}
		return len(batch), nil
	})
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}

func (b *Builder) indexBatch(ctx context.Context, batch []domain.InspectionRecord) error {
	texts := fn.Map(batch, func(r domain.InspectionRecord) string { return r.Summary() })

	// Embedding providers flap under load; one spaced retry rides out
	// the transient cases before the run aborts.
	vecs, err := fn.RetryValue(ctx, fn.Once(b.opts.RetryWait, llm.Unavailable),
		func(ctx context.Context) ([][]float32, error) {
			return b.embedder.Embed(ctx, texts)
		})
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(batch), err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embed batch: got %d vectors for %d records", len(vecs), len(batch))
	}

	points := make([]semantic.VectorRecord, len(batch))
	for i, rec := range batch {
		points[i] = semantic.VectorRecord{
			RecordID:    rec.ID,
			Summary:     texts[i],
			VIN:         rec.VIN,
			Model:       rec.Model,
			InspectedAt: rec.InspectedAt.Format(domain.DateLayout),
			Embedding:   vecs[i],
		}
	}
	if err := b.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert batch of %d: %w", len(points), err)
	}
	return nil
}
