// Command backfill builds the vector index from the inspection record
// store. It scans every record, embeds its summary, and upserts one point
// per record into Qdrant. Safe to re-run: point IDs are deterministic, so
// a rebuild overwrites in place instead of duplicating.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/aditya01hpl/Inspectra/config"
	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/index"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/engine/semantic"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	recreate := flag.Bool("recreate", false, "drop and recreate the collection before indexing")
	pageSize := flag.Int("page", 0, "records per store scan page (0 = default)")
	batchSize := flag.Int("batch", 0, "summaries per embedding call (0 = default)")
	workers := flag.Int("workers", 0, "concurrent embedding batches (0 = default)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := records.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("open record store: %v", err)
	}
	defer store.Close()

	vectors, err := semantic.NewQdrant(cfg.Vector.Addr, cfg.Vector.Collection)
	if err != nil {
		log.Fatalf("qdrant connect: %v", err)
	}
	defer vectors.Close()

	if *recreate {
		log.Printf("Dropping collection %q", cfg.Vector.Collection)
		if err := vectors.DeleteCollection(ctx); err != nil {
			log.Fatalf("drop collection: %v", err)
		}
	}
	if err := vectors.EnsureCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.Metric); err != nil {
		log.Fatalf("ensure collection: %v", err)
	}
	if err := vectors.ValidateCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.Metric); err != nil {
		log.Fatalf("collection mismatch: %v", err)
	}

	var embedder llm.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		embedder = llm.NewOpenAI(cfg.LLM.APIKey(), cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		embedder = llm.NewOllama(cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}

	total, err := store.CountMatches(ctx, domain.Filter{})
	if err != nil {
		log.Fatalf("count records: %v", err)
	}
	log.Printf("Indexing %d records from %s into %q (%d dims, %s)",
		total, cfg.Store.Path, cfg.Vector.Collection, cfg.Embedding.Dimensions, cfg.Vector.Metric)

	builder := index.NewBuilder(store, vectors, embedder, slog.Default(), index.Options{
		PageSize:  *pageSize,
		BatchSize: *batchSize,
		Workers:   *workers,
	})

	start := time.Now()
	stats, err := builder.Rebuild(ctx)
	if err != nil {
		log.Fatalf("rebuild failed after %d of %d records: %v", stats.Indexed, total, err)
	}

	log.Printf("Done! Scanned: %d, Indexed: %d in %s",
		stats.Scanned, stats.Indexed, time.Since(start).Round(time.Millisecond))
}
