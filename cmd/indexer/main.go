// Command indexer keeps the vector index in step with the record store.
// It consumes reindex and stale events from NATS and applies them through
// the index builder, so the API server never writes to Qdrant itself.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aditya01hpl/Inspectra/config"
	"github.com/aditya01hpl/Inspectra/engine/index"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/engine/semantic"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
	"github.com/aditya01hpl/Inspectra/pkg/metrics"
	"github.com/aditya01hpl/Inspectra/pkg/natsutil"
)

var met = metrics.New()

// Indexer metrics
var (
	mReindexed = met.Counter("inspectra_indexer_reindexed_total", "Records re-embedded")
	mDeleted   = met.Counter("inspectra_indexer_deleted_total", "Vector points deleted")
	mRebuilds  = met.Counter("inspectra_indexer_rebuilds_total", "Full index rebuilds")
	mErrors    = func(stage string) *metrics.Counter {
		return met.Counter("inspectra_indexer_errors_total", "Indexer failures by stage", "stage", stage)
	}
	mBusy     = met.Gauge("inspectra_indexer_busy", "1 while an event is being applied")
	mApplyDur = met.Histogram("inspectra_indexer_apply_seconds", "Event apply latency", nil)
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config (optional)")
		queue       = flag.String("queue", "indexer", "NATS queue group")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus exposition port")
		batchSize   = flag.Int("batch", 0, "summaries per embedding call (0 = default)")
		workers     = flag.Int("workers", 0, "concurrent embedding batches (0 = default)")
	)
	flag.Parse()

	met.CollectRuntime("inspectra_indexer", 15*time.Second)
	met.ServeAsync(*metricsPort)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("config invalid", "error", err)
		os.Exit(1)
	}

	// Record store
	store, err := records.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Error("open record store failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Qdrant
	vectors, err := semantic.NewQdrant(cfg.Vector.Addr, cfg.Vector.Collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.Metric); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	if err := vectors.ValidateCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.Metric); err != nil {
		log.Error("qdrant collection mismatch", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", cfg.Vector.Collection, "dims", cfg.Embedding.Dimensions)

	// Embedder
	var embedder llm.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		embedder = llm.NewOpenAI(cfg.LLM.APIKey(), cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		embedder = llm.NewOllama(cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	log.Info("using embeddings", "provider", cfg.Embedding.Provider, "model", cfg.Embedding.Model)

	builder := index.NewBuilder(store, vectors, embedder, log, index.Options{
		BatchSize: *batchSize,
		Workers:   *workers,
	})

	// NATS
	nc, err := nats.Connect(cfg.Events.NATSURL,
		nats.Name("inspectra-indexer"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	subReindex, err := natsutil.SubscribeQueue(nc, natsutil.SubjectReindex, *queue,
		func(evCtx context.Context, ev natsutil.ReindexEvent) {
			applyReindex(evCtx, builder, log, ev)
		})
	if err != nil {
		log.Error("subscribe reindex failed", "error", err)
		os.Exit(1)
	}
	defer subReindex.Unsubscribe()

	subStale, err := natsutil.SubscribeQueue(nc, natsutil.SubjectStale, *queue,
		func(evCtx context.Context, ev natsutil.StaleEvent) {
			applyStale(evCtx, builder, log, ev)
		})
	if err != nil {
		log.Error("subscribe stale failed", "error", err)
		os.Exit(1)
	}
	defer subStale.Unsubscribe()

	log.Info("indexer running",
		"nats", cfg.Events.NATSURL,
		"queue", *queue,
		"subjects", []string{natsutil.SubjectReindex, natsutil.SubjectStale},
	)

	<-ctx.Done()
	log.Info("shutting down")
}

func applyReindex(ctx context.Context, builder *index.Builder, log *slog.Logger, ev natsutil.ReindexEvent) {
	mBusy.Set(1)
	defer mBusy.Set(0)
	start := time.Now()
	defer mApplyDur.Since(start)

	if ev.All {
		log.Info("full rebuild requested")
		stats, err := builder.Rebuild(ctx)
		if err != nil {
			mErrors("rebuild").Inc()
			log.Error("rebuild failed", "error", err, "indexed", stats.Indexed)
			return
		}
		mRebuilds.Inc()
		mReindexed.Add(int64(stats.Indexed))
		log.Info("rebuild done", "scanned", stats.Scanned, "indexed", stats.Indexed, "took", time.Since(start).Round(time.Millisecond))
		return
	}

	stats, err := builder.ReindexRecords(ctx, ev.RecordIDs)
	if err != nil {
		mErrors("reindex").Inc()
		log.Error("reindex failed", "error", err, "records", len(ev.RecordIDs))
		return
	}
	mReindexed.Add(int64(stats.Indexed))
	mDeleted.Add(int64(stats.Deleted))
	log.Info("reindex done", "indexed", stats.Indexed, "pruned", stats.Deleted)
}

func applyStale(ctx context.Context, builder *index.Builder, log *slog.Logger, ev natsutil.StaleEvent) {
	mBusy.Set(1)
	defer mBusy.Set(0)
	start := time.Now()
	defer mApplyDur.Since(start)

	stats, err := builder.DeleteRecords(ctx, ev.RecordIDs)
	if err != nil {
		mErrors("stale").Inc()
		log.Error("stale prune failed", "error", err, "records", len(ev.RecordIDs))
		return
	}
	mDeleted.Add(int64(stats.Deleted))
	log.Info("stale entries pruned", "deleted", stats.Deleted, "observed_at", ev.ObservedAt)
}
