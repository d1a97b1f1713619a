// Package main implements the Inspectra API server: question answering
// over vehicle inspection records with structured and semantic retrieval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aditya01hpl/Inspectra/config"
	"github.com/aditya01hpl/Inspectra/engine/answer"
	"github.com/aditya01hpl/Inspectra/engine/classify"
	"github.com/aditya01hpl/Inspectra/engine/qa"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/engine/semantic"
	"github.com/aditya01hpl/Inspectra/pkg/cache"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
	"github.com/aditya01hpl/Inspectra/pkg/metrics"
	"github.com/aditya01hpl/Inspectra/pkg/mid"
	"github.com/aditya01hpl/Inspectra/pkg/natsutil"
	"github.com/aditya01hpl/Inspectra/pkg/resilience"
	"github.com/aditya01hpl/Inspectra/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("INSPECTRA_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Open the record store ---
	store, err := records.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	// --- Connect to Qdrant ---
	vectors, err := semantic.NewQdrant(cfg.Vector.Addr, cfg.Vector.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	// --- Build providers ---
	embedder := buildEmbedder(cfg)
	completer := buildCompleter(cfg)

	// The collection must agree with the embedder before any query runs;
	// a mismatch here answers nothing but garbage.
	if err := vectors.EnsureCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.Metric); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if err := vectors.ValidateCollection(ctx, embedder.Dimensions(), cfg.Vector.Metric); err != nil {
		return fmt.Errorf("validate collection: %w", err)
	}

	// --- Build the engine ---
	reg := metrics.New()
	reg.CollectRuntime("inspectra", 15*time.Second)

	sessions := session.NewStore(cfg.Sessions.TTL(), cfg.Sessions.MaxTurns)
	sessions.StartJanitor(ctx, time.Minute)

	// events stays a nil interface when disabled so the engine and the
	// admin endpoint both see "no bus" rather than a typed-nil publisher.
	var events eventPublisher
	if cfg.Events.Enabled {
		nc, err := nats.Connect(cfg.Events.NATSURL,
			nats.Name("inspectra-api"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		events = &natsPublisher{nc: nc, logger: logger}
	}

	svc := qa.New(qa.Deps{
		Classifier: classify.New(),
		Store:      store,
		Semantic:   semantic.NewRetriever(embedder, vectors, store),
		Generator: answer.NewGenerator(completer, answer.ContainmentPolicy{}, answer.Options{
			Temperature: cfg.LLM.TemperatureOrDefault(),
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout(),
		}),
		Sessions: sessions,
		Answers:  cache.New[qa.Response](cfg.Cache.Capacity, cfg.Cache.TTL()),
		Events:   events,
		Metrics:  reg,
		Logger:   logger,
	}, qa.Options{
		TopK:             cfg.Retrieval.TopK,
		EvidenceCap:      cfg.Retrieval.EvidenceCap,
		RetrievalTimeout: cfg.Retrieval.Timeout(),
		RetryBackoff:     cfg.Retrieval.RetryBackoff(),
	})

	// --- Build HTTP server ---
	api := &server{
		qa:       svc,
		store:    store,
		vectors:  vectors,
		sessions: sessions,
		events:   events,
		reg:      reg,
		logger:   logger,
		dims:     cfg.Embedding.Dimensions,
		metric:   cfg.Vector.Metric,
	}

	handler := mid.Chain(api.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.Metrics(reg),
		mid.OTel("inspectra-api"),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Server.Addr(), "llm", cfg.LLM.Provider, "events", cfg.Events.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildEmbedder wires the configured embedding provider behind the guard
// and the embedding cache.
func buildEmbedder(cfg config.Config) llm.Embedder {
	var inner llm.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		inner = llm.NewOpenAI(cfg.LLM.APIKey(), cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		inner = llm.NewOllama(cfg.Embedding.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	guarded := llm.GuardEmbedder(inner, llm.GuardOpts{
		Timeout: cfg.LLM.Timeout(),
		Breaker: resilience.BreakerOpts{FailThreshold: 5, Cooldown: 30 * time.Second},
	})
	return llm.NewCachedEmbedder(guarded, 2048, time.Hour)
}

// buildCompleter wires the configured answer provider behind the guard.
func buildCompleter(cfg config.Config) llm.Completer {
	var inner llm.Completer
	switch cfg.LLM.Provider {
	case "openai":
		inner = llm.NewOpenAI(cfg.LLM.APIKey(), cfg.LLM.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "anthropic":
		inner = llm.NewAnthropic(cfg.LLM.APIKey(), cfg.LLM.BaseURL, cfg.LLM.Model)
	default:
		inner = llm.NewOllama(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	return llm.GuardCompleter(inner, llm.GuardOpts{
		Timeout: cfg.LLM.Timeout(),
		Breaker: resilience.BreakerOpts{FailThreshold: 5, Cooldown: 30 * time.Second},
	})
}

// natsPublisher emits index maintenance events. Publish failures are
// logged and dropped; answering never waits on the event bus.
type natsPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func (p *natsPublisher) PublishStale(ctx context.Context, recordIDs []string) {
	ev := natsutil.StaleEvent{RecordIDs: recordIDs, ObservedAt: time.Now().UTC()}
	if err := natsutil.Publish(ctx, p.nc, natsutil.SubjectStale, ev); err != nil {
		p.logger.Warn("stale event publish failed", "err", err, "records", len(recordIDs))
	}
}

func (p *natsPublisher) PublishReindex(ctx context.Context, ev natsutil.ReindexEvent) error {
	return natsutil.Publish(ctx, p.nc, natsutil.SubjectReindex, ev)
}
