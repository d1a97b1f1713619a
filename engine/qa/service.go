// Package qa orchestrates one question-answering run: classify the question
// into a retrieval plan, fan out across the structured and semantic paths,
// merge the evidence, and generate a grounded answer. The service owns the
// run-level policies — per-path timeouts and retries, partial-evidence
// degradation, the no-evidence short-circuit, session history, and the
// answer cache.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/engine/semantic"
	"github.com/aditya01hpl/Inspectra/pkg/cache"
	"github.com/aditya01hpl/Inspectra/pkg/fn"
	"github.com/aditya01hpl/Inspectra/pkg/metrics"
	"github.com/aditya01hpl/Inspectra/pkg/session"
)

// MaxTopK bounds per-request K overrides.
const MaxTopK = 50

// Classifier produces a retrieval plan for a question.
type Classifier interface {
	Classify(question string) (domain.RetrievalPlan, error)
}

// SemanticRetriever runs the vector path for a query.
type SemanticRetriever interface {
	Retrieve(ctx context.Context, query string, k int) (semantic.Result, error)
}

// Generator produces the final answer from merged evidence.
type Generator interface {
	Generate(ctx context.Context, question string, ev domain.EvidenceSet, history []string) (domain.Answer, error)
}

// EventPublisher emits index maintenance events. Implementations must not
// block; the orchestrator never waits on event delivery.
type EventPublisher interface {
	PublishStale(ctx context.Context, recordIDs []string)
}

// Options configures run behavior.
type Options struct {
	// TopK is the semantic neighbor count when the request doesn't override.
	TopK int
	// EvidenceCap bounds the merged evidence set.
	EvidenceCap int
	// RetrievalTimeout bounds each retrieval path per attempt.
	RetrievalTimeout time.Duration
	// RetryBackoff is the wait before a path's single timeout retry.
	RetryBackoff time.Duration
	// HistoryTurns is how many prior questions reach the generator.
	HistoryTurns int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:             5,
		EvidenceCap:      10,
		RetrievalTimeout: 5 * time.Second,
		RetryBackoff:     200 * time.Millisecond,
		HistoryTurns:     3,
	}
}

// Deps holds the service dependencies. Sessions, Answers, Events, Metrics,
// and Logger are optional.
type Deps struct {
	Classifier Classifier
	Store      records.Store
	Semantic   SemanticRetriever
	Generator  Generator

	Sessions *session.Store
	Answers  *cache.Cache[Response]
	Events   EventPublisher
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Service answers questions. Safe for concurrent use; runs share only the
// session store, the answer cache, and connection pools.
type Service struct {
	classifier Classifier
	store      records.Store
	vectors    SemanticRetriever
	generator  Generator

	sessions *session.Store
	answers  *cache.Cache[Response]
	events   EventPublisher
	reg      *metrics.Registry
	logger   *slog.Logger
	opts     Options
}

// New creates the orchestrator. Unset options fall back to DefaultOptions.
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.New()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.EvidenceCap <= 0 {
		opts.EvidenceCap = def.EvidenceCap
	}
	if opts.RetrievalTimeout <= 0 {
		opts.RetrievalTimeout = def.RetrievalTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = def.HistoryTurns
	}
	return &Service{
		classifier: deps.Classifier,
		store:      deps.Store,
		vectors:    deps.Semantic,
		generator:  deps.Generator,
		sessions:   deps.Sessions,
		answers:    deps.Answers,
		events:     deps.Events,
		reg:        reg,
		logger:     logger,
		opts:       opts,
	}
}

// Request is one question put to the engine.
type Request struct {
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Stats carries per-run timing and provenance metadata. On a cache hit the
// stage timings are those of the original run; only TotalMS and Cached are
// rewritten.
type Stats struct {
	ClassifyMS int64 `json:"classify_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
	TotalMS    int64 `json:"total_ms"`
	Cached     bool  `json:"cached,omitempty"`
}

// Response is the engine's reply to one request.
type Response struct {
	Answer     domain.Answer  `json:"answer"`
	Plan       domain.PlanTag `json:"plan"`
	Suggestion string         `json:"suggestion,omitempty"`
	Stats      Stats          `json:"stats"`
}

// Ask runs one orchestration: cache lookup, classification, retrieval
// fan-out, merge, generation, session bookkeeping. Refusals come back as
// Responses; the error return is reserved for the taxonomy's service
// failures.
func (s *Service) Ask(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, span := otel.Tracer("engine/qa").Start(ctx, "qa.ask")
	defer span.End()

	question := strings.TrimSpace(req.Question)
	k := req.TopK
	if k <= 0 {
		k = s.opts.TopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}

	var history []string
	if req.SessionID != "" && s.sessions != nil {
		for _, t := range s.sessions.Recent(req.SessionID, s.opts.HistoryTurns) {
			history = append(history, t.Question)
		}
	}

	key := answerKey(question, k)
	if len(history) == 0 && s.answers != nil {
		if cached, ok := s.answers.Get(key); ok {
			s.reg.Counter("inspectra_answer_cache_total", "Answer cache lookups", "result", "hit").Inc()
			cached.Stats.Cached = true
			cached.Stats.TotalMS = time.Since(start).Milliseconds()
			return &cached, nil
		}
		s.reg.Counter("inspectra_answer_cache_total", "Answer cache lookups", "result", "miss").Inc()
	}

	classifyStart := time.Now()
	plan, err := s.classifier.Classify(question)
	classifyMS := time.Since(classifyStart).Milliseconds()
	s.reg.Histogram("inspectra_stage_seconds", "Stage latency in seconds", nil, "stage", "classify").Since(classifyStart)
	if err != nil {
		s.reg.Counter("inspectra_plan_errors_total", "Classification failures by code", "code", domain.Code(err)).Inc()
		return nil, err
	}
	s.reg.Counter("inspectra_queries_total", "Queries by plan", "plan", string(plan.Tag)).Inc()
	s.logger.Info("qa plan", "tag", plan.Tag, "filter", plan.Filter.String(), "query_len", len(plan.Query))

	retrieveStart := time.Now()
	rctx, rspan := otel.Tracer("engine/qa").Start(ctx, "qa.retrieve")

	var (
		structured      []domain.EvidenceItem
		structuredTotal int
		structErr       error
		semRes          semantic.Result
		semErr          error
	)
	runStructured := plan.HasStructured()
	runSemantic := plan.HasSemantic()
	switch {
	case runStructured && runSemantic:
		errs := fn.FanOut(
			func() error {
				var err error
				structured, structuredTotal, err = s.runStructured(rctx, plan.Filter)
				return err
			},
			func() error {
				var err error
				semRes, err = s.runSemantic(rctx, plan.Query, k)
				return err
			},
		)
		structErr, semErr = errs[0], errs[1]
	case runStructured:
		structured, structuredTotal, structErr = s.runStructured(rctx, plan.Filter)
	case runSemantic:
		semRes, semErr = s.runSemantic(rctx, plan.Query, k)
	}
	rspan.End()
	retrieveMS := time.Since(retrieveStart).Milliseconds()
	s.reg.Histogram("inspectra_stage_seconds", "Stage latency in seconds", nil, "stage", "retrieve").Since(retrieveStart)

	if structErr != nil {
		s.reg.Counter("inspectra_path_errors_total", "Retrieval path failures", "path", "structured").Inc()
		s.logger.Warn("structured path failed", "error", structErr)
	}
	if semErr != nil {
		s.reg.Counter("inspectra_path_errors_total", "Retrieval path failures", "path", "semantic").Inc()
		s.logger.Warn("semantic path failed", "error", semErr)
	}
	// A failed path contributes nothing and the run degrades to partial
	// evidence. With no surviving path there is nothing to degrade to.
	switch {
	case structErr != nil && semErr != nil:
		return nil, structErr
	case structErr != nil && !runSemantic:
		return nil, structErr
	case semErr != nil && !runStructured:
		return nil, semErr
	}

	ev := MergeEvidence(structured, semRes.Evidence, s.opts.EvidenceCap)
	ev.StructuredTotal = structuredTotal
	ev.StaleDropped = len(semRes.StaleIDs)
	s.reg.Gauge("inspectra_evidence_size", "Evidence items in the last run").Set(int64(len(ev.Items)))

	if n := len(semRes.StaleIDs); n > 0 {
		s.reg.Counter("inspectra_stale_drops_total", "Semantic hits dropped as stale").Add(int64(n))
		s.logger.Info("stale index entries dropped", "count", n)
		if s.events != nil {
			s.events.PublishStale(ctx, semRes.StaleIDs)
		}
	}

	if ev.Empty() {
		s.reg.Counter("inspectra_refusals_total", "Refusals by reason", "reason", domain.CodeNoEvidence).Inc()
		suggestion := Suggest(plan)
		ans := domain.Answer{
			Text:        "No inspection records matched this question. " + suggestion,
			Evidence:    ev,
			RefusalCode: domain.CodeNoEvidence,
		}
		s.appendTurn(req.SessionID, question, ans.Text)
		return &Response{
			Answer:     ans,
			Plan:       plan.Tag,
			Suggestion: suggestion,
			Stats: Stats{
				ClassifyMS: classifyMS,
				RetrieveMS: retrieveMS,
				TotalMS:    time.Since(start).Milliseconds(),
			},
		}, nil
	}

	generateStart := time.Now()
	gctx, gspan := otel.Tracer("engine/qa").Start(ctx, "qa.generate")
	ans, err := s.generator.Generate(gctx, question, ev, history)
	gspan.End()
	generateMS := time.Since(generateStart).Milliseconds()
	s.reg.Histogram("inspectra_stage_seconds", "Stage latency in seconds", nil, "stage", "generate").Since(generateStart)
	if err != nil {
		s.reg.Counter("inspectra_generation_errors_total", "Generation failures by code", "code", domain.Code(err)).Inc()
		return nil, err
	}
	if ans.Retried {
		s.reg.Counter("inspectra_groundedness_retries_total", "Groundedness retries").Inc()
	}
	if ans.Refused() {
		s.reg.Counter("inspectra_refusals_total", "Refusals by reason", "reason", ans.RefusalCode).Inc()
	}

	resp := &Response{
		Answer: ans,
		Plan:   plan.Tag,
		Stats: Stats{
			ClassifyMS: classifyMS,
			RetrieveMS: retrieveMS,
			GenerateMS: generateMS,
			TotalMS:    time.Since(start).Milliseconds(),
		},
	}

	s.appendTurn(req.SessionID, question, ans.Text)
	if len(history) == 0 && ans.Grounded && s.answers != nil {
		s.answers.Set(key, *resp)
	}

	s.reg.Histogram("inspectra_query_seconds", "Total ask latency in seconds", nil).Since(start)
	return resp, nil
}

func (s *Service) runStructured(ctx context.Context, f domain.Filter) ([]domain.EvidenceItem, int, error) {
	var (
		items []domain.EvidenceItem
		total int
	)
	err := s.withPathRetry(ctx, func(ctx context.Context) error {
		recs, err := s.store.Find(ctx, f, 0)
		if err != nil {
			return err
		}
		total, err = s.store.CountMatches(ctx, f)
		if err != nil {
			return err
		}
		items = make([]domain.EvidenceItem, len(recs))
		for i, r := range recs {
			items[i] = domain.EvidenceItem{Record: r, Provenance: domain.FromStructured, Score: 1}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) runSemantic(ctx context.Context, query string, k int) (semantic.Result, error) {
	var res semantic.Result
	err := s.withPathRetry(ctx, func(ctx context.Context) error {
		r, err := s.vectors.Retrieve(ctx, query, k)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// withPathRetry runs one retrieval path under its own deadline. Expiry gets
// a single extra attempt after a short backoff; a second expiry surfaces as
// ErrRetrievalTimeout.
func (s *Service) withPathRetry(parent context.Context, f func(context.Context) error) error {
	attempt := func() error {
		ctx, cancel := context.WithTimeout(parent, s.opts.RetrievalTimeout)
		defer cancel()
		return f(ctx)
	}
	err := attempt()
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		select {
		case <-parent.Done():
			return parent.Err()
		case <-time.After(s.opts.RetryBackoff):
		}
		err = attempt()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("retrieval path: %w", domain.ErrRetrievalTimeout)
	}
	return err
}

func (s *Service) appendTurn(sessionID, question, answer string) {
	if sessionID == "" || s.sessions == nil {
		return
	}
	s.sessions.Append(sessionID, session.Turn{Question: question, Answer: answer, At: time.Now()})
}

// answerKey normalizes a question for answer-cache lookup.
func answerKey(question string, k int) string {
	return fmt.Sprintf("%d|%s", k, strings.ToLower(strings.Join(strings.Fields(question), " ")))
}
