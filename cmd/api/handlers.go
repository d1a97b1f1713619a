package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/qa"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/pkg/metrics"
	"github.com/aditya01hpl/Inspectra/pkg/natsutil"
	"github.com/aditya01hpl/Inspectra/pkg/session"
)

// asker is the slice of the qa service the handlers need.
type asker interface {
	Ask(ctx context.Context, req qa.Request) (*qa.Response, error)
}

// vectorChecker probes the vector index for the health endpoint.
type vectorChecker interface {
	ValidateCollection(ctx context.Context, dims int, metric string) error
}

// eventPublisher is the index maintenance bus as the API sees it.
type eventPublisher interface {
	PublishStale(ctx context.Context, recordIDs []string)
	PublishReindex(ctx context.Context, ev natsutil.ReindexEvent) error
}

type server struct {
	qa       asker
	store    records.Store
	vectors  vectorChecker
	sessions *session.Store
	events   eventPublisher
	reg      *metrics.Registry
	logger   *slog.Logger

	// dims and metric are the configured collection geometry, re-checked
	// by the health endpoint.
	dims   int
	metric string
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/records/{id}", s.handleRecord)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("POST /api/admin/reindex", s.handleReindex)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

// askResponse is the JSON reply for POST /api/ask.
type askResponse struct {
	Answer      string            `json:"answer"`
	Grounded    bool              `json:"grounded"`
	RefusalCode string            `json:"refusal_code,omitempty"`
	Plan        domain.PlanTag    `json:"plan"`
	Citations   []domain.Citation `json:"citations"`
	Suggestion  string            `json:"suggestion,omitempty"`
	Model       string            `json:"model,omitempty"`
	Retried     bool              `json:"retried,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	Stats       qa.Stats          `json:"stats"`
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req qa.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "request body is not valid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "invalid-request", "question is required")
		return
	}

	resp, err := s.qa.Ask(r.Context(), req)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:      resp.Answer.Text,
		Grounded:    resp.Answer.Grounded,
		RefusalCode: resp.Answer.RefusalCode,
		Plan:        resp.Plan,
		Citations:   resp.Answer.Evidence.Citations(),
		Suggestion:  resp.Suggestion,
		Model:       resp.Answer.Model,
		Retried:     resp.Answer.Retried,
		SessionID:   req.SessionID,
		Stats:       resp.Stats,
	})
}

func (s *server) handleRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not-found", "no record with that ID")
			return
		}
		s.logger.Error("record lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, domain.CodeInternal, "record lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || !s.sessions.Clear(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not-found", "no such session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
		Vector  string `json:"vector"`
	}
	h := health{Status: "ok", Vector: "ok"}
	status := http.StatusOK

	n, err := s.store.CountMatches(r.Context(), domain.Filter{})
	if err != nil {
		s.logger.Error("health: record count failed", "err", err)
		h.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	h.Records = n

	if err := s.vectors.ValidateCollection(r.Context(), s.dims, s.metric); err != nil {
		s.logger.Error("health: vector check failed", "err", err)
		h.Status = "degraded"
		h.Vector = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, h)
}

// reindexRequest is the JSON body for POST /api/admin/reindex.
type reindexRequest struct {
	RecordIDs []string `json:"record_ids,omitempty"`
	All       bool     `json:"all,omitempty"`
}

func (s *server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "events-disabled", "index events are not enabled on this server")
		return
	}

	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-request", "request body is not valid JSON")
		return
	}
	if !req.All && len(req.RecordIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid-request", "record_ids or all is required")
		return
	}

	ev := natsutil.ReindexEvent{RecordIDs: req.RecordIDs, All: req.All}
	if err := s.events.PublishReindex(r.Context(), ev); err != nil {
		s.logger.Error("reindex publish failed", "err", err)
		writeError(w, http.StatusBadGateway, "publish-failed", "could not reach the event bus")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"records": len(req.RecordIDs),
		"all":     req.All,
	})
}

// writeTaxonomyError maps an engine error to its HTTP status. Taxonomy
// codes for caller mistakes keep their message; everything else gets a
// neutral phrase so adapter error text never crosses the boundary.
func (s *server) writeTaxonomyError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	switch code {
	case domain.CodePlanEmpty, domain.CodeInvalidField:
		writeError(w, http.StatusBadRequest, code, err.Error())
	case domain.CodeModelUnavailable:
		writeError(w, http.StatusServiceUnavailable, code, "the language model is unavailable, try again shortly")
	default:
		s.logger.Error("ask failed", "code", code, "err", err)
		writeError(w, http.StatusInternalServerError, code, "the engine could not complete this request")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
