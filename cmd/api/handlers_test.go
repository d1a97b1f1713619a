package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/engine/qa"
	"github.com/aditya01hpl/Inspectra/engine/records"
	"github.com/aditya01hpl/Inspectra/pkg/metrics"
	"github.com/aditya01hpl/Inspectra/pkg/natsutil"
	"github.com/aditya01hpl/Inspectra/pkg/session"
)

type stubAsker struct {
	resp *qa.Response
	err  error
	got  qa.Request
}

func (a *stubAsker) Ask(ctx context.Context, req qa.Request) (*qa.Response, error) {
	a.got = req
	if a.err != nil {
		return nil, a.err
	}
	return a.resp, nil
}

type stubStore struct {
	rec      domain.InspectionRecord
	count    int
	countErr error
}

func (s *stubStore) Find(ctx context.Context, f domain.Filter, limit int) ([]domain.InspectionRecord, error) {
	return nil, nil
}

func (s *stubStore) CountMatches(ctx context.Context, f domain.Filter) (int, error) {
	return s.count, s.countErr
}

func (s *stubStore) Get(ctx context.Context, id string) (domain.InspectionRecord, error) {
	if s.rec.ID == id {
		return s.rec, nil
	}
	return domain.InspectionRecord{}, records.ErrNotFound
}

func (s *stubStore) GetByIDs(ctx context.Context, ids []string) (map[string]domain.InspectionRecord, error) {
	return nil, nil
}

func (s *stubStore) ScanPage(ctx context.Context, afterID string, limit int) ([]domain.InspectionRecord, error) {
	return nil, nil
}

type stubChecker struct{ err error }

func (c *stubChecker) ValidateCollection(ctx context.Context, dims int, metric string) error {
	return c.err
}

type stubPublisher struct {
	reindex []natsutil.ReindexEvent
	err     error
}

func (p *stubPublisher) PublishStale(ctx context.Context, recordIDs []string) {}

func (p *stubPublisher) PublishReindex(ctx context.Context, ev natsutil.ReindexEvent) error {
	if p.err != nil {
		return p.err
	}
	p.reindex = append(p.reindex, ev)
	return nil
}

func newTestServer(s *server) *server {
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.reg == nil {
		s.reg = metrics.New()
	}
	if s.store == nil {
		s.store = &stubStore{}
	}
	if s.vectors == nil {
		s.vectors = &stubChecker{}
	}
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return m
}

func TestAskEndpoint(t *testing.T) {
	asker := &stubAsker{resp: &qa.Response{
		Answer: domain.Answer{
			Text:     "Two records show hail damage [1][2].",
			Grounded: true,
			Model:    "llama3.2",
			Evidence: domain.EvidenceSet{Items: []domain.EvidenceItem{
				{Record: domain.InspectionRecord{ID: "insp-000001"}, Provenance: domain.FromBoth, Score: 1},
				{Record: domain.InspectionRecord{ID: "insp-000002"}, Provenance: domain.FromSemantic, Score: 0.9},
			}},
		},
		Plan:  domain.PlanHybrid,
		Stats: qa.Stats{TotalMS: 42},
	}}
	srv := newTestServer(&server{qa: asker})

	rec := doJSON(t, srv.routes(), "POST", "/api/ask",
		`{"question":"which cars had hail damage?","top_k":7,"session_id":"s-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if asker.got.TopK != 7 || asker.got.SessionID != "s-1" {
		t.Errorf("request passthrough = %+v", asker.got)
	}
	body := decodeBody(t, rec)
	if body["answer"] != "Two records show hail damage [1][2]." {
		t.Errorf("answer = %v", body["answer"])
	}
	if body["plan"] != "HYBRID" {
		t.Errorf("plan = %v", body["plan"])
	}
	if body["session_id"] != "s-1" {
		t.Errorf("session_id = %v", body["session_id"])
	}
	cits, ok := body["citations"].([]any)
	if !ok || len(cits) != 2 {
		t.Fatalf("citations = %v", body["citations"])
	}
	first := cits[0].(map[string]any)
	if first["record_id"] != "insp-000001" || first["provenance"] != "BOTH" {
		t.Errorf("first citation = %v", first)
	}
}

func TestAskEndpointRefusalIs200(t *testing.T) {
	asker := &stubAsker{resp: &qa.Response{
		Answer: domain.Answer{
			Text:        "No inspection records matched this question. Try widening the date range.",
			RefusalCode: domain.CodeNoEvidence,
		},
		Plan:       domain.PlanStructured,
		Suggestion: "Try widening the date range.",
	}}
	srv := newTestServer(&server{qa: asker})

	rec := doJSON(t, srv.routes(), "POST", "/api/ask", `{"question":"inspections from 1999?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("refusals ride a 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["refusal_code"] != domain.CodeNoEvidence {
		t.Errorf("refusal_code = %v", body["refusal_code"])
	}
	if body["suggestion"] != "Try widening the date range." {
		t.Errorf("suggestion = %v", body["suggestion"])
	}
	if grounded, ok := body["grounded"].(bool); !ok || grounded {
		t.Errorf("grounded = %v", body["grounded"])
	}
}

func TestAskEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"plan empty", domain.ErrPlanEmpty, http.StatusBadRequest, domain.CodePlanEmpty},
		{"invalid field", domain.NewFieldError("warp_speed"), http.StatusBadRequest, domain.CodeInvalidField},
		{"model unavailable", domain.ErrModelUnavailable, http.StatusServiceUnavailable, domain.CodeModelUnavailable},
		{"retrieval timeout", domain.ErrRetrievalTimeout, http.StatusInternalServerError, domain.CodeRetrievalTimeout},
		{"unknown", errors.New("qdrant exploded"), http.StatusInternalServerError, domain.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&server{qa: &stubAsker{err: tt.err}})
			rec := doJSON(t, srv.routes(), "POST", "/api/ask", `{"question":"hm?"}`)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
			}
			if tt.wantCode == domain.CodeInternal && strings.Contains(body["message"].(string), "qdrant") {
				t.Errorf("raw error text leaked: %v", body["message"])
			}
		})
	}
}

func TestAskEndpointInvalidFieldNamesTheField(t *testing.T) {
	srv := newTestServer(&server{qa: &stubAsker{err: domain.NewFieldError("warp_speed")}})
	rec := doJSON(t, srv.routes(), "POST", "/api/ask", `{"question":"filter by warp_speed"}`)

	body := decodeBody(t, rec)
	if !strings.Contains(body["message"].(string), "warp_speed") {
		t.Errorf("message should name the field: %v", body["message"])
	}
}

func TestAskEndpointBadRequests(t *testing.T) {
	srv := newTestServer(&server{qa: &stubAsker{}})

	rec := doJSON(t, srv.routes(), "POST", "/api/ask", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}

	rec = doJSON(t, srv.routes(), "POST", "/api/ask", `{"question":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: status = %d", rec.Code)
	}
}

func TestRecordEndpoint(t *testing.T) {
	store := &stubStore{rec: domain.InspectionRecord{
		ID:          "insp-000007",
		VIN:         "5YJ3E1EA7KF000007",
		Model:       "Model 3",
		InspectedAt: time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC),
	}}
	srv := newTestServer(&server{qa: &stubAsker{}, store: store})

	rec := doJSON(t, srv.routes(), "GET", "/api/records/insp-000007", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["record_id"] != "insp-000007" || body["vin"] != "5YJ3E1EA7KF000007" {
		t.Errorf("body = %v", body)
	}

	rec = doJSON(t, srv.routes(), "GET", "/api/records/insp-404", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing record: status = %d", rec.Code)
	}
}

func TestSessionDeleteEndpoint(t *testing.T) {
	sessions := session.NewStore(time.Minute, 10)
	sessions.Append("s-1", session.Turn{Question: "q", Answer: "a", At: time.Now()})
	srv := newTestServer(&server{qa: &stubAsker{}, sessions: sessions})

	rec := doJSON(t, srv.routes(), "DELETE", "/api/sessions/s-1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if sessions.Len() != 0 {
		t.Error("session should be gone")
	}

	rec = doJSON(t, srv.routes(), "DELETE", "/api/sessions/s-unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&server{qa: &stubAsker{}, store: &stubStore{count: 1287}})

	rec := doJSON(t, srv.routes(), "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["records"] != float64(1287) || body["vector"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthEndpointDegraded(t *testing.T) {
	srv := newTestServer(&server{
		qa:      &stubAsker{},
		store:   &stubStore{count: 10},
		vectors: &stubChecker{err: errors.New("connection refused")},
	})

	rec := doJSON(t, srv.routes(), "GET", "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "degraded" || body["vector"] != "unreachable" {
		t.Errorf("body = %v", body)
	}
}

func TestReindexEndpoint(t *testing.T) {
	pub := &stubPublisher{}
	srv := newTestServer(&server{qa: &stubAsker{}, events: pub})

	rec := doJSON(t, srv.routes(), "POST", "/api/admin/reindex", `{"record_ids":["insp-000001","insp-000002"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(pub.reindex) != 1 || len(pub.reindex[0].RecordIDs) != 2 || pub.reindex[0].All {
		t.Errorf("published = %+v", pub.reindex)
	}

	rec = doJSON(t, srv.routes(), "POST", "/api/admin/reindex", `{"all":true}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("full rebuild: status = %d", rec.Code)
	}
	if len(pub.reindex) != 2 || !pub.reindex[1].All {
		t.Errorf("published = %+v", pub.reindex)
	}

	rec = doJSON(t, srv.routes(), "POST", "/api/admin/reindex", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request: status = %d", rec.Code)
	}
}

func TestReindexEndpointWithoutEvents(t *testing.T) {
	srv := newTestServer(&server{qa: &stubAsker{}})

	rec := doJSON(t, srv.routes(), "POST", "/api/admin/reindex", `{"all":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when events are disabled", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.New()
	reg.Counter("inspectra_queries_total", "Queries by plan", "plan", "HYBRID").Inc()
	srv := newTestServer(&server{qa: &stubAsker{}, reg: reg})

	rec := doJSON(t, srv.routes(), "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "inspectra_queries_total") {
		t.Errorf("exposition missing counter: %s", rec.Body.String())
	}
}
