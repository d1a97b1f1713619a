package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// askRequest mirrors the server's POST /api/ask body.
type askRequest struct {
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type citation struct {
	RecordID   string  `json:"record_id"`
	Provenance string  `json:"provenance"`
	Score      float64 `json:"score"`
}

type askStats struct {
	ClassifyMS int64 `json:"classify_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
	TotalMS    int64 `json:"total_ms"`
	Cached     bool  `json:"cached"`
}

// askResult mirrors the server's POST /api/ask response.
type askResult struct {
	Answer      string     `json:"answer"`
	Grounded    bool       `json:"grounded"`
	RefusalCode string     `json:"refusal_code,omitempty"`
	Plan        string     `json:"plan"`
	Citations   []citation `json:"citations"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Model       string     `json:"model,omitempty"`
	Retried     bool       `json:"retried,omitempty"`
	Stats       askStats   `json:"stats"`
}

// apiError is the server's error body, usable as a Go error.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Code
}

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) ask(ctx context.Context, req askRequest) (*askResult, error) {
	var res askResult
	if err := c.postJSON(ctx, "/api/ask", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) record(ctx context.Context, id string) (*domain.InspectionRecord, error) {
	var rec domain.InspectionRecord
	if err := c.getJSON(ctx, "/api/records/"+id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach server at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = resp.Status
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
