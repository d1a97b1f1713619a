package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "no matching records"}],
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropic("test-key", srv.URL+"/", "claude-sonnet-4-20250514")
	got, err := c.Complete(context.Background(), CompletionRequest{
		System: "sys", Prompt: "q", Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "no matching records" {
		t.Errorf("completion = %q", got)
	}
	if c.Model() != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", c.Model())
	}
}
