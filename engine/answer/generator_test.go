package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
)

type stubCompleter struct {
	replies []string
	errs    []error
	calls   int
	reqs    []llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	i := s.calls
	s.calls++
	s.reqs = append(s.reqs, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	if len(s.replies) > 0 {
		return s.replies[len(s.replies)-1], nil
	}
	return "", nil
}

func (s *stubCompleter) Model() string { return "test-model" }

func testOptions() Options {
	return Options{Timeout: time.Second, RetryBackoff: time.Millisecond}
}

func TestGenerate_Grounded(t *testing.T) {
	c := &stubCompleter{replies: []string{"Record INSP-0001 on 2024-01-10 had 2 damages [1]."}}
	g := NewGenerator(c, nil, testOptions())

	ans, err := g.Generate(context.Background(), "what happened to INSP-0001", promptEvidence(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Grounded || ans.Refused() {
		t.Fatalf("expected grounded answer, got %+v", ans)
	}
	if ans.Retried {
		t.Error("no retry should have fired")
	}
	if ans.Model != "test-model" {
		t.Errorf("wrong model: %s", ans.Model)
	}
	if c.calls != 1 {
		t.Errorf("expected 1 model call, got %d", c.calls)
	}
	if !strings.Contains(c.reqs[0].System, "ONLY") {
		t.Error("system prompt must constrain to listed records")
	}
	if !strings.Contains(c.reqs[0].Prompt, "[1] record INSP-0001") {
		t.Error("prompt must enumerate evidence")
	}
}

func TestGenerate_RetryRecovers(t *testing.T) {
	c := &stubCompleter{replies: []string{
		"See INSP-9999 for the damage.",
		"Record INSP-0001 had 2 damages [1].",
	}}
	g := NewGenerator(c, nil, testOptions())

	ans, err := g.Generate(context.Background(), "q", promptEvidence(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Grounded || !ans.Retried {
		t.Fatalf("expected grounded retried answer, got %+v", ans)
	}
	if c.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", c.calls)
	}
	if !strings.Contains(c.reqs[1].Prompt, "INSP-9999") {
		t.Error("retry prompt must name the unsupported reference")
	}
}

func TestGenerate_RefusesAfterOneRetry(t *testing.T) {
	c := &stubCompleter{replies: []string{
		"See INSP-9999 for the damage.",
		"Still INSP-9999, trust me.",
	}}
	g := NewGenerator(c, nil, testOptions())

	ans, err := g.Generate(context.Background(), "q", promptEvidence(), nil)
	if err != nil {
		t.Fatalf("refusal must not be an error: %v", err)
	}
	if !ans.Refused() || ans.RefusalCode != domain.CodeNotGrounded {
		t.Fatalf("expected %s refusal, got %+v", domain.CodeNotGrounded, ans)
	}
	if ans.Grounded {
		t.Error("refusal cannot be grounded")
	}
	if !ans.Retried {
		t.Error("refusal must record the retry")
	}
	if strings.Contains(ans.Text, "INSP-9999") {
		t.Error("ungrounded draft must never be released")
	}
	if c.calls != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", c.calls)
	}
}

func TestGenerate_ModelRetryOnUnavailable(t *testing.T) {
	c := &stubCompleter{
		errs:    []error{llm.ErrUnavailable},
		replies: []string{"", "Record INSP-0001 had 2 damages [1]."},
	}
	g := NewGenerator(c, nil, testOptions())

	ans, err := g.Generate(context.Background(), "q", promptEvidence(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Grounded {
		t.Fatalf("expected grounded answer after transport retry, got %+v", ans)
	}
	if c.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", c.calls)
	}
}

func TestGenerate_ModelUnavailable(t *testing.T) {
	c := &stubCompleter{errs: []error{llm.ErrUnavailable, llm.ErrUnavailable}}
	g := NewGenerator(c, nil, testOptions())

	_, err := g.Generate(context.Background(), "q", promptEvidence(), nil)
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model-unavailable, got %v", err)
	}
	if domain.Code(err) != domain.CodeModelUnavailable {
		t.Errorf("wrong code: %s", domain.Code(err))
	}
	if c.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", c.calls)
	}
}

func TestGenerate_EmptyEvidenceNeverCallsModel(t *testing.T) {
	c := &stubCompleter{replies: []string{"should never be used"}}
	g := NewGenerator(c, nil, testOptions())

	ans, err := g.Generate(context.Background(), "q", domain.EvidenceSet{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.RefusalCode != domain.CodeNoEvidence {
		t.Fatalf("expected no-evidence refusal, got %+v", ans)
	}
	if c.calls != 0 {
		t.Errorf("model must not be called without evidence, got %d calls", c.calls)
	}
}

func TestGenerate_HistoryIsNotEvidence(t *testing.T) {
	// The first draft leans on an identifier that only appears in the
	// conversation history; the policy must still reject it.
	c := &stubCompleter{replies: []string{
		"As discussed, INSP-7777 was damaged.",
		"Record INSP-0001 had 2 damages [1].",
	}}
	g := NewGenerator(c, nil, testOptions())

	history := []string{"what about INSP-7777"}
	ans, err := g.Generate(context.Background(), "q", promptEvidence(), history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Retried {
		t.Error("history identifier should have triggered the groundedness retry")
	}
	if !strings.Contains(c.reqs[0].Prompt, "- what about INSP-7777") {
		t.Error("history should still appear in the prompt as context")
	}
}

func TestGenerate_CanceledContextSkipsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &stubCompleter{errs: []error{llm.ErrUnavailable, llm.ErrUnavailable}}
	g := NewGenerator(c, nil, testOptions())

	_, err := g.Generate(ctx, "q", promptEvidence(), nil)
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model-unavailable, got %v", err)
	}
	if c.calls != 1 {
		t.Errorf("canceled context must not retry, got %d calls", c.calls)
	}
}
