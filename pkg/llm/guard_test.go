package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aditya01hpl/Inspectra/pkg/resilience"
)

type stubCompleter struct {
	calls int
	text  string
	err   error
	block bool
}

func (s *stubCompleter) Model() string { return "stub" }

func (s *stubCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

type stubEmbedder struct {
	calls   int
	batches [][]string
	err     error
}

func (s *stubEmbedder) Dimensions() int { return 3 }

// Embed derives each vector from its batch position so tests can tell
// fresh embeddings from cached ones.
func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.batches = append(s.batches, append([]string(nil), texts...))
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 2}
	}
	return out, nil
}

func TestGuardTripsBreaker(t *testing.T) {
	stub := &stubCompleter{err: errors.New("down")}
	gc := GuardCompleter(stub, GuardOpts{
		Breaker: resilience.BreakerOpts{FailThreshold: 2, Cooldown: time.Minute},
	})

	for i := 0; i < 2; i++ {
		if _, err := gc.Complete(context.Background(), CompletionRequest{Prompt: "q"}); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := gc.Complete(context.Background(), CompletionRequest{Prompt: "q"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open circuit mapped to %v, want ErrUnavailable", err)
	}
	if stub.calls != 2 {
		t.Fatalf("inner called %d times, want 2", stub.calls)
	}
}

func TestGuardTimeoutIsUnavailable(t *testing.T) {
	stub := &stubCompleter{block: true}
	gc := GuardCompleter(stub, GuardOpts{Timeout: 20 * time.Millisecond})

	_, err := gc.Complete(context.Background(), CompletionRequest{Prompt: "q"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("timeout mapped to %v, want ErrUnavailable", err)
	}
}

func TestGuardRateLimitHonorsContext(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	gc := GuardCompleter(stub, GuardOpts{RPS: 1, Burst: 1})

	if _, err := gc.Complete(context.Background(), CompletionRequest{Prompt: "q"}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := gc.Complete(ctx, CompletionRequest{Prompt: "q"})
	if err == nil {
		t.Fatal("second call should fail while bucket is empty")
	}
	if stub.calls != 1 {
		t.Fatalf("inner called %d times, want 1", stub.calls)
	}
}

func TestGuardPassesThroughSuccess(t *testing.T) {
	stub := &stubCompleter{text: "fine"}
	gc := GuardCompleter(stub, GuardOpts{Timeout: time.Second})

	got, err := gc.Complete(context.Background(), CompletionRequest{Prompt: "q"})
	if err != nil || got != "fine" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	if gc.Model() != "stub" {
		t.Errorf("Model = %q", gc.Model())
	}
}

func TestGuardEmbedder(t *testing.T) {
	stub := &stubEmbedder{}
	ge := GuardEmbedder(stub, GuardOpts{Timeout: time.Second})

	vecs, err := ge.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if ge.Dimensions() != 3 {
		t.Errorf("Dimensions = %d", ge.Dimensions())
	}
}
