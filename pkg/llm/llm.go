// Package llm abstracts the model providers used by the answer and
// retrieval pipelines. A provider exposes embeddings (Embedder),
// completions (Completer), or both. Implementations exist for Ollama,
// OpenAI-compatible endpoints, and Anthropic.
//
// Providers wrap transport failures, 429s, and 5xx responses with
// ErrUnavailable so callers can distinguish "the provider is down"
// from a malformed request.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks provider errors that are worth retrying:
// unreachable hosts, rate limits, and server-side failures.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector width this embedder produces.
	Dimensions() int
}

// CompletionRequest is a single-turn completion. Conversation history,
// when present, is folded into Prompt by the caller.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Model reports the model identifier used for completions.
	Model() string
}

// Unavailable reports whether err represents a provider outage.
func Unavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
