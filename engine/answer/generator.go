// Package answer turns merged evidence into a grounded natural-language
// answer. The generator builds a prompt that enumerates evidence as labeled
// facts, calls the completion model, and verifies the output against the
// evidence corpus; an answer that references unsupported identifiers gets
// exactly one corrective retry before becoming a refusal.
package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/pkg/llm"
)

const refusalText = "The retrieved inspection records do not support a grounded answer to this question."

// Options configures generation behavior.
type Options struct {
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// DefaultOptions returns the production defaults. The low temperature keeps
// the model close to the evidence.
func DefaultOptions() Options {
	return Options{
		Temperature:  0.1,
		MaxTokens:    1024,
		Timeout:      30 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Generator produces grounded answers from evidence.
type Generator struct {
	completer llm.Completer
	policy    Policy
	opts      Options
}

// NewGenerator creates a Generator. A nil policy falls back to the default
// containment check; unset limits fall back to DefaultOptions.
func NewGenerator(completer llm.Completer, policy Policy, opts Options) *Generator {
	if policy == nil {
		policy = ContainmentPolicy{}
	}
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	return &Generator{completer: completer, policy: policy, opts: opts}
}

// Generate answers the question from the evidence set. History is a phrasing
// aid only and never joins the groundedness corpus. The returned error is
// non-nil only for service failures (model unavailable); refusals are
// returned as Answers with a refusal code.
func (g *Generator) Generate(ctx context.Context, question string, ev domain.EvidenceSet, history []string) (domain.Answer, error) {
	if ev.Empty() {
		return domain.Answer{
			Text:        refusalText,
			Evidence:    ev,
			RefusalCode: domain.CodeNoEvidence,
			Model:       g.completer.Model(),
		}, nil
	}

	view := newEvidenceView(ev)
	corpus := view.corpus()

	text, err := g.complete(ctx, buildPrompt(question, view, history))
	if err != nil {
		return domain.Answer{}, err
	}

	unsupported := g.policy.Check(text, corpus)
	if len(unsupported) == 0 {
		return domain.Answer{
			Text:     text,
			Evidence: ev,
			Grounded: true,
			Model:    g.completer.Model(),
		}, nil
	}

	// One corrective retry naming the unsupported references, then refuse.
	text, err = g.complete(ctx, buildRetryPrompt(question, view, history, unsupported))
	if err != nil {
		return domain.Answer{}, err
	}
	if len(g.policy.Check(text, corpus)) == 0 {
		return domain.Answer{
			Text:     text,
			Evidence: ev,
			Grounded: true,
			Model:    g.completer.Model(),
			Retried:  true,
		}, nil
	}

	return domain.Answer{
		Text:        refusalText,
		Evidence:    ev,
		RefusalCode: domain.CodeNotGrounded,
		Model:       g.completer.Model(),
		Retried:     true,
	}, nil
}

// complete calls the model once, retrying a single time on transport
// failure or timeout before reporting the model unavailable.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	text, err := g.attempt(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(g.opts.RetryBackoff):
			if text, err = g.attempt(ctx, prompt); err == nil {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("answer: complete: %w: %v", domain.ErrModelUnavailable, err)
}

func (g *Generator) attempt(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	return g.completer.Complete(cctx, llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
}
