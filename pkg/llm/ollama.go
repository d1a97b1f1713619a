package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OllamaClient talks to a local Ollama server over its HTTP API. It
// implements both Embedder and Completer.
type OllamaClient struct {
	baseURL    string
	chatModel  string
	embedModel string
	dims       int
	client     *http.Client
}

// NewOllama creates a client for the Ollama server at baseURL.
func NewOllama(baseURL, chatModel, embedModel string, dims int) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		dims:       dims,
		client:     &http.Client{},
	}
}

func (c *OllamaClient) Model() string { return c.chatModel }

// Dimensions implements Embedder.
func (c *OllamaClient) Dimensions() int { return c.dims }

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements Embedder. Ollama's embeddings endpoint takes one
// prompt per request, so texts are embedded sequentially.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *OllamaClient) embedOne(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResp
	if err := c.post(ctx, "/api/embeddings", ollamaEmbedReq{Model: c.embedModel, Prompt: text}, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding")
	}
	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaChatMessage `json:"message"`
}

// Complete implements Completer using Ollama's chat endpoint with
// streaming disabled.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]ollamaChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: req.Prompt})

	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}

	var result ollamaChatResp
	if err := c.post(ctx, "/api/chat", ollamaChatReq{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	}, &result); err != nil {
		return "", err
	}
	if result.Message.Content == "" {
		return "", fmt.Errorf("ollama chat: %w: empty completion", ErrUnavailable)
	}
	return result.Message.Content, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload, result any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("ollama: %w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("ollama decode: %w", err)
	}
	return nil
}
