package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient adapts the official OpenAI SDK. A custom base URL lets
// it talk to any OpenAI-compatible endpoint. It implements both
// Embedder and Completer.
type OpenAIClient struct {
	client     openai.Client
	chatModel  string
	embedModel string
	dims       int
}

// NewOpenAI creates a client. baseURL may be empty for the default
// API endpoint.
func NewOpenAI(apiKey, baseURL, chatModel, embedModel string, dims int) *OpenAIClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		chatModel:  chatModel,
		embedModel: embedModel,
		dims:       dims,
	}
}

func (c *OpenAIClient) Model() string { return c.chatModel }

// Dimensions implements Embedder.
func (c *OpenAIClient) Dimensions() int { return c.dims }

// Embed implements Embedder.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, wrapOpenAIErr("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.chatModel),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapOpenAIErr("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: %w: no choices", ErrUnavailable)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai chat: %w: empty completion", ErrUnavailable)
	}
	return text, nil
}

func wrapOpenAIErr(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500 {
			return fmt.Errorf("%s: %w: status %d", op, ErrUnavailable, apierr.StatusCode)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// Transport-level failure.
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
