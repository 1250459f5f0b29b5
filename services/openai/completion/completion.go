// Package completion wraps an OpenAI-compatible chat completion endpoint
// behind a small non-streaming client used by the memory lifecycle engine.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deskpet/core"

	openai "github.com/sashabaranov/go-openai"
)

// Config selects and authenticates an OpenAI-compatible provider
// (DeepSeek, Qwen, OpenAI itself, ...).
type Config struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`

	Timeout time.Duration `json:"-"`
}

// Validate checks that the config is usable before a client is constructed.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("completion: base URL is required")
	}
	if c.APIKey == "" {
		return errors.New("completion: API key is required")
	}
	if c.Model == "" {
		return errors.New("completion: model is required")
	}
	return nil
}

// CallError is a non-2xx response from the completion endpoint.
type CallError struct {
	Status int
	Body   string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("completion: endpoint returned %d: %s", e.Status, e.Body)
}

// Client is the text-completion collaborator contract. The concrete
// implementation talks HTTP; tests substitute a fake.
type Client interface {
	// Complete runs one non-streaming chat completion and returns the
	// first choice's message content.
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

// OpenAIClient implements Client via go-openai against any compatible base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *core.Logger
}

// New creates a completion client, validating the config first.
func New(cfg Config, logger *core.Logger) (*OpenAIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Complete runs a single non-streaming chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &CallError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &CallError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return "", fmt.Errorf("completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("completion: response contains no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
