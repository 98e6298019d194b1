// Package completion wraps the OpenRouter chat-completion API behind a small
// prompt-in, text-out client with retry and timeout policy.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoCredentials means no API key was configured; callers degrade to a
	// fixed "AI unavailable" reply.
	ErrNoCredentials = errors.New("no completion credentials configured")
	// ErrUnavailable wraps any transport, timeout, or malformed-response
	// failure from the completion endpoint.
	ErrUnavailable = errors.New("completion endpoint unavailable")
)

// Config holds completion client configuration.
type Config struct {
	APIKeys     []string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultConfig returns the defaults used by the original deployment.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "meta-llama/llama-3.2-3b-instruct:free",
		Temperature: 0.5,
		MaxTokens:   1500,
		Timeout:     30 * time.Second,
		MaxAttempts: 2,
	}
}

// Client sends system+user prompts to the completion endpoint. It holds one
// upstream client per credential and picks one uniformly at random per call;
// selection is a pure read from an immutable slice, safe for concurrent use.
type Client struct {
	clients []*openai.Client
	cfg     Config
	logger  *slog.Logger
}

// New builds a client from cfg. An empty key list is allowed; Complete will
// return ErrNoCredentials.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	clients := make([]*openai.Client, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		apiCfg := openai.DefaultConfig(key)
		apiCfg.BaseURL = cfg.BaseURL
		clients = append(clients, openai.NewClientWithConfig(apiCfg))
	}

	return &Client{clients: clients, cfg: cfg, logger: logger}
}

// Available reports whether at least one credential is configured.
func (c *Client) Available() bool {
	return len(c.clients) > 0
}

// Complete sends one system+user exchange and returns the completion text.
// Transport failures are retried with backoff up to MaxAttempts; context
// cancellation and timeout abort immediately. All failures surface as
// ErrUnavailable (or ErrNoCredentials) so callers can recover into a
// user-facing reply without leaking endpoint detail.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(c.clients) == 0 {
		return "", ErrNoCredentials
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	baseDelay := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		text, err := c.complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("Completion attempt failed", "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	client := c.clients[rand.IntN(len(c.clients))]
	resp, err := client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
