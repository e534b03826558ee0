// Package llm provides the text generation client used by generation-backed
// bot behaviors. Content logic lives in prompts supplied by the behaviors;
// this package owns only the provider plumbing.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/prepforge/curator/internal/types"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// messagesAPI is the slice of the Anthropic client the generator uses.
// Tests substitute a fake.
type messagesAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config holds generation client tuning parameters.
type Config struct {
	APIKey            string        // defaults to ANTHROPIC_API_KEY
	Model             string
	MaxTokens         int
	MaxRetries        int           // attempts beyond the first for transient failures
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration // per-attempt bound
	MaxConcurrent     int64         // concurrent provider calls, 0 = unlimited
}

// DefaultConfig returns the default generation client configuration.
func DefaultConfig() Config {
	return Config{
		Model:             "claude-sonnet-4-5-20250929",
		MaxTokens:         4096,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           120 * time.Second,
		MaxConcurrent:     3,
	}
}

// Client is an Anthropic-backed Generator with backoff retries and a
// concurrency cap to stay under provider rate limits.
type Client struct {
	api messagesAPI
	cfg Config
	sem *semaphore.Weighted
}

// NewClient creates a generation client. The API key comes from the config
// or the ANTHROPIC_API_KEY environment variable.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClient(&client.Messages, cfg), nil
}

func newClient(api messagesAPI, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return &Client{api: api, cfg: cfg, sem: sem}
}

// Generate sends a single-message prompt and returns the concatenated text
// blocks of the response. Provider errors are retried with exponential
// backoff; the final failure is wrapped as a TransientError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", &types.ValidationError{Reason: "cannot generate from an empty prompt"}
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return "", &types.TransientError{Op: "generate", Err: err}
		}
		defer c.sem.Release(1)
	}

	var lastErr error
	backoff := c.cfg.InitialBackoff

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		text, err := c.generateOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.cfg.BackoffMultiplier)
		case <-ctx.Done():
			return "", &types.TransientError{Op: "generate", Err: ctx.Err()}
		}
	}

	return "", &types.TransientError{
		Op:  "generate",
		Err: fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr),
	}
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.New(attemptCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("provider returned no text content")
	}
	return text, nil
}
