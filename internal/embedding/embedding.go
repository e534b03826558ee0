// Package embedding turns content text into fixed-length vectors via a local
// Ollama instance. Provider failures are transient: callers retry through
// the work queue's budget rather than blocking the pipeline.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/time/rate"

	"github.com/prepforge/curator/internal/types"
)

// Embedder converts text into a vector tagged with the producing model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// embedAPI is the slice of the Ollama client the embedder uses. Tests
// substitute a fake; production wires *api.Client.
type embedAPI interface {
	Embed(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error)
}

// Config holds embedding client tuning parameters.
type Config struct {
	Model             string        // embedding model name, tags cached vectors
	MaxRetries        int           // attempts beyond the first for transient failures
	InitialBackoff    time.Duration // first retry delay
	BackoffMultiplier float64       // backoff growth per retry
	Timeout           time.Duration // per-attempt bound
	RequestsPerSecond float64       // provider rate limit, 0 = unlimited
}

// DefaultConfig returns the default embedding client configuration.
func DefaultConfig() Config {
	return Config{
		Model:             "nomic-embed-text",
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           120 * time.Second,
		RequestsPerSecond: 4,
	}
}

// Client is an Ollama-backed Embedder with rate limiting and backoff retries.
type Client struct {
	api     embedAPI
	cfg     Config
	limiter *rate.Limiter
}

// NewClient creates an embedding client against the Ollama instance named by
// OLLAMA_HOST (default http://localhost:11434).
func NewClient(cfg Config) (*Client, error) {
	apiClient, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return newClient(apiClient, cfg), nil
}

func newClient(apiClient embedAPI, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultConfig().BackoffMultiplier
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		api:     apiClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Model returns the embedding model name.
func (c *Client) Model() string { return c.cfg.Model }

// Embed converts text into a vector. Provider errors are retried with
// exponential backoff up to the attempt budget; the final failure is wrapped
// as a TransientError so the orchestrator re-enqueues rather than flags.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &types.ValidationError{Reason: "cannot embed empty text"}
	}

	var lastErr error
	backoff := c.cfg.InitialBackoff

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &types.TransientError{Op: "embed", Err: err}
		}

		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.cfg.BackoffMultiplier)
		case <-ctx.Done():
			return nil, &types.TransientError{Op: "embed", Err: ctx.Err()}
		}
	}

	return nil, &types.TransientError{
		Op:  "embed",
		Err: fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr),
	}
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.Embed(attemptCtx, &api.EmbedRequest{
		Model: c.cfg.Model,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("provider returned an empty embedding")
	}
	return resp.Embeddings[0], nil
}
