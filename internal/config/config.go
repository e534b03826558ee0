package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full pipeline configuration, loaded from curator.yaml
// with environment variable overrides for deployment-specific values.
type Config struct {
	// DBPath is the SQLite database file path
	// Special value ":memory:" creates an in-memory database (useful for tests)
	DBPath string `yaml:"db_path"`

	// BotName identifies this bot process in runs and ledger entries
	BotName string `yaml:"bot_name"`

	// Workers is the number of orchestrator loop goroutines.
	// Coordination stays at the storage level, so multiple workers (or
	// multiple processes) remain safe.
	Workers int `yaml:"workers"`

	// PollIntervalSeconds is how long a worker sleeps when the queue is empty
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	Queue     QueueConfig     `yaml:"queue"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	LLM       LLMConfig       `yaml:"llm"`
}

// QueueConfig holds work queue tuning parameters
type QueueConfig struct {
	// RetryBudget is the number of re-enqueues a retryable failure gets
	// before the work item becomes terminally failed
	RetryBudget int `yaml:"retry_budget"`

	// StaleAgeMinutes is how old a pending item must be before each scan
	// cycle boosts its priority one step (starvation avoidance)
	StaleAgeMinutes int `yaml:"stale_age_minutes"`

	// ClaimTimeoutMinutes is how long a claim may stay processing before it
	// counts as abandoned (worker died) and is failed back through the
	// retry budget
	ClaimTimeoutMinutes int `yaml:"claim_timeout_minutes"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	// Model is the embedding model name. Vectors are tagged with it so
	// stale cache entries can be invalidated on model change.
	Model string `yaml:"model"`

	// TimeoutSeconds bounds each provider call
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries is the attempt budget for transient provider failures
	MaxRetries int `yaml:"max_retries"`

	// RequestsPerSecond rate-limits provider calls (0 = unlimited)
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DedupConfig holds duplicate detection settings
type DedupConfig struct {
	// MinSimilarity is the cosine similarity cutoff for candidate pairs
	MinSimilarity float64 `yaml:"min_similarity"`

	// Neighbors is the k for nearest-neighbor queries per scanned item
	Neighbors int `yaml:"neighbors"`

	// BatchSize is the number of unchecked items examined per scan cycle
	BatchSize int `yaml:"batch_size"`
}

// ScorerConfig holds relevance gate settings
type ScorerConfig struct {
	// MinScore is the relevance gate: newly created items scoring below it
	// are flagged instead of activated
	MinScore int `yaml:"min_score"`
}

// LLMConfig holds text generation provider settings
type LLMConfig struct {
	// Model is the Anthropic model used by generation-backed behaviors
	Model string `yaml:"model"`

	// MaxTokens caps each generation response
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutSeconds bounds each provider call
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries is the attempt budget for transient provider failures
	MaxRetries int `yaml:"max_retries"`
}

// Default returns a config with sensible defaults. The constants line up
// with the pipeline's documented behavior: retry budget 3, 120s provider
// timeouts, 0.85 similarity cutoff, relevance gate 40.
func Default() *Config {
	return &Config{
		DBPath:              ".curator/curator.db",
		BotName:             "curator",
		Workers:             1,
		PollIntervalSeconds: 5,
		Queue: QueueConfig{
			RetryBudget:         3,
			StaleAgeMinutes:     10,
			ClaimTimeoutMinutes: 15,
		},
		Embedding: EmbeddingConfig{
			Model:             "nomic-embed-text",
			TimeoutSeconds:    120,
			MaxRetries:        3,
			RequestsPerSecond: 4,
		},
		Dedup: DedupConfig{
			MinSimilarity: 0.85,
			Neighbors:     5,
			BatchSize:     100,
		},
		Scorer: ScorerConfig{
			MinScore: 40,
		},
		LLM: LLMConfig{
			Model:          "claude-sonnet-4-5-20250929",
			MaxTokens:      4096,
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
	}
}

// Load reads configuration from path, applying defaults for unset fields and
// environment overrides last. A missing file is not an error: defaults plus
// environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment-specific fields from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("CURATOR_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CURATOR_BOT_NAME"); v != "" {
		c.BotName = v
	}
	if v := os.Getenv("CURATOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v := os.Getenv("CURATOR_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("CURATOR_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BotName == "" {
		return fmt.Errorf("bot_name is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be at least 1 (got %d)", c.PollIntervalSeconds)
	}
	if c.Queue.RetryBudget < 0 {
		return fmt.Errorf("queue.retry_budget cannot be negative")
	}
	if c.Queue.ClaimTimeoutMinutes < 1 {
		return fmt.Errorf("queue.claim_timeout_minutes must be at least 1 (got %d)", c.Queue.ClaimTimeoutMinutes)
	}
	if c.Dedup.MinSimilarity < -1 || c.Dedup.MinSimilarity > 1 {
		return fmt.Errorf("dedup.min_similarity must be within [-1, 1] (got %.2f)", c.Dedup.MinSimilarity)
	}
	if c.Dedup.Neighbors < 1 {
		return fmt.Errorf("dedup.neighbors must be at least 1")
	}
	if c.Dedup.BatchSize < 1 {
		return fmt.Errorf("dedup.batch_size must be at least 1")
	}
	if c.Scorer.MinScore < 0 || c.Scorer.MinScore > 100 {
		return fmt.Errorf("scorer.min_score must be between 0 and 100 (got %d)", c.Scorer.MinScore)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	return nil
}

// PollInterval returns the worker poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StaleAge returns the starvation-avoidance threshold as a duration
func (c *QueueConfig) StaleAge() time.Duration {
	return time.Duration(c.StaleAgeMinutes) * time.Minute
}

// ClaimTimeout returns the abandoned-claim threshold as a duration
func (c *QueueConfig) ClaimTimeout() time.Duration {
	return time.Duration(c.ClaimTimeoutMinutes) * time.Minute
}

// Timeout returns the embedding call timeout as a duration
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the generation call timeout as a duration
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
