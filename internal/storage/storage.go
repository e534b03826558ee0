package storage

import (
	"context"
	"time"

	"github.com/prepforge/curator/internal/storage/sqlite"
	"github.com/prepforge/curator/internal/types"
)

// Storage defines the interface for pipeline storage backends.
//
// All coordination between bot processes flows through this interface: the
// work queue provides mutual exclusion via atomic claims, the ledger records
// every mutation, and the content store holds the canonical rows. There is
// no shared memory between bots.
type Storage interface {
	// Work Queue
	Enqueue(ctx context.Context, item *types.WorkItem) (*types.WorkItem, error)
	ClaimNext(ctx context.Context, assignee string, allowedActions []types.Action) (*types.WorkItem, error)
	Complete(ctx context.Context, workItemID, assignee, result string) error
	Fail(ctx context.Context, workItemID, assignee, errMsg string, retryable bool) (*types.WorkItem, error)
	BoostStaleItems(ctx context.Context, olderThan time.Duration) (int, error)
	ReclaimAbandoned(ctx context.Context, olderThan time.Duration) (int, error)
	GetWorkItem(ctx context.Context, id string) (*types.WorkItem, error)
	ListWorkItems(ctx context.Context, filter WorkFilter) ([]*types.WorkItem, error)

	// Bot Ledger - append-only audit trail
	ApplyMutation(ctx context.Context, mut *types.Mutation) (*types.LedgerEntry, error)
	History(ctx context.Context, itemID string, afterID int64, limit int) ([]*types.LedgerEntry, error)
	VerifyHistory(ctx context.Context, itemID string) error
	RecentLedger(ctx context.Context, limit int) ([]*types.LedgerEntry, error)

	// Bot Runs
	StartRun(ctx context.Context, botName string) (*types.BotRun, error)
	RecordOutcome(ctx context.Context, runID string, outcome types.Outcome) error
	FinishRun(ctx context.Context, runID string, status types.RunStatus, summary string) error
	GetRun(ctx context.Context, runID string) (*types.BotRun, error)
	ListRuns(ctx context.Context, limit int) ([]*types.BotRun, error)

	// Content store (reads; writes go through ApplyMutation)
	GetContent(ctx context.Context, id string) (*types.ContentItem, error)
	ListUncheckedContent(ctx context.Context, limit int) ([]*types.ContentItem, error)
	MarkDuplicateChecked(ctx context.Context, ids []string) error

	// Embedding cache - vectors keyed by (item, model version)
	PutEmbedding(ctx context.Context, itemID, model string, vector []float32) error
	GetEmbedding(ctx context.Context, itemID, model string) ([]float32, error)
	DeleteEmbeddings(ctx context.Context, itemID string) error
	ListEmbeddings(ctx context.Context, model string) (map[string][]float32, error)
	InvalidateStaleEmbeddings(ctx context.Context, currentModel string) (int, error)

	// Statistics
	GetStatistics(ctx context.Context) (*Statistics, error)

	// Lifecycle
	Close() error
}

// WorkFilter narrows ListWorkItems results
type WorkFilter = sqlite.WorkFilter

// Statistics summarizes queue, content, ledger, and run counts
type Statistics = sqlite.Statistics

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".curator/curator.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".curator/curator.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".curator/curator.db"
	}
	return sqlite.New(cfg.Path)
}
