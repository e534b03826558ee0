package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prepforge/curator/internal/types"
)

// setupTestDB creates a file-backed database in a temp dir. File-backed (not
// :memory:) so concurrent connections see the same database.
func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testWorkItem(itemID string, action types.Action, priority int) *types.WorkItem {
	return &types.WorkItem{
		ItemType:  "question",
		ItemID:    itemID,
		Action:    action,
		Priority:  priority,
		CreatedBy: "test-bot",
		Reason:    "test",
	}
}

// createTestContent inserts a content item through ApplyMutation, the only
// legal write path.
func createTestContent(t *testing.T, db *SQLiteStorage, id, text string) *types.ContentItem {
	t.Helper()
	ctx := context.Background()
	_, err := db.ApplyMutation(ctx, &types.Mutation{
		BotName:  "test-bot",
		Action:   types.ActionCreate,
		ItemType: "question",
		ItemID:   id,
		After: &types.ContentItem{
			ID:     id,
			Text:   text,
			Status: types.ContentActive,
		},
		Reason: "test fixture",
	})
	if err != nil {
		t.Fatalf("Failed to create content %s: %v", id, err)
	}
	item, err := db.GetContent(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read back content %s: %v", id, err)
	}
	return item
}

func TestGetStatistics(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestContent(t, db, "Q-1", "What is a mutex?")
	if _, err := db.Enqueue(ctx, testWorkItem("Q-2", types.ActionCreate, 1)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := db.StartRun(ctx, "stats-bot"); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := db.PutEmbedding(ctx, "Q-1", "test-model", []float32{0.1, 0.2}); err != nil {
		t.Fatalf("PutEmbedding failed: %v", err)
	}

	stats, err := db.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.WorkByStatus["pending"] != 1 {
		t.Errorf("pending work = %d, want 1", stats.WorkByStatus["pending"])
	}
	if stats.ContentByStatus["active"] != 1 {
		t.Errorf("active content = %d, want 1", stats.ContentByStatus["active"])
	}
	if stats.LedgerEntries != 1 {
		t.Errorf("ledger entries = %d, want 1", stats.LedgerEntries)
	}
	if stats.RunningRuns != 1 {
		t.Errorf("running runs = %d, want 1", stats.RunningRuns)
	}
	if stats.CachedVectors != 1 {
		t.Errorf("cached vectors = %d, want 1", stats.CachedVectors)
	}

	// Timestamps survive the round trip with sane values
	item, err := db.GetContent(ctx, "Q-1")
	if err != nil || item == nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if time.Since(item.CreatedAt) > time.Minute {
		t.Errorf("created_at looks wrong: %v", item.CreatedAt)
	}
}
