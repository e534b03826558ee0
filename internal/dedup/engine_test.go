package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prepforge/curator/internal/storage"
	"github.com/prepforge/curator/internal/types"
	"github.com/prepforge/curator/internal/vector"
)

// fakeEmbedder returns canned vectors keyed by text.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail[text] {
		return nil, &types.TransientError{Op: "embed", Err: fmt.Errorf("provider down")}
	}
	vec, ok := f.vectors[text]
	if !ok {
		return nil, &types.TransientError{Op: "embed", Err: fmt.Errorf("no vector for %q", text)}
	}
	return vec, nil
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

func setupStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{
		Path: filepath.Join(t.TempDir(), "dedup.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createItem(t *testing.T, store storage.Storage, id, text string, score int, answer string) {
	t.Helper()
	_, err := store.ApplyMutation(context.Background(), &types.Mutation{
		BotName:  "test-bot",
		Action:   types.ActionCreate,
		ItemType: "question",
		ItemID:   id,
		After: &types.ContentItem{
			ID:             id,
			Text:           text,
			Answer:         answer,
			RelevanceScore: score,
			Status:         types.ContentActive,
		},
		Reason: "fixture",
	})
	if err != nil {
		t.Fatalf("Failed to create item %s: %v", id, err)
	}
}

func TestScanFindsNearDuplicates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-high", "What is a goroutine?", 80, "")
	createItem(t, store, "Q-low", "What's a goroutine exactly?", 60, "")
	createItem(t, store, "Q-other", "Explain SQL joins.", 70, "")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"What is a goroutine?":          {1, 0, 0},
		"What's a goroutine exactly?":   {0.95, 0.05, 0},
		"Explain SQL joins.":            {0, 1, 0},
	}}
	engine := New(store, embedder, vector.NewIndex(), Config{BotName: "dedup-bot"})

	pairs, err := engine.ScanForDuplicates(ctx)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1: %+v", len(pairs), pairs)
	}
	if pairs[0].Similarity < 0.85 {
		t.Errorf("similarity %f below cutoff", pairs[0].Similarity)
	}

	// Scenario: scores 80 vs 60, the lower-scored item is enqueued for delete
	work, err := store.ListWorkItems(ctx, storage.WorkFilter{Action: types.ActionDelete})
	if err != nil {
		t.Fatal(err)
	}
	if len(work) != 1 {
		t.Fatalf("got %d delete work items, want 1", len(work))
	}
	if work[0].ItemID != "Q-low" {
		t.Errorf("delete targeted %s, want Q-low", work[0].ItemID)
	}
	if !strings.Contains(work[0].Reason, "duplicate of Q-high") {
		t.Errorf("reason %q should name the winner", work[0].Reason)
	}
	if work[0].Priority != 1 {
		t.Errorf("duplicate deletes should be high priority, got %d", work[0].Priority)
	}
}

func TestScanIdenticalTextSimilarityOne(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-a", "What is a channel?", 50, "")
	createItem(t, store, "Q-b", "What is a channel?", 50, "")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"What is a channel?": {0.4, -0.2, 0.8},
	}}
	engine := New(store, embedder, vector.NewIndex(), Config{})

	pairs, err := engine.ScanForDuplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if pairs[0].Similarity < 0.9999 {
		t.Errorf("identical text should have similarity ~1.0, got %f", pairs[0].Similarity)
	}
}

func TestResolutionTieBreaks(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Equal scores; Q-rich has an answer so metadata completeness decides
	createItem(t, store, "Q-rich", "How do you size a worker pool?", 50,
		"Benchmark with GOMAXPROCS-sized pools first.")
	createItem(t, store, "Q-bare", "How would you size a worker pool?", 50, "")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"How do you size a worker pool?":    {1, 0},
		"How would you size a worker pool?": {0.99, 0.01},
	}}
	engine := New(store, embedder, vector.NewIndex(), Config{})

	if _, err := engine.ScanForDuplicates(ctx); err != nil {
		t.Fatal(err)
	}

	work, err := store.ListWorkItems(ctx, storage.WorkFilter{Action: types.ActionDelete})
	if err != nil {
		t.Fatal(err)
	}
	if len(work) != 1 || work[0].ItemID != "Q-bare" {
		t.Fatalf("metadata tie-break should delete Q-bare: %+v", work)
	}
}

func TestClusterKeepsExactlyOneRepresentative(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Three-way cluster: pairwise neighbors A~B, B~C (A~C may or may not
	// clear the cutoff). Exactly one survivor, two deletes.
	createItem(t, store, "Q-a", "text a", 70, "")
	createItem(t, store, "Q-b", "text b", 60, "")
	createItem(t, store, "Q-c", "text c", 50, "")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"text a": {1, 0, 0},
		"text b": {0.93, 0.37, 0}, // close to both a and c
		"text c": {0.73, 0.68, 0},
	}}
	engine := New(store, embedder, vector.NewIndex(), Config{})

	if _, err := engine.ScanForDuplicates(ctx); err != nil {
		t.Fatal(err)
	}

	work, err := store.ListWorkItems(ctx, storage.WorkFilter{Action: types.ActionDelete})
	if err != nil {
		t.Fatal(err)
	}
	if len(work) != 2 {
		t.Fatalf("cluster of 3 should produce 2 deletes, got %d", len(work))
	}
	for _, w := range work {
		if w.ItemID == "Q-a" {
			t.Error("the highest-scored member must survive")
		}
		if !strings.Contains(w.Reason, "duplicate of Q-a") {
			t.Errorf("reason %q should name Q-a as the winner", w.Reason)
		}
	}
}

// A deleted item whose vector lingers in the index may still show up as a
// neighbor. It must neither win nor get delete work enqueued for it: delete
// work against a deleted item is guaranteed to fail.
func TestResolutionSkipsInactiveMembers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-live", "What is escape analysis?", 50, "")

	// A previously deleted near-duplicate; its vector was never evicted
	createItem(t, store, "Q-gone", "Explain escape analysis.", 90, "")
	gone, err := store.GetContent(ctx, "Q-gone")
	if err != nil {
		t.Fatal(err)
	}
	deleted := *gone
	deleted.Status = types.ContentDeleted
	if _, err := store.ApplyMutation(ctx, &types.Mutation{
		BotName:  "test-bot",
		Action:   types.ActionDelete,
		ItemType: "question",
		ItemID:   "Q-gone",
		Before:   gone,
		After:    &deleted,
		Reason:   "fixture",
	}); err != nil {
		t.Fatal(err)
	}

	index := vector.NewIndex()
	index.Upsert("Q-gone", []float32{1, 0})

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"What is escape analysis?": {1, 0},
	}}
	engine := New(store, embedder, index, Config{})

	pairs, err := engine.ScanForDuplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("stale vector should still pair, got %d pairs", len(pairs))
	}

	// Q-live is the only active member: no deletes, in either direction
	work, err := store.ListWorkItems(ctx, storage.WorkFilter{Action: types.ActionDelete})
	if err != nil {
		t.Fatal(err)
	}
	if len(work) != 0 {
		t.Fatalf("no delete work should be enqueued, got %+v", work)
	}
	live, err := store.GetContent(ctx, "Q-live")
	if err != nil {
		t.Fatal(err)
	}
	if live.Status != types.ContentActive {
		t.Errorf("surviving member status = %s, want active", live.Status)
	}
}

func TestScanMarksItemsChecked(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-1", "unique text one", 50, "")
	createItem(t, store, "Q-2", "unique text two", 50, "")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"unique text one": {1, 0},
		"unique text two": {0, 1},
	}}
	engine := New(store, embedder, vector.NewIndex(), Config{})

	if _, err := engine.ScanForDuplicates(ctx); err != nil {
		t.Fatal(err)
	}

	unchecked, err := store.ListUncheckedContent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unchecked) != 0 {
		t.Errorf("%d items still unchecked after scan", len(unchecked))
	}

	// Second scan is a no-op
	pairs, err := engine.ScanForDuplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pairs != nil {
		t.Errorf("second scan should find nothing, got %+v", pairs)
	}
}

func TestScanSkipsFailedEmbeddings(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-ok", "works fine", 50, "")
	createItem(t, store, "Q-down", "provider fails for this", 50, "")

	embedder := &fakeEmbedder{
		vectors: map[string][]float32{"works fine": {1, 0}},
		fail:    map[string]bool{"provider fails for this": true},
	}
	engine := New(store, embedder, vector.NewIndex(), Config{})

	if _, err := engine.ScanForDuplicates(ctx); err != nil {
		t.Fatalf("scan should continue past embedding failures: %v", err)
	}

	// The failed item stays unchecked for the next scan
	unchecked, err := store.ListUncheckedContent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unchecked) != 1 || unchecked[0].ID != "Q-down" {
		t.Errorf("expected Q-down to remain unchecked: %+v", unchecked)
	}
}

func TestEngineStateMachine(t *testing.T) {
	store := setupStore(t)
	engine := New(store, &fakeEmbedder{vectors: map[string][]float32{}}, vector.NewIndex(), Config{})

	if engine.State() != StateIdle {
		t.Errorf("new engine state = %s, want idle", engine.State())
	}
	if _, err := engine.ScanForDuplicates(context.Background()); err != nil {
		t.Fatal(err)
	}
	if engine.State() != StateIdle {
		t.Errorf("state after scan = %s, want idle", engine.State())
	}
}

func TestCachedVectorsAreReused(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createItem(t, store, "Q-1", "cached already", 50, "")
	if err := store.PutEmbedding(ctx, "Q-1", "fake-model", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	// The embedder has no vector for this text; the cache must satisfy it
	engine := New(store, &fakeEmbedder{vectors: map[string][]float32{}}, vector.NewIndex(), Config{})
	if _, err := engine.ScanForDuplicates(ctx); err != nil {
		t.Fatal(err)
	}

	unchecked, err := store.ListUncheckedContent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unchecked) != 0 {
		t.Error("cached item should have been scanned without a provider call")
	}
}
