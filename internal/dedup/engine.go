// Package dedup detects and resolves near-duplicate content items. A scan
// embeds unchecked items, queries the vector index for close neighbors, and
// enqueues delete work for the losing side of every duplicate cluster.
// Deletion always routes through the work queue so it is ledgered.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prepforge/curator/internal/embedding"
	"github.com/prepforge/curator/internal/types"
	"github.com/prepforge/curator/internal/vector"
)

// State is the engine's scan lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateResolving State = "resolving"
)

// Store is the slice of the storage interface the engine needs.
type Store interface {
	ListUncheckedContent(ctx context.Context, limit int) ([]*types.ContentItem, error)
	GetContent(ctx context.Context, id string) (*types.ContentItem, error)
	GetEmbedding(ctx context.Context, itemID, model string) ([]float32, error)
	PutEmbedding(ctx context.Context, itemID, model string, vector []float32) error
	MarkDuplicateChecked(ctx context.Context, ids []string) error
	Enqueue(ctx context.Context, item *types.WorkItem) (*types.WorkItem, error)
}

// Config holds dedup engine tuning parameters.
type Config struct {
	MinSimilarity float64 // cosine cutoff for candidate pairs
	Neighbors     int     // k for nearest-neighbor queries
	BatchSize     int     // unchecked items examined per scan
	RetryBudget   int     // attempt budget for enqueued delete work
	ItemType      string  // content item type for enqueued work
	BotName       string  // created_by for enqueued work
}

// DefaultConfig returns the default dedup engine configuration.
func DefaultConfig() Config {
	return Config{
		MinSimilarity: 0.85,
		Neighbors:     5,
		BatchSize:     100,
		RetryBudget:   3,
		ItemType:      "question",
		BotName:       "dedup-engine",
	}
}

// Engine coordinates the embedder, the vector index, and the work queue for
// one dedup scan at a time.
type Engine struct {
	store    Store
	embedder embedding.Embedder
	index    *vector.Index
	cfg      Config

	mu    sync.Mutex
	state State
}

// New creates a dedup engine. Zero config fields fall back to defaults.
func New(store Store, embedder embedding.Embedder, index *vector.Index, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = def.Neighbors
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = def.RetryBudget
	}
	if cfg.ItemType == "" {
		cfg.ItemType = def.ItemType
	}
	if cfg.BotName == "" {
		cfg.BotName = def.BotName
	}
	return &Engine{store: store, embedder: embedder, index: index, cfg: cfg, state: StateIdle}
}

// State returns the engine's current scan phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// ScanForDuplicates runs one scan cycle: embed unchecked items, find close
// neighbors, resolve clusters, and enqueue delete work for the losers.
// Returns the candidate pairs the scan produced. Items whose embedding fails
// stay unchecked and are retried on the next scan rather than blocking this
// one.
func (e *Engine) ScanForDuplicates(ctx context.Context) ([]types.DuplicateCandidatePair, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, fmt.Errorf("scan already in progress (state=%s)", e.state)
	}
	e.state = StateScanning
	e.mu.Unlock()
	defer e.setState(StateIdle)

	items, err := e.store.ListUncheckedContent(ctx, e.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list unchecked content: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	var pairs []types.DuplicateCandidatePair
	seen := make(map[string]bool) // canonical "a|b" pair keys
	var checked []string

	for _, item := range items {
		vec, err := e.vectorFor(ctx, item)
		if err != nil {
			// Transient: leave the item unchecked for the next scan
			continue
		}

		// k+1 because the item's own vector is in the index
		for _, match := range e.index.QueryNearest(vec, e.cfg.Neighbors+1, e.cfg.MinSimilarity) {
			if match.ItemID == item.ID {
				continue
			}
			key := pairKey(item.ID, match.ItemID)
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, types.DuplicateCandidatePair{
				ItemA:      item.ID,
				ItemB:      match.ItemID,
				Similarity: match.Similarity,
			})
		}
		checked = append(checked, item.ID)
	}

	if len(pairs) > 0 {
		e.setState(StateResolving)
		if err := e.resolve(ctx, pairs); err != nil {
			return pairs, err
		}
	}

	if err := e.store.MarkDuplicateChecked(ctx, checked); err != nil {
		return pairs, fmt.Errorf("failed to mark items checked: %w", err)
	}
	return pairs, nil
}

// vectorFor returns the item's embedding, from cache when possible. Fresh
// vectors are persisted and indexed before use.
func (e *Engine) vectorFor(ctx context.Context, item *types.ContentItem) ([]float32, error) {
	model := e.embedder.Model()

	vec, err := e.store.GetEmbedding(ctx, item.ID, model)
	if err != nil {
		return nil, err
	}
	if vec == nil {
		vec, err = e.embedder.Embed(ctx, item.Text)
		if err != nil {
			return nil, err
		}
		if err := e.store.PutEmbedding(ctx, item.ID, model, vec); err != nil {
			return nil, err
		}
	}
	e.index.Upsert(item.ID, vec)
	return vec, nil
}

// resolve groups candidate pairs into clusters and enqueues delete work for
// every member except the cluster winner. Clustering runs before resolution
// so pairwise-inconsistent relationships (A~B, B~C, but not A~C) still keep
// exactly one representative.
func (e *Engine) resolve(ctx context.Context, pairs []types.DuplicateCandidatePair) error {
	uf := newUnionFind()
	for _, p := range pairs {
		uf.union(p.ItemA, p.ItemB)
	}

	clusters := make(map[string][]string)
	for _, id := range uf.members() {
		root := uf.find(id)
		clusters[root] = append(clusters[root], id)
	}

	for _, cluster := range clusters {
		// Only active members take part in resolution. Deleted or flagged
		// items left over in the index neither win nor get delete work
		// enqueued for them.
		members, err := e.activeMembers(ctx, cluster)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			continue
		}
		winner := pickWinner(members)
		for _, m := range members {
			if m.ID == winner.ID {
				continue
			}
			if err := e.enqueueDelete(ctx, m.ID, winner.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) activeMembers(ctx context.Context, cluster []string) ([]*types.ContentItem, error) {
	var members []*types.ContentItem
	for _, id := range cluster {
		item, err := e.store.GetContent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster member %s: %w", id, err)
		}
		if item != nil && item.Status == types.ContentActive {
			members = append(members, item)
		}
	}
	return members, nil
}

// pickWinner applies the deterministic resolution rule: higher relevance
// score, then more complete metadata, then earlier createdAt, then smaller
// id as the final total-order tie-break.
func pickWinner(members []*types.ContentItem) *types.ContentItem {
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.EnrichmentFields() != b.EnrichmentFields() {
			return a.EnrichmentFields() > b.EnrichmentFields()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return members[0]
}

func (e *Engine) enqueueDelete(ctx context.Context, loserID, winnerID string) error {
	retries := e.cfg.RetryBudget - 1
	if retries < 0 {
		retries = 0
	}
	_, err := e.store.Enqueue(ctx, &types.WorkItem{
		ItemType:    e.cfg.ItemType,
		ItemID:      loserID,
		Action:      types.ActionDelete,
		Priority:    1,
		Reason:      fmt.Sprintf("duplicate of %s", winnerID),
		CreatedBy:   e.cfg.BotName,
		RetriesLeft: retries,
	})
	if types.IsDuplicateWork(err) {
		// Delete already queued from an earlier scan
		return nil
	}
	return err
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// unionFind is a string-keyed disjoint-set with path compression.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		// Deterministic: smaller id becomes the root
		if ra > rb {
			ra, rb = rb, ra
		}
		u.parent[rb] = ra
	}
}

func (u *unionFind) members() []string {
	ids := make([]string, 0, len(u.parent))
	for id := range u.parent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
