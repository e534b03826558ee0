// Package vector provides an in-memory nearest-neighbor index over content
// embeddings. The index is a cache: the durable copy of every vector lives
// in storage, and the index is rebuilt from it at startup.
package vector

import (
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"
)

// Match pairs an item id with its cosine similarity to a query vector.
type Match struct {
	ItemID     string
	Similarity float64
}

// Index is a flat cosine-similarity index, safe for concurrent use.
// Exhaustive scan is fine at this corpus size; if it ever isn't, the Index
// boundary is where an ANN structure would slot in.
type Index struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{vectors: make(map[string][]float32)}
}

// Load bulk-inserts vectors, replacing any current entries with the same ids.
// Used to warm the index from storage at startup.
func (ix *Index) Load(vectors map[string][]float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, v := range vectors {
		ix.vectors[id] = v
	}
}

// Upsert inserts or replaces the vector for an item.
func (ix *Index) Upsert(itemID string, vector []float32) {
	if itemID == "" || len(vector) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[itemID] = vector
}

// Remove deletes the vector for an item. Removing an absent id is a no-op.
func (ix *Index) Remove(itemID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.vectors, itemID)
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// QueryNearest returns up to k items most similar to the query, descending
// by cosine similarity and filtered to >= minSimilarity. Entries whose
// dimension does not match the query are skipped rather than erroring, so a
// partially stale index degrades to fewer results instead of blocking the
// caller.
func (ix *Index) QueryNearest(query []float32, k int, minSimilarity float64) []Match {
	if len(query) == 0 || k <= 0 {
		return nil
	}

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		if len(v) != len(query) {
			continue
		}
		sim := float64(vek32.CosineSimilarity(query, v))
		if sim >= minSimilarity {
			matches = append(matches, Match{ItemID: id, Similarity: sim})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ItemID < matches[j].ItemID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
