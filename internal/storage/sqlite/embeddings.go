package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PutEmbedding caches a vector for (item, model), replacing any previous one
func (s *SQLiteStorage) PutEmbedding(ctx context.Context, itemID, model string, vector []float32) error {
	if itemID == "" || model == "" {
		return fmt.Errorf("item_id and model are required")
	}
	if len(vector) == 0 {
		return fmt.Errorf("vector is empty")
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (item_id, model, vector, dim, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id, model) DO UPDATE SET
			vector = excluded.vector,
			dim = excluded.dim,
			created_at = excluded.created_at
	`, itemID, model, string(data), len(vector), time.Now())
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns the cached vector for (item, model), or (nil, nil)
// when no vector is cached.
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, itemID, model string) ([]float32, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT vector FROM embeddings WHERE item_id = ? AND model = ?
	`, itemID, model).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal([]byte(data), &vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector for %s: %w", itemID, err)
	}
	return vector, nil
}

// DeleteEmbeddings removes all cached vectors for an item (every model)
func (s *SQLiteStorage) DeleteEmbeddings(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

// ListEmbeddings returns all cached vectors for one model, keyed by item id.
// Used to warm the in-memory vector index at startup.
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, model string) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, vector FROM embeddings WHERE model = ?
	`, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	vectors := make(map[string][]float32)
	for rows.Next() {
		var itemID, data string
		if err := rows.Scan(&itemID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		var vector []float32
		if err := json.Unmarshal([]byte(data), &vector); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector for %s: %w", itemID, err)
		}
		vectors[itemID] = vector
	}
	return vectors, rows.Err()
}

// InvalidateStaleEmbeddings deletes cached vectors produced by any model
// other than currentModel. Run after an embedding algorithm change so stale
// vectors cannot be compared against fresh ones.
func (s *SQLiteStorage) InvalidateStaleEmbeddings(ctx context.Context, currentModel string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE model != ?`, currentModel)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate stale embeddings: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
