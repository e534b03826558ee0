package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/prepforge/curator/internal/types"
)

const contentColumns = `id, text, answer, tags, difficulty, channel, relevance_score,
       status, embedding_model, duplicate_checked, created_at, updated_at`

// GetContent retrieves a content item by ID. Returns (nil, nil) if not found.
func (s *SQLiteStorage) GetContent(ctx context.Context, id string) (*types.ContentItem, error) {
	item, err := scanContentItem(s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM content_items WHERE id = ?
	`, contentColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// ListUncheckedContent returns active items that have not been through a
// dedup scan yet, oldest first so long-lived items are examined before churn.
func (s *SQLiteStorage) ListUncheckedContent(ctx context.Context, limit int) ([]*types.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM content_items
		WHERE status = 'active' AND duplicate_checked = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, contentColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unchecked content: %w", err)
	}
	defer rows.Close()

	var items []*types.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkDuplicateChecked flags items as having been through a dedup scan.
// This is scan bookkeeping, not a content mutation, so it does not produce
// ledger entries.
func (s *SQLiteStorage) MarkDuplicateChecked(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE content_items SET duplicate_checked = 1 WHERE id IN (%s)
	`, placeholders(len(ids))), args...)
	if err != nil {
		return fmt.Errorf("failed to mark items duplicate-checked: %w", err)
	}
	return nil
}

func getContentConn(ctx context.Context, conn *sql.Conn, id string) (*types.ContentItem, error) {
	item, err := scanContentItem(conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM content_items WHERE id = ?
	`, contentColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

func insertContentConn(ctx context.Context, conn *sql.Conn, item *types.ContentItem) error {
	tags, err := marshalTags(item.Tags)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO content_items (
			id, text, answer, tags, difficulty, channel, relevance_score,
			status, embedding_model, duplicate_checked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, item.Text, item.Answer, tags, item.Difficulty, item.Channel,
		item.RelevanceScore, item.Status, item.EmbeddingModel,
		boolToInt(item.DuplicateChecked), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert content item: %w", err)
	}
	return nil
}

func updateContentConn(ctx context.Context, conn *sql.Conn, item *types.ContentItem) error {
	tags, err := marshalTags(item.Tags)
	if err != nil {
		return err
	}
	res, err := conn.ExecContext(ctx, `
		UPDATE content_items
		SET text = ?, answer = ?, tags = ?, difficulty = ?, channel = ?,
		    relevance_score = ?, status = ?, embedding_model = ?,
		    duplicate_checked = ?, updated_at = ?
		WHERE id = ?
	`,
		item.Text, item.Answer, tags, item.Difficulty, item.Channel,
		item.RelevanceScore, item.Status, item.EmbeddingModel,
		boolToInt(item.DuplicateChecked), item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update content item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("content item not found: %s", item.ID)
	}
	return nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanContentItem(row rowScanner) (*types.ContentItem, error) {
	var item types.ContentItem
	var tags string
	var checked int

	err := row.Scan(
		&item.ID, &item.Text, &item.Answer, &tags, &item.Difficulty,
		&item.Channel, &item.RelevanceScore, &item.Status,
		&item.EmbeddingModel, &checked, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", item.ID, err)
	}
	if len(item.Tags) == 0 {
		item.Tags = nil
	}
	item.DuplicateChecked = checked != 0
	return &item, nil
}
