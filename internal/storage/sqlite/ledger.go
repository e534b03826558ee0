package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/prepforge/curator/internal/types"
)

const ledgerColumns = `id, bot_name, action, item_type, item_id, before_state, after_state, reason, created_at`

// ApplyMutation writes one content mutation and its ledger entry in a single
// transaction. The ledger and the content store can therefore never diverge
// for a committed mutation: either both land or neither does.
//
// Before == nil means creation (After required); a delete is a soft delete
// expressed as After.Status == deleted. The before snapshot is re-read inside
// the transaction and checked against the caller's view; a mismatch means
// some write bypassed the queue, which is a protocol violation reported as a
// ConsistencyError.
func (s *SQLiteStorage) ApplyMutation(ctx context.Context, mut *types.Mutation) (*types.LedgerEntry, error) {
	if mut.After == nil {
		return nil, fmt.Errorf("mutation requires an after state")
	}
	if mut.BotName == "" {
		return nil, fmt.Errorf("bot_name is required")
	}
	if !mut.Action.IsValid() {
		return nil, fmt.Errorf("invalid action: %s", mut.Action)
	}

	now := time.Now()
	after := *mut.After
	if mut.Before == nil && after.CreatedAt.IsZero() {
		after.CreatedAt = now
	}
	after.UpdatedAt = now
	if err := after.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	entry := &types.LedgerEntry{
		BotName:   mut.BotName,
		Action:    mut.Action,
		ItemType:  mut.ItemType,
		ItemID:    mut.ItemID,
		Reason:    mut.Reason,
		CreatedAt: now,
	}

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		current, err := getContentConn(ctx, conn, mut.ItemID)
		if err != nil {
			return err
		}

		if mut.Before == nil {
			if current != nil {
				return &types.ConsistencyError{
					ItemID: mut.ItemID,
					Detail: "creation requested but a content row already exists",
				}
			}
			if err := insertContentConn(ctx, conn, &after); err != nil {
				return err
			}
		} else {
			if current == nil {
				return &types.ConsistencyError{
					ItemID: mut.ItemID,
					Detail: "mutation of a content row that does not exist",
				}
			}
			// Full precision: a bypassing write landing in the same second as
			// the claim snapshot must still be caught.
			if current.UpdatedAt.UnixNano() != mut.Before.UpdatedAt.UnixNano() {
				return &types.ConsistencyError{
					ItemID: mut.ItemID,
					Detail: fmt.Sprintf("content row changed outside the queue (row updated %s, claim snapshot %s)",
						current.UpdatedAt.Format(time.RFC3339Nano), mut.Before.UpdatedAt.Format(time.RFC3339Nano)),
				}
			}
			if err := updateContentConn(ctx, conn, &after); err != nil {
				return err
			}

			beforeJSON, err := json.Marshal(mut.Before)
			if err != nil {
				return fmt.Errorf("failed to marshal before state: %w", err)
			}
			beforeStr := string(beforeJSON)
			entry.BeforeState = &beforeStr
		}

		afterJSON, err := json.Marshal(&after)
		if err != nil {
			return fmt.Errorf("failed to marshal after state: %w", err)
		}
		afterStr := string(afterJSON)
		entry.AfterState = &afterStr

		err = conn.QueryRowContext(ctx, `
			INSERT INTO bot_ledger (bot_name, action, item_type, item_id, before_state, after_state, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			entry.BotName, entry.Action, entry.ItemType, entry.ItemID,
			entry.BeforeState, entry.AfterState, entry.Reason, entry.CreatedAt,
		).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to record ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// History returns an item's ledger entries with id > afterID, oldest first.
// Paging by the monotonic id makes replay restartable: callers resume from
// the last id they saw.
func (s *SQLiteStorage) History(ctx context.Context, itemID string, afterID int64, limit int) ([]*types.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM bot_ledger
		WHERE item_id = ? AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`, ledgerColumns), itemID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanLedgerRows(rows)
}

// RecentLedger returns the newest entries across all items, newest first
func (s *SQLiteStorage) RecentLedger(ctx context.Context, limit int) ([]*types.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM bot_ledger
		ORDER BY id DESC
		LIMIT ?
	`, ledgerColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent ledger: %w", err)
	}
	defer rows.Close()
	return scanLedgerRows(rows)
}

// VerifyHistory checks the chain invariant for one item: entry N's afterState
// must structurally match entry N+1's beforeState. A break means a mutation
// bypassed the ledger. The violation is fatal and returned as a
// ConsistencyError, never swallowed.
func (s *SQLiteStorage) VerifyHistory(ctx context.Context, itemID string) error {
	const pageSize = 500
	var afterID int64
	var prev *types.LedgerEntry

	for {
		entries, err := s.History(ctx, itemID, afterID, pageSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		for _, entry := range entries {
			if prev != nil {
				if err := checkChainLink(itemID, prev, entry); err != nil {
					return err
				}
			}
			prev = entry
			afterID = entry.ID
		}

		if len(entries) < pageSize {
			return nil
		}
	}
}

func checkChainLink(itemID string, prev, next *types.LedgerEntry) error {
	if prev.AfterState == nil {
		return &types.ConsistencyError{
			ItemID:  itemID,
			EntryID: prev.ID,
			Detail:  "entry has no after state but a later entry exists",
		}
	}
	if next.BeforeState == nil {
		return &types.ConsistencyError{
			ItemID:  itemID,
			EntryID: next.ID,
			Detail:  "entry has no before state but an earlier entry exists",
		}
	}
	if !jsonEqual(*prev.AfterState, *next.BeforeState) {
		return &types.ConsistencyError{
			ItemID:  itemID,
			EntryID: next.ID,
			Detail:  fmt.Sprintf("before state does not match entry %d's after state", prev.ID),
		}
	}
	return nil
}

// jsonEqual compares two JSON documents structurally, ignoring key order
func jsonEqual(a, b string) bool {
	var av, bv interface{}
	if err := json.Unmarshal([]byte(a), &av); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(b), &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func scanLedgerRows(rows *sql.Rows) ([]*types.LedgerEntry, error) {
	var entries []*types.LedgerEntry
	for rows.Next() {
		var entry types.LedgerEntry
		var before, after sql.NullString
		err := rows.Scan(
			&entry.ID, &entry.BotName, &entry.Action, &entry.ItemType, &entry.ItemID,
			&before, &after, &entry.Reason, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if before.Valid {
			entry.BeforeState = &before.String
		}
		if after.Valid {
			entry.AfterState = &after.String
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
