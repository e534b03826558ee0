package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/curator/internal/types"
)

// WorkFilter narrows ListWorkItems results. Zero-valued fields are ignored.
type WorkFilter struct {
	Status   types.WorkStatus
	Action   types.Action
	ItemID   string
	ItemType string
	Limit    int
}

const workItemColumns = `id, item_type, item_id, action, priority, status, reason,
       created_by, assigned_to, retries_left, result, created_at, claimed_at, processed_at`

// Enqueue adds a pending work item to the queue. It returns a
// DuplicateWorkError when an equivalent pending or processing item already
// exists for the same (item_type, item_id, action).
func (s *SQLiteStorage) Enqueue(ctx context.Context, item *types.WorkItem) (*types.WorkItem, error) {
	queued := *item
	if queued.ID == "" {
		queued.ID = uuid.NewString()
	}
	if queued.Priority == 0 {
		queued.Priority = 5
	}
	queued.Status = types.WorkPending
	queued.AssignedTo = ""
	queued.Result = ""
	queued.CreatedAt = time.Now()
	queued.ClaimedAt = nil
	queued.ProcessedAt = nil

	if err := queued.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// The duplicate check and insert must be one atomic unit, otherwise two
	// bots can race past the check and both insert.
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var exists int
		err := conn.QueryRowContext(ctx, `
			SELECT 1 FROM work_queue
			WHERE item_type = ? AND item_id = ? AND action = ?
			  AND status IN ('pending', 'processing')
			LIMIT 1
		`, queued.ItemType, queued.ItemID, queued.Action).Scan(&exists)
		if err == nil {
			return &types.DuplicateWorkError{ItemType: queued.ItemType, ItemID: queued.ItemID, Action: queued.Action}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check for duplicate work: %w", err)
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO work_queue (
				id, item_type, item_id, action, priority, status, reason,
				created_by, retries_left, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			queued.ID, queued.ItemType, queued.ItemID, queued.Action,
			queued.Priority, queued.Status, queued.Reason,
			queued.CreatedBy, queued.RetriesLeft, queued.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert work item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &queued, nil
}

// ClaimNext atomically claims the highest-priority pending item among
// allowedActions (ties broken by earliest created_at), transitions it to
// processing, and stamps assigned_to. Returns (nil, nil) when nothing is
// claimable.
//
// The claim is one conditional UPDATE ... RETURNING statement, never
// read-then-write, so no two concurrent callers can claim the same item.
// Items whose (item_type, item_id) already has a processing row are excluded
// from selection, which enforces at-most-one-in-flight per content item.
func (s *SQLiteStorage) ClaimNext(ctx context.Context, assignee string, allowedActions []types.Action) (*types.WorkItem, error) {
	if assignee == "" {
		return nil, fmt.Errorf("assignee is required")
	}

	if len(allowedActions) == 0 {
		allowedActions = types.AllActions()
	}
	args := make([]interface{}, 0, len(allowedActions)+2)
	args = append(args, assignee, time.Now())
	for _, a := range allowedActions {
		if !a.IsValid() {
			return nil, fmt.Errorf("invalid action: %s", a)
		}
		args = append(args, string(a))
	}

	query := fmt.Sprintf(`
		UPDATE work_queue
		SET status = 'processing', assigned_to = ?, claimed_at = ?
		WHERE id = (
			SELECT w.id FROM work_queue w
			WHERE w.status = 'pending'
			  AND w.action IN (%s)
			  AND NOT EXISTS (
				SELECT 1 FROM work_queue p
				WHERE p.item_type = w.item_type
				  AND p.item_id = w.item_id
				  AND p.status = 'processing'
			  )
			ORDER BY w.priority ASC, w.created_at ASC, w.id ASC
			LIMIT 1
		)
		AND status = 'pending'
		RETURNING %s
	`, placeholders(len(allowedActions)), workItemColumns)

	item, err := scanWorkItem(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim work item: %w", err)
	}
	return item, nil
}

// Complete transitions a processing work item to completed and stamps
// processed_at. Only the worker holding the claim may complete it: a caller
// that does not match assigned_to gets a ConflictError, and an item that is
// not processing gets an InvalidTransitionError (so a second Complete on the
// same item is rejected).
func (s *SQLiteStorage) Complete(ctx context.Context, workItemID, assignee, result string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_queue
		SET status = 'completed', result = ?, processed_at = ?
		WHERE id = ? AND status = 'processing' AND assigned_to = ?
	`, result, time.Now(), workItemID, assignee)
	if err != nil {
		return fmt.Errorf("failed to complete work item: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.settleRejection(ctx, workItemID, assignee, types.WorkCompleted)
	}
	return nil
}

// Fail transitions a processing work item to failed. Only the worker holding
// the claim may fail it (ConflictError otherwise). When retryable is true and
// retry budget remains, a fresh pending item is enqueued with a decremented
// budget and returned; otherwise the failure is terminal and the returned
// item is nil.
func (s *SQLiteStorage) Fail(ctx context.Context, workItemID, assignee, errMsg string, retryable bool) (*types.WorkItem, error) {
	var requeued *types.WorkItem

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		failed, err := scanWorkItem(conn.QueryRowContext(ctx, fmt.Sprintf(`
			UPDATE work_queue
			SET status = 'failed', result = ?, processed_at = ?
			WHERE id = ? AND status = 'processing' AND assigned_to = ?
			RETURNING %s
		`, workItemColumns), errMsg, time.Now(), workItemID, assignee))
		if err == sql.ErrNoRows {
			return s.settleRejectionConn(ctx, conn, workItemID, assignee, types.WorkFailed)
		}
		if err != nil {
			return fmt.Errorf("failed to fail work item: %w", err)
		}

		if !retryable || failed.RetriesLeft <= 0 {
			return nil
		}

		retry, err := requeueConn(ctx, conn, failed)
		if err != nil {
			return err
		}
		requeued = retry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

// requeueConn inserts a fresh pending copy of a failed work item with one
// less retry in the budget.
func requeueConn(ctx context.Context, conn *sql.Conn, failed *types.WorkItem) (*types.WorkItem, error) {
	retry := &types.WorkItem{
		ID:          uuid.NewString(),
		ItemType:    failed.ItemType,
		ItemID:      failed.ItemID,
		Action:      failed.Action,
		Priority:    failed.Priority,
		Status:      types.WorkPending,
		Reason:      failed.Reason,
		CreatedBy:   failed.CreatedBy,
		RetriesLeft: failed.RetriesLeft - 1,
		CreatedAt:   time.Now(),
	}
	_, err := conn.ExecContext(ctx, `
		INSERT INTO work_queue (
			id, item_type, item_id, action, priority, status, reason,
			created_by, retries_left, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		retry.ID, retry.ItemType, retry.ItemID, retry.Action,
		retry.Priority, retry.Status, retry.Reason,
		retry.CreatedBy, retry.RetriesLeft, retry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to re-enqueue work item: %w", err)
	}
	return retry, nil
}

// ReclaimAbandoned fails every processing work item whose claim is older than
// the given age. A claim that old means its worker died without settling:
// nothing else ever transitions the row, and the in-flight guard would block
// the item's (item_type, item_id) forever. Reclaimed items go back through
// the normal retry budget. Returns the number of claims reclaimed.
func (s *SQLiteStorage) ReclaimAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var reclaimed int

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
			UPDATE work_queue
			SET status = 'failed', result = ?, processed_at = ?
			WHERE status = 'processing' AND claimed_at < ?
			RETURNING %s
		`, workItemColumns),
			fmt.Sprintf("claim abandoned: not settled within %s", olderThan),
			time.Now(), cutoff)
		if err != nil {
			return fmt.Errorf("failed to reclaim abandoned claims: %w", err)
		}

		var abandoned []*types.WorkItem
		for rows.Next() {
			item, err := scanWorkItem(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan abandoned work item: %w", err)
			}
			abandoned = append(abandoned, item)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, item := range abandoned {
			if item.RetriesLeft <= 0 {
				continue
			}
			if _, err := requeueConn(ctx, conn, item); err != nil {
				return err
			}
		}
		reclaimed = len(abandoned)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reclaimed, nil
}

// BoostStaleItems raises the priority of pending items older than the given
// age by one step (toward 1). Called once per scan cycle so aged items cannot
// starve behind a stream of higher-priority work.
func (s *SQLiteStorage) BoostStaleItems(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_queue
		SET priority = priority - 1
		WHERE status = 'pending' AND priority > 1 AND created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to boost stale items: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// GetWorkItem retrieves a work item by ID. Returns (nil, nil) if not found.
func (s *SQLiteStorage) GetWorkItem(ctx context.Context, id string) (*types.WorkItem, error) {
	item, err := scanWorkItem(s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM work_queue WHERE id = ?
	`, workItemColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return item, nil
}

// ListWorkItems returns work items matching the filter, claim order first
func (s *SQLiteStorage) ListWorkItems(ctx context.Context, filter WorkFilter) ([]*types.WorkItem, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Action != "" {
		whereClauses = append(whereClauses, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.ItemID != "" {
		whereClauses = append(whereClauses, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.ItemType != "" {
		whereClauses = append(whereClauses, "item_type = ?")
		args = append(args, filter.ItemType)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM work_queue
		%s
		ORDER BY priority ASC, created_at ASC, id ASC
		%s
	`, workItemColumns, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var items []*types.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// settleRejection builds the error for a rejected settle, distinguishing
// "not found" from "wrong state" from "claimed by someone else".
func (s *SQLiteStorage) settleRejection(ctx context.Context, workItemID, assignee string, to types.WorkStatus) error {
	return settleRejectionRow(
		s.db.QueryRowContext(ctx, `SELECT status, assigned_to FROM work_queue WHERE id = ?`, workItemID),
		workItemID, assignee, to)
}

func (s *SQLiteStorage) settleRejectionConn(ctx context.Context, conn *sql.Conn, workItemID, assignee string, to types.WorkStatus) error {
	return settleRejectionRow(
		conn.QueryRowContext(ctx, `SELECT status, assigned_to FROM work_queue WHERE id = ?`, workItemID),
		workItemID, assignee, to)
}

func settleRejectionRow(row *sql.Row, workItemID, assignee string, to types.WorkStatus) error {
	var status string
	var assignedTo sql.NullString
	err := row.Scan(&status, &assignedTo)
	if err == sql.ErrNoRows {
		return fmt.Errorf("work item not found: %s", workItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to check work item status: %w", err)
	}
	if types.WorkStatus(status) == types.WorkProcessing && assignedTo.String != assignee {
		return &types.ConflictError{WorkItemID: workItemID, AssignedTo: assignedTo.String}
	}
	return &types.InvalidTransitionError{WorkItemID: workItemID, From: types.WorkStatus(status), To: to}
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkItem(row rowScanner) (*types.WorkItem, error) {
	var item types.WorkItem
	var assignedTo sql.NullString
	var result sql.NullString
	var claimedAt sql.NullTime
	var processedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.ItemType, &item.ItemID, &item.Action, &item.Priority,
		&item.Status, &item.Reason, &item.CreatedBy, &assignedTo,
		&item.RetriesLeft, &result, &item.CreatedAt, &claimedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		item.AssignedTo = assignedTo.String
	}
	if result.Valid {
		item.Result = result.String
	}
	if claimedAt.Valid {
		item.ClaimedAt = &claimedAt.Time
	}
	if processedAt.Valid {
		item.ProcessedAt = &processedAt.Time
	}
	return &item, nil
}
