package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/curator/internal/types"
)

const runColumns = `id, bot_name, started_at, completed_at, status,
       items_processed, items_created, items_updated, items_deleted, summary`

// StartRun creates a BotRun row with status running
func (s *SQLiteStorage) StartRun(ctx context.Context, botName string) (*types.BotRun, error) {
	if botName == "" {
		return nil, fmt.Errorf("bot_name is required")
	}

	run := &types.BotRun{
		ID:        uuid.NewString(),
		BotName:   botName,
		StartedAt: time.Now(),
		Status:    types.RunRunning,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_runs (id, bot_name, started_at, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.BotName, run.StartedAt, run.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// RecordOutcome increments the counter matching the outcome, plus
// items_processed, once per attributed work item completion. Counters only
// accumulate while the run is still running so late attributions cannot
// skew a finished run's totals.
func (s *SQLiteStorage) RecordOutcome(ctx context.Context, runID string, outcome types.Outcome) error {
	var column string
	switch outcome {
	case types.OutcomeCreated:
		column = "items_created"
	case types.OutcomeUpdated:
		column = "items_updated"
	case types.OutcomeDeleted:
		column = "items_deleted"
	default:
		return fmt.Errorf("invalid outcome: %s", outcome)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE bot_runs
		SET items_processed = items_processed + 1, %s = %s + 1
		WHERE id = ? AND status = 'running'
	`, column, column), runID)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		run, err := s.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("bot run not found: %s", runID)
		}
		return &types.AlreadyFinishedError{RunID: runID}
	}
	return nil
}

// FinishRun sets the final status, summary, and completed_at exactly once.
// A second call returns an AlreadyFinishedError.
func (s *SQLiteStorage) FinishRun(ctx context.Context, runID string, status types.RunStatus, summary string) error {
	if status != types.RunCompleted && status != types.RunFailed {
		return fmt.Errorf("invalid final run status: %s", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bot_runs
		SET status = ?, summary = ?, completed_at = ?
		WHERE id = ? AND status = 'running'
	`, status, summary, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		run, err := s.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("bot run not found: %s", runID)
		}
		return &types.AlreadyFinishedError{RunID: runID}
	}
	return nil
}

// GetRun retrieves a bot run by ID. Returns (nil, nil) if not found.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*types.BotRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM bot_runs WHERE id = ?
	`, runColumns), runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.BotRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM bot_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, runColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.BotRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*types.BotRun, error) {
	var run types.BotRun
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.BotName, &run.StartedAt, &completedAt, &run.Status,
		&run.ItemsProcessed, &run.ItemsCreated, &run.ItemsUpdated,
		&run.ItemsDeleted, &run.Summary,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
