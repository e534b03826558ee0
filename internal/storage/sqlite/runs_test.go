package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/prepforge/curator/internal/types"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run, err := db.StartRun(ctx, "generator-bot")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.Status != types.RunRunning {
		t.Errorf("new run status = %s, want running", run.Status)
	}

	for _, outcome := range []types.Outcome{
		types.OutcomeCreated, types.OutcomeCreated,
		types.OutcomeUpdated,
		types.OutcomeDeleted,
	} {
		if err := db.RecordOutcome(ctx, run.ID, outcome); err != nil {
			t.Fatalf("RecordOutcome(%s) failed: %v", outcome, err)
		}
	}

	if err := db.FinishRun(ctx, run.ID, types.RunCompleted, "processed 4 items"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ItemsProcessed != 4 || got.ItemsCreated != 2 || got.ItemsUpdated != 1 || got.ItemsDeleted != 1 {
		t.Errorf("counters = %d/%d/%d/%d, want 4/2/1/1",
			got.ItemsProcessed, got.ItemsCreated, got.ItemsUpdated, got.ItemsDeleted)
	}
	if got.Status != types.RunCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("finished run should have completed_at")
	}
	if got.Summary != "processed 4 items" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestFinishRunTwiceFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run, err := db.StartRun(ctx, "verifier-bot")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, run.ID, types.RunFailed, "consistency violation"); err != nil {
		t.Fatalf("first finish failed: %v", err)
	}

	err = db.FinishRun(ctx, run.ID, types.RunCompleted, "second attempt")
	var already *types.AlreadyFinishedError
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadyFinishedError, got %v", err)
	}

	// The original final state is untouched
	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.RunFailed || got.Summary != "consistency violation" {
		t.Error("second finish must not modify the run")
	}
}

func TestRecordOutcomeAfterFinishFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run, err := db.StartRun(ctx, "improver-bot")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, run.ID, types.RunCompleted, ""); err != nil {
		t.Fatal(err)
	}

	err = db.RecordOutcome(ctx, run.ID, types.OutcomeUpdated)
	var already *types.AlreadyFinishedError
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadyFinishedError, got %v", err)
	}
}

func TestRecordOutcomeUnknownRun(t *testing.T) {
	db := setupTestDB(t)
	if err := db.RecordOutcome(context.Background(), "no-such-run", types.OutcomeCreated); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestFinishRunRejectsRunningStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run, err := db.StartRun(ctx, "generator-bot")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, run.ID, types.RunRunning, ""); err == nil {
		t.Error("finishing with status running should fail")
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.StartRun(ctx, "bot-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.StartRun(ctx, "bot-b"); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}
