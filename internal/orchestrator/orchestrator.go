// Package orchestrator runs the pipeline loop: claim work, dispatch to a bot
// behavior, record the mutation, and settle the work item. It owns only the
// coordination contract; content logic lives in the behaviors.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prepforge/curator/internal/scorer"
	"github.com/prepforge/curator/internal/storage"
	"github.com/prepforge/curator/internal/types"
	"github.com/prepforge/curator/internal/vector"
)

// Result is what a behavior reports for a successfully handled work item.
type Result struct {
	Summary string        // stored as the work item result
	Outcome types.Outcome // run counter attribution
}

// Behavior executes one action against a content item. For create actions
// item is nil; the behavior builds the new state from the work item's
// reason/seed. Behaviors never touch storage: the orchestrator applies the
// returned state through the ledger.
type Behavior interface {
	Execute(ctx context.Context, work *types.WorkItem, item *types.ContentItem) (*types.ContentItem, *Result, error)
}

// Config holds orchestrator tuning parameters.
type Config struct {
	BotName      string
	Workers      int
	PollInterval time.Duration // idle sleep when the queue is empty
	StaleAge     time.Duration // pending age before a priority boost
	ClaimTimeout time.Duration // processing age before a claim counts as abandoned
	MinScore     int           // relevance gate for newly created items
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		BotName:      "curator",
		Workers:      1,
		PollInterval: 5 * time.Second,
		StaleAge:     10 * time.Minute,
		ClaimTimeout: 15 * time.Minute,
		MinScore:     scorer.DefaultMinScore,
	}
}

// Orchestrator coordinates workers over the shared work queue.
type Orchestrator struct {
	store     storage.Storage
	index     *vector.Index // may be nil; delete cleanup is skipped then
	behaviors map[types.Action]Behavior
	actions   []types.Action
	cfg       Config
	log       *slog.Logger
}

// New creates an orchestrator with the given dispatch table. Only actions
// present in the table are ever claimed, so a deploy that handles a subset
// of actions leaves the rest for other bots.
func New(store storage.Storage, index *vector.Index, behaviors map[types.Action]Behavior, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.BotName == "" {
		cfg.BotName = def.BotName
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StaleAge <= 0 {
		cfg.StaleAge = def.StaleAge
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = def.ClaimTimeout
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}

	var actions []types.Action
	for _, a := range types.AllActions() {
		if _, ok := behaviors[a]; ok {
			actions = append(actions, a)
		}
	}

	return &Orchestrator{
		store:     store,
		index:     index,
		behaviors: behaviors,
		actions:   actions,
		cfg:       cfg,
		log:       slog.Default().With("bot", cfg.BotName),
	}
}

// Run processes work until ctx is canceled. It records a BotRun covering the
// whole invocation; a consistency violation fails the run and stops all
// workers immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	run, err := o.store.StartRun(ctx, o.cfg.BotName)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	o.log.Info("run started", "run_id", run.ID, "workers", o.cfg.Workers, "actions", o.actions)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			return o.workerLoop(gctx, run.ID)
		})
	}
	g.Go(func() error {
		return o.maintenanceLoop(gctx)
	})

	err = g.Wait()
	finishCtx := context.Background()

	if err != nil && !isShutdown(err) {
		detail := err.Error()
		if ferr := o.store.FinishRun(finishCtx, run.ID, types.RunFailed, detail); ferr != nil {
			o.log.Error("failed to finish run", "run_id", run.ID, "error", ferr)
		}
		o.log.Error("run failed", "run_id", run.ID, "error", err)
		return err
	}

	if ferr := o.store.FinishRun(finishCtx, run.ID, types.RunCompleted, "shutdown requested"); ferr != nil {
		o.log.Error("failed to finish run", "run_id", run.ID, "error", ferr)
	}
	o.log.Info("run completed", "run_id", run.ID)
	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o *Orchestrator) workerLoop(ctx context.Context, runID string) error {
	for {
		processed, err := o.ProcessOne(ctx, runID)
		if err != nil {
			if types.IsConsistency(err) {
				// Fatal: stop every worker and fail the run
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.log.Error("work item failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-time.After(o.cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// maintenanceLoop runs the periodic queue hygiene: long-pending items get a
// priority boost so low-priority work cannot starve, and claims abandoned by
// dead workers are failed back through the retry budget so their content
// items do not stay blocked forever.
func (o *Orchestrator) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.StaleAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			boosted, err := o.store.BoostStaleItems(ctx, o.cfg.StaleAge)
			if err != nil {
				o.log.Error("stale boost failed", "error", err)
			} else if boosted > 0 {
				o.log.Info("boosted stale work items", "count", boosted)
			}

			reclaimed, err := o.store.ReclaimAbandoned(ctx, o.cfg.ClaimTimeout)
			if err != nil {
				o.log.Error("claim reclaim failed", "error", err)
			} else if reclaimed > 0 {
				o.log.Warn("reclaimed abandoned claims", "count", reclaimed)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProcessOne claims and settles a single work item. Returns false when the
// queue had nothing claimable. Consistency errors propagate so callers can
// abort; every other failure is settled on the work item itself.
func (o *Orchestrator) ProcessOne(ctx context.Context, runID string) (bool, error) {
	work, err := o.store.ClaimNext(ctx, o.cfg.BotName, o.actions)
	if err != nil {
		return false, fmt.Errorf("claim failed: %w", err)
	}
	if work == nil {
		return false, nil
	}

	o.log.Info("claimed work item",
		"work_id", work.ID, "action", work.Action, "item", work.ItemID, "priority", work.Priority)

	if err := o.execute(ctx, runID, work); err != nil {
		return true, err
	}
	return true, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, work *types.WorkItem) error {
	behavior, ok := o.behaviors[work.Action]
	if !ok {
		// Cannot happen for claimed items; claim filters on the dispatch table
		_, err := o.store.Fail(ctx, work.ID, o.cfg.BotName, fmt.Sprintf("no behavior for action %s", work.Action), false)
		return err
	}

	item, err := o.store.GetContent(ctx, work.ItemID)
	if err != nil {
		return o.settleFailure(ctx, work, item, fmt.Errorf("failed to load content: %w", err))
	}

	newItem, result, err := behavior.Execute(ctx, work, item)
	if err != nil {
		return o.settleFailure(ctx, work, item, err)
	}

	// Relevance gate: newly created items below the threshold are flagged
	// rather than published.
	reason := work.Reason
	if work.Action == types.ActionCreate {
		score, _ := scorer.Score(newItem)
		newItem.RelevanceScore = score
		if score < o.cfg.MinScore {
			newItem.Status = types.ContentFlagged
			reason = fmt.Sprintf("relevance %d below gate %d", score, o.cfg.MinScore)
			o.log.Info("item flagged by relevance gate", "item", work.ItemID, "score", score)
		}
	}

	if _, err := o.store.ApplyMutation(ctx, &types.Mutation{
		BotName:  o.cfg.BotName,
		Action:   work.Action,
		ItemType: work.ItemType,
		ItemID:   work.ItemID,
		Before:   item,
		After:    newItem,
		Reason:   reason,
	}); err != nil {
		if types.IsConsistency(err) {
			return err
		}
		return o.settleFailure(ctx, work, item, err)
	}

	if work.Action == types.ActionDelete {
		// Deleted items must not match future dedup queries
		if err := o.store.DeleteEmbeddings(ctx, work.ItemID); err != nil {
			o.log.Error("failed to drop embeddings for deleted item", "item", work.ItemID, "error", err)
		}
		if o.index != nil {
			o.index.Remove(work.ItemID)
		}
	}

	if err := o.store.Complete(ctx, work.ID, o.cfg.BotName, result.Summary); err != nil {
		return fmt.Errorf("failed to complete work item %s: %w", work.ID, err)
	}
	if err := o.store.RecordOutcome(ctx, runID, result.Outcome); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	o.log.Info("work item completed", "work_id", work.ID, "outcome", result.Outcome)
	return nil
}

// settleFailure routes a behavior error by class: validation failures flag
// the item and never retry, consistency violations propagate, and everything
// else is retried through the queue's budget.
func (o *Orchestrator) settleFailure(ctx context.Context, work *types.WorkItem, item *types.ContentItem, cause error) error {
	if types.IsConsistency(cause) {
		return cause
	}

	if types.IsValidation(cause) {
		if item != nil && item.Status == types.ContentActive {
			flagged := *item
			flagged.Status = types.ContentFlagged
			if _, err := o.store.ApplyMutation(ctx, &types.Mutation{
				BotName:  o.cfg.BotName,
				Action:   work.Action,
				ItemType: work.ItemType,
				ItemID:   work.ItemID,
				Before:   item,
				After:    &flagged,
				Reason:   cause.Error(),
			}); err != nil {
				if types.IsConsistency(err) {
					return err
				}
				o.log.Error("failed to flag item", "item", work.ItemID, "error", err)
			}
		}
		if _, err := o.store.Fail(ctx, work.ID, o.cfg.BotName, cause.Error(), false); err != nil {
			return fmt.Errorf("failed to settle work item %s: %w", work.ID, err)
		}
		o.log.Warn("work item failed validation", "work_id", work.ID, "error", cause)
		return nil
	}

	// Transient and unclassified errors go back through the retry budget
	requeued, err := o.store.Fail(ctx, work.ID, o.cfg.BotName, cause.Error(), true)
	if err != nil {
		return fmt.Errorf("failed to settle work item %s: %w", work.ID, err)
	}
	if requeued != nil {
		o.log.Warn("work item re-enqueued", "work_id", work.ID,
			"retries_left", requeued.RetriesLeft, "error", cause)
	} else {
		o.log.Warn("work item exhausted retries", "work_id", work.ID, "error", cause)
	}
	return nil
}
