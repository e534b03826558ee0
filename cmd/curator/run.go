package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/llm"
	"github.com/prepforge/curator/internal/orchestrator"
	"github.com/prepforge/curator/internal/vector"
)

var runWithoutLLM bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline workers until interrupted",
	Long: `Start the orchestrator loop: claim work by priority, dispatch to the
matching bot behavior, and settle each item through the ledger.

Generation-backed actions (create, improve, enrich) need ANTHROPIC_API_KEY.
With --no-llm only verify and delete work is claimed; queued generation work
is left for a fully equipped bot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var gen llm.Generator
		if !runWithoutLLM {
			client, err := llm.NewClient(llm.Config{
				Model:      cfg.LLM.Model,
				MaxTokens:  cfg.LLM.MaxTokens,
				MaxRetries: cfg.LLM.MaxRetries,
				Timeout:    cfg.LLM.Timeout(),
			})
			if err != nil {
				return fmt.Errorf("generation client unavailable (try --no-llm): %w", err)
			}
			gen = client
		}

		index, err := warmIndex(ctx)
		if err != nil {
			return err
		}

		behaviors := orchestrator.DefaultBehaviors(gen, cfg.Scorer.MinScore)
		o := orchestrator.New(store, index, behaviors, orchestrator.Config{
			BotName:      cfg.BotName,
			Workers:      cfg.Workers,
			PollInterval: cfg.PollInterval(),
			StaleAge:     cfg.Queue.StaleAge(),
			ClaimTimeout: cfg.Queue.ClaimTimeout(),
			MinScore:     cfg.Scorer.MinScore,
		})

		green := color.New(color.FgGreen).SprintFunc()
		actions := make([]string, 0, len(behaviors))
		for a := range behaviors {
			actions = append(actions, string(a))
		}
		fmt.Printf("%s curator running as %s (%d workers, actions: %v)\n",
			green("●"), cfg.BotName, cfg.Workers, actions)
		fmt.Println("Press Ctrl+C to stop.")

		if err := o.Run(ctx); err != nil {
			return err
		}
		fmt.Println("curator stopped.")
		return nil
	},
}

// warmIndex loads cached vectors for the current embedding model into an
// in-memory index, after dropping vectors produced by older models.
func warmIndex(ctx context.Context) (*vector.Index, error) {
	dropped, err := store.InvalidateStaleEmbeddings(ctx, cfg.Embedding.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate stale embeddings: %w", err)
	}
	if dropped > 0 {
		fmt.Printf("dropped %d stale cached vectors (model changed)\n", dropped)
	}

	vectors, err := store.ListEmbeddings(ctx, cfg.Embedding.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached vectors: %w", err)
	}
	index := vector.NewIndex()
	index.Load(vectors)
	return index, nil
}

func init() {
	runCmd.Flags().BoolVar(&runWithoutLLM, "no-llm", false, "run without a generation provider (verify/delete only)")
	rootCmd.AddCommand(runCmd)
}
