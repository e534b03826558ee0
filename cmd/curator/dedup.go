package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/dedup"
	"github.com/prepforge/curator/internal/embedding"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Run one duplicate-detection scan",
	Long: `Scan unchecked content for near-duplicates: embed each item (cached
vectors are reused), query nearest neighbors above the similarity cutoff, and
enqueue high-priority delete work for the losing side of every cluster.

Requires a running Ollama instance (OLLAMA_HOST, default localhost:11434).
Deletes route through the work queue, so a worker must be running (or run
later) for losers to actually be removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		embedder, err := embedding.NewClient(embedding.Config{
			Model:             cfg.Embedding.Model,
			MaxRetries:        cfg.Embedding.MaxRetries,
			Timeout:           cfg.Embedding.Timeout(),
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		})
		if err != nil {
			return err
		}

		index, err := warmIndex(ctx)
		if err != nil {
			return err
		}

		engine := dedup.New(store, embedder, index, dedup.Config{
			MinSimilarity: cfg.Dedup.MinSimilarity,
			Neighbors:     cfg.Dedup.Neighbors,
			BatchSize:     cfg.Dedup.BatchSize,
			RetryBudget:   cfg.Queue.RetryBudget,
			BotName:       cfg.BotName,
		})

		pairs, err := engine.ScanForDuplicates(ctx)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		if len(pairs) == 0 {
			fmt.Printf("%s no duplicates found\n", green("✓"))
			return nil
		}
		fmt.Printf("%s %d candidate pair(s):\n", yellow("⚠"), len(pairs))
		for _, p := range pairs {
			fmt.Printf("  %s ~ %s (similarity %.3f)\n", p.ItemA, p.ItemB, p.Similarity)
		}
		fmt.Println("delete work enqueued for the losing items")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}
