package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyFull  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [item-id]",
	Short: "Show the mutation ledger for an item, or recent entries overall",
	Long: `Replay an item's append-only ledger in order, oldest first. Without an
item id, the most recent entries across all items are shown instead.

The chain is verified as a side effect: every entry's before-state must match
the previous entry's after-state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		if len(args) == 0 {
			entries, err := store.RecentLedger(ctx, historyLimit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s %s %s %s by %s %s\n",
					gray(fmt.Sprintf("#%d", e.ID)),
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					cyan(string(e.Action)), e.ItemID, e.BotName,
					gray(e.Reason))
			}
			return nil
		}

		itemID := args[0]
		if err := store.VerifyHistory(ctx, itemID); err != nil {
			fmt.Printf("%s %v\n\n", red("✗ chain verification failed:"), err)
		}

		var afterID int64
		for {
			page, err := store.History(ctx, itemID, afterID, historyLimit)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}
			for _, e := range page {
				fmt.Printf("%s %s %s by %s %s\n",
					gray(fmt.Sprintf("#%d", e.ID)),
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					cyan(string(e.Action)), e.BotName, gray(e.Reason))
				if historyFull {
					if e.BeforeState != nil {
						fmt.Printf("    before: %s\n", *e.BeforeState)
					}
					if e.AfterState != nil {
						fmt.Printf("    after:  %s\n", *e.AfterState)
					}
				}
				afterID = e.ID
			}
			if len(page) < historyLimit {
				break
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "entries per page")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "print before/after snapshots")
	rootCmd.AddCommand(historyCmd)
}
