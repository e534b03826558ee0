package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/types"
)

var (
	enqueuePriority int
	enqueueReason   string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <action> <item-id>",
	Short: "Queue a work item for an action against a content item",
	Long: `Queue one unit of mutation work. Actions: create, improve, delete,
verify, enrich. For create, --reason carries the topic seed the generator
writes the question from.

Example:
  curator enqueue create Q-goroutines-1 --reason "goroutine scheduling" --priority 2
  curator enqueue verify Q-goroutines-1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := types.Action(args[0])
		if !action.IsValid() {
			return fmt.Errorf("invalid action %q (valid: %v)", args[0], types.AllActions())
		}

		retries := cfg.Queue.RetryBudget - 1
		if retries < 0 {
			retries = 0
		}
		work, err := store.Enqueue(cmd.Context(), &types.WorkItem{
			ItemType:    "question",
			ItemID:      args[1],
			Action:      action,
			Priority:    enqueuePriority,
			Reason:      enqueueReason,
			CreatedBy:   cfg.BotName,
			RetriesLeft: retries,
		})
		if err != nil {
			if types.IsDuplicateWork(err) {
				fmt.Fprintf(os.Stderr, "Already queued: %v\n", err)
				return nil
			}
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s queued %s %s (work %s, priority %d)\n",
			green("✓"), work.Action, work.ItemID, work.ID, work.Priority)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().IntVarP(&enqueuePriority, "priority", "p", 5, "priority 1 (highest) to 10 (lowest)")
	enqueueCmd.Flags().StringVarP(&enqueueReason, "reason", "r", "", "why this work exists; topic seed for create")
	rootCmd.AddCommand(enqueueCmd)
}
