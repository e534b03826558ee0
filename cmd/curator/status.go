package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue, content, ledger, and run counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := store.GetStatistics(cmd.Context())
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Curator Status ==="))

		fmt.Printf("%s\n", yellow("Work Queue:"))
		if len(stats.WorkByStatus) == 0 {
			fmt.Printf("  %s\n", gray("empty"))
		}
		for _, status := range []string{"pending", "processing", "completed", "failed"} {
			if n, ok := stats.WorkByStatus[status]; ok {
				fmt.Printf("  %-12s %d\n", status, n)
			}
		}

		fmt.Printf("\n%s\n", yellow("Content:"))
		if len(stats.ContentByStatus) == 0 {
			fmt.Printf("  %s\n", gray("empty"))
		}
		for _, status := range []string{"active", "flagged", "deleted"} {
			if n, ok := stats.ContentByStatus[status]; ok {
				fmt.Printf("  %-12s %d\n", status, n)
			}
		}

		fmt.Printf("\n%s\n", yellow("Ledger:"))
		fmt.Printf("  entries      %d\n", stats.LedgerEntries)

		fmt.Printf("\n%s\n", yellow("Runs:"))
		fmt.Printf("  running      %d\n", stats.RunningRuns)

		fmt.Printf("\n%s\n", yellow("Vector cache:"))
		fmt.Printf("  vectors      %d\n", stats.CachedVectors)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
