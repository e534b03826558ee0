package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/types"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent bot runs with their counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := store.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if len(runs) == 0 {
			fmt.Println(gray("no runs recorded"))
			return nil
		}

		for _, r := range runs {
			icon := yellow("●")
			switch r.Status {
			case types.RunCompleted:
				icon = green("✓")
			case types.RunFailed:
				icon = red("✗")
			}

			duration := "running"
			if r.CompletedAt != nil {
				duration = r.CompletedAt.Sub(r.StartedAt).Round(1e9).String()
			}

			fmt.Printf("%s %s %s started %s (%s)\n", icon, r.BotName, gray(r.ID),
				r.StartedAt.Format("2006-01-02 15:04:05"), duration)
			fmt.Printf("    processed %d, created %d, updated %d, deleted %d\n",
				r.ItemsProcessed, r.ItemsCreated, r.ItemsUpdated, r.ItemsDeleted)
			if r.Summary != "" {
				fmt.Printf("    %s\n", gray(r.Summary))
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
