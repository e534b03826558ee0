package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score <item-id>",
	Short: "Score an item and explain each contributing heuristic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := store.GetContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("no content item %s", args[0])
		}

		score, details := scorer.Score(item)

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s  (stored: %d, gate: %d)\n\n", colorScore(score, cfg.Scorer.MinScore), item.RelevanceScore, cfg.Scorer.MinScore)
		fmt.Printf("  %-30s %+d\n", gray("base"), details.Base)
		for _, s := range details.Signals {
			val := green(fmt.Sprintf("%+d", s.Weight))
			if s.Weight < 0 {
				val = red(fmt.Sprintf("%+d", s.Weight))
			}
			fmt.Printf("  %-30s %s\n", s.Name, val)
		}
		return nil
	},
}

func colorScore(score, gate int) string {
	if score < gate {
		return color.New(color.FgRed, color.Bold).Sprintf("score %d", score)
	}
	return color.New(color.FgGreen, color.Bold).Sprintf("score %d", score)
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
