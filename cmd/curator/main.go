package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prepforge/curator/internal/config"
	"github.com/prepforge/curator/internal/storage"
)

var (
	cfgPath string
	cfg     *config.Config
	store   storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Interview-prep content curation pipeline",
	Long: `curator coordinates autonomous bots over a shared question store.

Bots propose work (create, improve, enrich, verify, delete) into a durable
work queue; workers claim items atomically, execute the action, and record
every mutation in an append-only ledger. A dedup engine embeds questions and
resolves near-duplicates through the same queue so nothing escapes the audit
trail.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: cfg.DBPath})
		if err != nil {
			return fmt.Errorf("failed to open storage at %s: %w", cfg.DBPath, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "curator.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
