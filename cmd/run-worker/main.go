package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prepforge/curator/internal/config"
	"github.com/prepforge/curator/internal/llm"
	"github.com/prepforge/curator/internal/orchestrator"
	"github.com/prepforge/curator/internal/storage"
)

// Headless worker loop. Same pipeline as `curator run`, without the CLI:
// intended for supervised deployments (systemd, containers) where several
// worker processes share one database.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CURATOR_CONFIG")
	if cfgPath == "" {
		cfgPath = "curator.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Using database: %s\n", cfg.DBPath)

	store, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	var gen llm.Generator
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		client, err := llm.NewClient(llm.Config{
			Model:      cfg.LLM.Model,
			MaxTokens:  cfg.LLM.MaxTokens,
			MaxRetries: cfg.LLM.MaxRetries,
			Timeout:    cfg.LLM.Timeout(),
		})
		if err != nil {
			log.Fatalf("Failed to create generation client: %v", err)
		}
		gen = client
	} else {
		fmt.Println("ANTHROPIC_API_KEY not set; handling verify/delete work only")
	}

	o := orchestrator.New(store, nil, orchestrator.DefaultBehaviors(gen, cfg.Scorer.MinScore), orchestrator.Config{
		BotName:      cfg.BotName,
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval(),
		StaleAge:     cfg.Queue.StaleAge(),
		ClaimTimeout: cfg.Queue.ClaimTimeout(),
		MinScore:     cfg.Scorer.MinScore,
	})

	fmt.Printf("Worker %s running (%d workers). Press Ctrl+C to stop.\n", cfg.BotName, cfg.Workers)
	if err := o.Run(ctx); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
	fmt.Println("Worker stopped.")
}
