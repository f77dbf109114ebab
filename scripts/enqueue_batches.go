package main

// Bulk-enqueues analysis batches for a list of tickers. Useful for loading
// the pipeline after a deploy or for re-running a watchlist.
//
// Usage:
//   go run scripts/enqueue_batches.go --tickers AAPL,MSFT,NVDA
//   go run scripts/enqueue_batches.go --tickers AAPL --dry-run

import (
	"context"
	"flag"
	"strings"

	"minerva/internal/adapters/config"
	"minerva/internal/adapters/postgres"
	pgrepo "minerva/internal/repository/postgres"
	"minerva/internal/services/tracker"
	"minerva/pkg/logger"
)

func main() {
	tickersFlag := flag.String("tickers", "", "Comma-separated tickers to enqueue")
	dryRun := flag.Bool("dry-run", false, "Validate input without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	var tickers []string
	for _, t := range strings.Split(*tickersFlag, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		log.Fatal("No tickers given, use --tickers AAPL,MSFT")
	}

	log.Infow("Enqueueing batches", "tickers", tickers, "dry_run", *dryRun)

	if *dryRun {
		log.Info("Dry-run mode: input validated")
		return
	}

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	svc := tracker.NewService(pgrepo.NewBatchRepository(client.DB()))

	ctx := context.Background()
	for _, ticker := range tickers {
		b, err := svc.Create(ctx, ticker)
		if err != nil {
			log.Errorw("Failed to enqueue batch", "ticker", ticker, "error", err)
			continue
		}
		log.Infow("Batch enqueued", "ticker", b.Ticker, "batch_id", b.ID)
	}
}
