package main

import (
	"context"
	"flag"

	devseeds "minerva/cmd/seeder/seeds/dev"
	testseeds "minerva/cmd/seeder/seeds/test"
	"minerva/internal/adapters/config"
	"minerva/internal/adapters/postgres"
	"minerva/internal/testsupport/seeds"
	"minerva/pkg/logger"
)

// seedFunc is one ordered seeding step
type seedFunc func(context.Context, *seeds.Seeder) error

var seedsByEnv = map[string][]seedFunc{
	"dev":  {devseeds.SeedBatches},
	"test": {testseeds.SeedBatches},
}

func main() {
	env := flag.String("env", "dev", "Environment: dev, test")
	dryRun := flag.Bool("dry-run", false, "Validate seed set without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	steps, ok := seedsByEnv[*env]
	if !ok || len(steps) == 0 {
		log.Fatalf("No seeds defined for environment %q", *env)
	}

	log.Infow("Seeding database",
		"environment", *env,
		"database", cfg.Postgres.Database,
		"steps", len(steps),
		"dry_run", *dryRun,
	)

	if *dryRun {
		log.Info("Dry-run mode: seed set validated")
		return
	}

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	seeder := seeds.New(client.DB())

	for i, step := range steps {
		if err := step(ctx, seeder); err != nil {
			log.Fatalf("Seed step %d/%d failed: %v", i+1, len(steps), err)
		}
		log.Infow("Seed step completed", "step", i+1, "total", len(steps))
	}

	log.Info("All seeds applied")
}
