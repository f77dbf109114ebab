package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"minerva/internal/adapters/config"
	"minerva/internal/adapters/errors/noop"
	"minerva/internal/adapters/errors/sentry"
	"minerva/internal/adapters/kafka"
	"minerva/internal/adapters/marketdata"
	"minerva/internal/adapters/postgres"
	"minerva/internal/adapters/redis"
	mdagent "minerva/internal/agents/marketdata"
	"minerva/internal/api"
	"minerva/internal/api/handler"
	"minerva/internal/consumers"
	"minerva/internal/domain/agentresult"
	"minerva/internal/events"
	"minerva/internal/metrics"
	pgrepo "minerva/internal/repository/postgres"
	"minerva/internal/services/aggregator"
	"minerva/internal/services/sink"
	"minerva/internal/services/tracker"
	"minerva/internal/services/view"
	"minerva/internal/workers"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	// Repositories
	db := pgClient.DB()
	batchRepo := pgrepo.NewBatchRepository(db)
	resultRepo := pgrepo.NewAgentResultRepository(db)
	insightRepo := pgrepo.NewInsightRepository(db)
	backtestRepo := pgrepo.NewBacktestRepository(db)
	patentRepo := pgrepo.NewPatentRepository(db)
	snapshotRepo := pgrepo.NewSnapshotRepository(db)
	viewRepo := pgrepo.NewViewRepository(db)

	// Services
	publisher := events.NewPublisher(producer, log.With("component", "event_publisher"))
	trackerSvc := tracker.NewService(batchRepo)
	sinkSvc := sink.NewService(resultRepo, publisher)

	required := make([]agentresult.AgentType, 0, len(cfg.Pipeline.RequiredAgents))
	for _, name := range cfg.Pipeline.RequiredAgents {
		required = append(required, agentresult.AgentType(name))
	}

	aggregatorSvc, err := aggregator.NewService(
		trackerSvc,
		resultRepo,
		insightRepo,
		nil, // default payload join synthesis
		required,
		redisClient,
		cfg.Pipeline.LockTTL,
		publisher,
	)
	if err != nil {
		log.Fatalf("Failed to build aggregator: %v", err)
	}

	viewSvc := view.NewService(viewRepo, redisClient, redis.IsNil, cfg.Pipeline.ViewCacheTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka trigger path
	resultConsumer := consumers.NewResultConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicResultFinalized,
		}),
		aggregatorSvc,
	)
	defer resultConsumer.Close()
	go func() {
		if err := resultConsumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("Result consumer stopped: %v", err)
		}
	}()

	// Workers
	mdClient := marketdata.NewClient(cfg.MarketData)
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewSweeperWorker(
		trackerSvc, aggregatorSvc, cfg.Workers.SweeperInterval, cfg.Workers.SweeperEnabled))
	scheduler.RegisterWorker(workers.NewReaperWorker(
		trackerSvc, cfg.Workers.ReaperInterval, cfg.Workers.ReaperDeadline, cfg.Workers.ReaperEnabled))
	scheduler.RegisterWorker(mdagent.NewAgent(
		trackerSvc, sinkSvc, mdClient, snapshotRepo,
		cfg.MarketData.LookbackDays, cfg.Workers.MarketDataInterval, cfg.Workers.MarketDataEnabled))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// HTTP API
	router := api.SetupRouter(
		handler.NewBatchHandler(trackerSvc, viewSvc),
		handler.NewResultHandler(trackerSvc, sinkSvc, backtestRepo, patentRepo),
		handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pgClient,
			"redis":    redisClient,
		}),
		cfg.App.Env,
	)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: router,
	}
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(cancel, errorTracker, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler shutdown: %v", err)
	}

	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown blocks until a termination signal arrives
func waitForShutdown(cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(context.Background()); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}
}
