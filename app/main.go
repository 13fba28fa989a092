package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postwire/postwire/app/adapt"
	"github.com/postwire/postwire/app/api"
	"github.com/postwire/postwire/app/cfg"
	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
	"github.com/postwire/postwire/app/distribute"
	"github.com/postwire/postwire/app/ingest"
	"github.com/postwire/postwire/app/queue"
	"github.com/postwire/postwire/app/tasks"
)

func main() {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if config == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if config.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Postwire", "version", config.Version)

	db, err := database.New(config.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", config.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", config.DBPath, "migration_version", version, "dirty", dirty)

	jobRepo := database.NewQueueJobRepository(db)
	distributionRepo := database.NewDistributionJobRepository(db)
	publishedRepo := database.NewPublishedPostRepository(db)
	contentRepo := database.NewInboundContentRepository(db)
	subscriptionRepo := database.NewFeedSubscriptionRepository(db)
	eventRepo := database.NewWebhookEventRepository(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	platformConfig, err := connector.LoadConfig(config.PlatformsFile)
	if err != nil {
		slog.Error("Failed to load platform configuration", "file", config.PlatformsFile, "error", err)
		os.Exit(1)
	}
	registry, err := connector.BuildRegistry(platformConfig, httpClient, config.UserAgent)
	if err != nil {
		slog.Error("Failed to build connector registry", "error", err)
		os.Exit(1)
	}
	slog.Info("Connectors registered", "platforms", registry.Platforms())

	authenticateConnectors(registry, platformConfig)

	engine := adapt.NewEngine(nil)
	orchestrator := distribute.NewOrchestrator(distributionRepo, jobRepo, publishedRepo,
		registry, engine, distribute.NewDirSource(config.PostsDir), config.MaxAttempts)

	publishQueue := queue.New(jobRepo, publishedRepo, registry, queue.Options{
		WorkerCount:   config.WorkerCount,
		ClaimInterval: time.Duration(config.QueueInterval) * time.Second,
		OnSettled:     orchestrator.Refresh,
	})
	publishQueue.Start()
	defer publishQueue.Stop()

	rules, err := ingest.LoadRules(config.RulesFile)
	if err != nil {
		slog.Error("Failed to load cross-posting rules", "file", config.RulesFile, "error", err)
		os.Exit(1)
	}
	crossPoster := ingest.NewCrossPoster(rules, orchestrator)
	slog.Info("Cross-posting rules loaded", "rules", len(rules.Rules))

	normalizer := ingest.NewNormalizer()
	webhooks := ingest.NewWebhookProcessor(normalizer, contentRepo, eventRepo,
		platformConfig.WebhookSecrets(), crossPoster.OnIngested)
	poller := ingest.NewFeedPoller(subscriptionRepo, contentRepo, normalizer, ingest.PollerOptions{
		MaxItems:     config.MaxItemsPerPoll,
		FetchTimeout: time.Duration(config.FeedTimeout) * time.Second,
		UserAgent:    config.UserAgent,
		Articles:     ingest.NewArticleExtractor(httpClient, config.UserAgent),
		OnIngested:   crossPoster.OnIngested,
	})

	scheduler := tasks.NewScheduler(10 * time.Minute)
	registerTask(scheduler, config.PollSchedule, tasks.NewPollFeedsTask(poller))
	registerTask(scheduler, "@every 1m", tasks.NewRequeueStaleTask(jobRepo, time.Duration(config.StaleAfter)*time.Minute))
	registerTask(scheduler, "@every 1h", tasks.NewCleanupJobsTask(jobRepo, time.Duration(config.JobRetention)*24*time.Hour))
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(orchestrator, webhooks, jobRepo, contentRepo,
		subscriptionRepo, eventRepo, registry, httpClient, config.UserAgent, config.Version)
	server := api.NewServer(handler, config.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Queue and scheduler are stopped via defer
	slog.Info("Shutdown complete")
}

// authenticateConnectors verifies every configured connector's credentials
// at startup. Failures are logged, not fatal: the queue retries publishing
// later, and a platform outage at boot should not take the service down.
func authenticateConnectors(registry *connector.Registry, platformConfig *connector.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, c := range registry.All() {
		pc, ok := platformConfig.Platforms[c.Platform()]
		if !ok {
			continue
		}
		if err := c.Authenticate(ctx, pc.Credentials); err != nil {
			slog.Warn("Connector authentication failed", "platform", c.Platform(), "error", err)
			continue
		}
		slog.Info("Connector authenticated", "platform", c.Platform())
	}
}

func registerTask(scheduler *tasks.Scheduler, spec string, task tasks.Task) {
	if err := scheduler.Register(spec, task); err != nil {
		slog.Error("Failed to register task", "task", task.Name(), "schedule", spec, "error", err)
		os.Exit(1)
	}
}
