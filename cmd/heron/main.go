// Heron - Portfolio analytics dashboards as a service.
// Copyright (c) 2025 heron-analytics
// Licensed under the Apache License 2.0

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

	"github.com/heron-analytics/heron/internal/api"
	"github.com/heron-analytics/heron/internal/bus"
	"github.com/heron-analytics/heron/internal/cache"
	"github.com/heron-analytics/heron/internal/dataset"
	"github.com/heron-analytics/heron/internal/domain"
	"github.com/heron-analytics/heron/internal/insights"
	"github.com/heron-analytics/heron/internal/model"
	"github.com/heron-analytics/heron/internal/repository"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if path := os.Getenv("HERON_ARTIFACT"); path != "" {
		cfg.ArtifactPath = path
	}
	if path := os.Getenv("HERON_DATASET"); path != "" {
		cfg.DatasetPath = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"artifact", cfg.ArtifactPath,
		"dataset", cfg.DatasetPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load model artifact. A bad artifact is fatal at startup.
	artifact, err := model.Load(cfg.ArtifactPath)
	if err != nil {
		slog.Error("failed to load model artifact", "path", cfg.ArtifactPath, "error", err)
		os.Exit(1)
	}
	predictor := model.NewPredictor(artifact)
	slog.Info("model artifact loaded",
		"version", artifact.Version,
		"feature_width", artifact.Schema.Width(),
		"threshold", artifact.LabelThreshold(),
	)

	// Load incident dataset. Malformed rows are skipped; a dataset
	// with zero parseable rows is fatal.
	result, err := dataset.LoadFile(cfg.DatasetPath)
	if err != nil {
		slog.Error("failed to load incident dataset", "path", cfg.DatasetPath, "error", err)
		os.Exit(1)
	}
	slog.Info("incident dataset loaded",
		"incidents", len(result.Incidents),
		"skipped_rows", result.Skipped,
	)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Persist the dataset so the filter dropdown feed and distinct
	// value queries run against the database.
	if err := repo.BulkInsertIncidents(ctx, result.Incidents); err != nil {
		slog.Error("failed to persist incident dataset", "error", err)
		os.Exit(1)
	}

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Log sink for alert topics so alerts are visible even without
	// external subscribers.
	for _, topic := range []string{domain.TopicChurnAlert, domain.TopicIncidentAlert} {
		if _, err := busImpl.Subscribe(ctx, topic, logAlert); err != nil {
			slog.Warn("failed to subscribe alert log sink", "topic", topic, "error", err)
		}
	}

	// Initialize Insight Engine
	engine, err := insights.NewEngine()
	if err != nil {
		slog.Error("failed to initialize insight engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadInsightRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load insight rules", "error", err)
		os.Exit(1)
	}
	slog.Info("insight engine initialized", "rules_count", engine.RulesCount())

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, predictor, result.Incidents, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// loadInsightRules loads rules from the database into the engine. A
// fresh database is seeded with the default rule set first, so both
// dashboards emit insights out of the box.
func loadInsightRules(ctx context.Context, repo domain.Repository, engine *insights.Engine) error {
	dbRules, err := repo.ListInsightRules(ctx, "")
	if err != nil {
		return err
	}

	if len(dbRules) == 0 {
		defaults := insights.DefaultRules()
		slog.Info("seeding default insight rules", "count", len(defaults))
		for _, rule := range defaults {
			if err := repo.SaveInsightRule(ctx, rule); err != nil {
				return err
			}
		}
		dbRules = defaults
	}

	return engine.LoadRules(dbRules)
}

// logAlert is the in-process subscriber that writes every alert to the
// structured log.
func logAlert(ctx context.Context, msg *domain.Message) error {
	slog.Warn("alert",
		"topic", msg.Topic,
		"message_id", msg.ID,
		"payload", string(msg.Payload),
	)
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                HERON                      ║")
	fmt.Println("  ║      Portfolio Analytics Dashboards       ║")
	fmt.Println("  ║    Churn risk and incident insight.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /churn/predict            - Score a customer record")
	fmt.Println("    GET  /churn/predictions/{id}   - Get prediction by ID")
	fmt.Println("    GET  /churn/model              - Loaded model info")
	fmt.Println("    POST /incidents/query          - Filtered incident analytics")
	fmt.Println("    GET  /incidents/filters        - Filter dropdown values")
	fmt.Println("    GET  /insights/rules           - List insight rules")
	fmt.Println("    POST /insights/rules           - Create an insight rule")
	fmt.Println("    DELETE /insights/rules/{id}    - Delete an insight rule")
	fmt.Println("    POST /insights/rules/reload    - Hot-reload insight rules")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
