// Package main implements the entry point for the batch runner, which
// executes batches of generation requests against an upstream completion
// service with retry, circuit breaking and dry-run support.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/libranvoice/batchrunner/internal/batchio"
	"github.com/libranvoice/batchrunner/internal/config"
	"github.com/libranvoice/batchrunner/internal/execution"
	"github.com/libranvoice/batchrunner/internal/platform/completion"
	"github.com/libranvoice/batchrunner/internal/platform/logger"
	"github.com/libranvoice/batchrunner/internal/service"
)

func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if cfg.Batch.Input == "" || cfg.Batch.Output == "" {
		log.Fatal("batch.input and batch.output must be configured")
	}

	batchService, err := buildBatchService(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to build batch service: %v", err)
	}

	summary, err := batchService.Run(context.Background(), cfg.Batch.Input, cfg.Batch.Output)
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	appLogger.Info("run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"dry_run", summary.DryRun)
}

// initializeApp loads configuration and sets up logging.
// Returns the loaded config, the application logger, and any error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("configuration loaded",
		"log_level", cfg.Log.Level,
		"dry_run", cfg.Batch.DryRun,
		"max_retries", cfg.Retry.MaxRetries,
		"breaker_threshold", cfg.Breaker.FailureThreshold)

	return cfg, appLogger, nil
}

// buildBatchService wires the loader, transport and writer. In dry-run
// mode no network client is constructed at all.
func buildBatchService(cfg *config.Config, appLogger *slog.Logger) (*service.BatchService, error) {
	pricing := execution.DefaultPriceTable()
	loader := batchio.NewLoader(appLogger)
	writer := batchio.NewWriter(appLogger)

	var transport execution.Transport
	if cfg.Batch.DryRun {
		transport = execution.NewDryRunTransport(pricing, appLogger)
	} else {
		client, err := completion.NewClient(completion.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		}, pricing, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create completion client: %w", err)
		}

		breaker := execution.NewCircuitBreaker(
			cfg.Breaker.FailureThreshold,
			time.Duration(cfg.Breaker.CooldownMs)*time.Millisecond,
		)
		transport = execution.NewRetryManager(client, breaker, execution.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
			Timeout:    time.Duration(cfg.Retry.TimeoutMs) * time.Millisecond,
			Multiplier: cfg.Retry.Multiplier,
		}, appLogger)
	}

	return service.NewBatchService(loader, transport, writer, appLogger), nil
}
