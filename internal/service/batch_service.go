package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/libranvoice/batchrunner/internal/batchio"
	"github.com/libranvoice/batchrunner/internal/execution"
)

// BatchSummary aggregates the outcome of one batch run for callers and
// structured logging.
type BatchSummary struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Retried   int
	TotalCost float64
	DryRun    bool
}

// BatchService drives the full load, execute, write cycle for one batch.
// Execution is strictly sequential: task N's response is produced before
// task N+1's request is sent, which keeps the shared circuit breaker's
// observation order well defined.
type BatchService struct {
	loader    *batchio.Loader
	transport execution.Transport
	writer    *batchio.Writer
	logger    *slog.Logger
}

// NewBatchService creates a BatchService. When transport is a
// *execution.DryRunTransport, Run writes dry-run estimates instead of live
// responses.
func NewBatchService(
	loader *batchio.Loader,
	transport execution.Transport,
	writer *batchio.Writer,
	logger *slog.Logger,
) *BatchService {
	return &BatchService{
		loader:    loader,
		transport: transport,
		writer:    writer,
		logger:    logger,
	}
}

// Run loads the batch at inputPath, executes every task, and writes the
// results to outputPath. A batch with any validation problem fails here,
// before anything reaches the network. A batch that executes always
// yields one response per request, successes and failures interleaved.
func (s *BatchService) Run(ctx context.Context, inputPath, outputPath string) (*BatchSummary, error) {
	batchID := uuid.NewString()
	logger := s.logger.With("batch_id", batchID)

	loaded, err := s.loader.LoadFromFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("batch load failed: %w", err)
	}

	dryRun, isDryRun := s.transport.(*execution.DryRunTransport)
	if isDryRun {
		// Each run reports only its own estimates.
		dryRun.Clear()
	}

	logger.InfoContext(ctx, "executing batch",
		"input", inputPath,
		"task_count", len(loaded.Tasks),
		"format", string(loaded.Format),
		"dry_run", isDryRun)

	responses := s.transport.ExecuteBatch(ctx, loaded.Tasks)

	summary := &BatchSummary{
		BatchID: batchID,
		Total:   len(responses),
		DryRun:  isDryRun,
	}
	for _, resp := range responses {
		if resp.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if resp.RetryCount > 0 {
			summary.Retried++
		}
		summary.TotalCost += resp.Cost
	}

	if isDryRun {
		err = s.writer.WriteDryRunResults(dryRun.Results(), outputPath)
	} else {
		err = s.writer.WriteResults(responses, outputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write batch results: %w", err)
	}

	logger.InfoContext(ctx, "batch complete",
		"output", outputPath,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"retried", summary.Retried,
		"total_cost", summary.TotalCost)

	return summary, nil
}
