package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// Dry-run estimation constants: prompt tokens are approximated as one
// token per four characters of content, completion tokens as 70% of the
// requested limit.
const (
	dryRunCharsPerToken       = 4
	dryRunCompletionFraction  = 0.7
	dryRunDefaultMaxTokens    = 1000
	dryRunDefaultModel        = "gpt-3.5-turbo"
	dryRunResponsePlaceholder = "[dry run] simulated response for task %s"
)

// DryRunTransport simulates batch execution without any network call.
// Every request succeeds; usage and cost are estimates derived from
// content length and the requested token limit. Results accumulate in an
// in-memory log readable via Results and clearable via Clear.
//
// The log is guarded by a mutex and Results returns a snapshot copy, so
// the transport is safe to share even though batch execution is
// sequential today.
type DryRunTransport struct {
	pricing PriceTable
	logger  *slog.Logger

	mu      sync.Mutex
	results []domain.DryRunResult
}

// NewDryRunTransport creates a dry-run transport using the given price
// table for cost estimates.
func NewDryRunTransport(pricing PriceTable, logger *slog.Logger) *DryRunTransport {
	return &DryRunTransport{
		pricing: pricing,
		logger:  logger,
	}
}

// Execute simulates one request. It always reports success and appends a
// DryRunResult to the in-memory log.
func (t *DryRunTransport) Execute(ctx context.Context, req *domain.TaskRequest) *domain.TaskResponse {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = dryRunDefaultModel
	}

	maxTokens := dryRunDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	usage := domain.Usage{
		PromptTokens:     req.ContentLength() / dryRunCharsPerToken,
		CompletionTokens: int(dryRunCompletionFraction * float64(maxTokens)),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	cost := t.pricing.CostFor(model, usage)
	end := time.Now()
	simulated := fmt.Sprintf(dryRunResponsePlaceholder, req.ID)

	t.record(domain.DryRunResult{
		ID:                req.ID,
		Request:           *req,
		SimulatedResponse: simulated,
		Usage:             usage,
		Cost:              cost,
		Timestamp:         end,
		Success:           true,
	})

	t.logger.DebugContext(ctx, "dry run simulated task",
		"task_id", req.ID,
		"model", model,
		"estimated_tokens", usage.TotalTokens,
		"estimated_cost", cost)

	return &domain.TaskResponse{
		ID:        req.ID,
		Request:   *req,
		Response:  simulated,
		Usage:     usage,
		Cost:      cost,
		Timestamp: end,
		Success:   true,
		Timings:   timings(start, end),
	}
}

// ExecuteBatch simulates the requests in order, one response per request.
func (t *DryRunTransport) ExecuteBatch(ctx context.Context, reqs []*domain.TaskRequest) []*domain.TaskResponse {
	responses := make([]*domain.TaskResponse, 0, len(reqs))
	for _, req := range reqs {
		responses = append(responses, t.Execute(ctx, req))
	}
	return responses
}

// Results returns a snapshot copy of the accumulated dry-run results.
func (t *DryRunTransport) Results() []domain.DryRunResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.DryRunResult, len(t.results))
	copy(out, t.results)
	return out
}

// Clear empties the in-memory results log.
func (t *DryRunTransport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.results = nil
}

func (t *DryRunTransport) record(result domain.DryRunResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.results = append(t.results, result)
}
