package execution

import (
	"context"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// Transport executes task requests against a completion backend, real or
// simulated. Implementations never return a Go error for a failed request;
// the failure is embedded in the TaskResponse (Error, ErrorCode,
// IsRetryable) so that a batch always yields one response per request and
// callers can match id to outcome even under partial failure.
type Transport interface {
	// Execute runs one request to completion, including any retries the
	// implementation performs internally.
	Execute(ctx context.Context, req *domain.TaskRequest) *domain.TaskResponse

	// ExecuteBatch runs the requests strictly sequentially, fully
	// resolving one request's retries before starting the next. The
	// result has exactly one response per request, in input order.
	ExecuteBatch(ctx context.Context, reqs []*domain.TaskRequest) []*domain.TaskResponse
}

// Completer performs a single attempt against the upstream completion
// service. It is the unit the retry layer wraps: exactly one network call
// per invocation, with classification to the taxonomy happening at the
// call site (the returned error is a *TaskError whenever the upstream
// answered at all).
type Completer interface {
	Complete(ctx context.Context, req *domain.TaskRequest) (*domain.CompletionResult, error)
}
