package execution

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// scriptedCompleter returns one scripted outcome per call, in order,
// repeating the last outcome once the script is exhausted.
type scriptedCompleter struct {
	script []error
	calls  int
	result *domain.CompletionResult
}

func (c *scriptedCompleter) Complete(_ context.Context, req *domain.TaskRequest) (*domain.CompletionResult, error) {
	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++

	if err := c.script[idx]; err != nil {
		return nil, err
	}
	result := c.result
	if result == nil {
		result = &domain.CompletionResult{
			Text:  "generated text for " + req.ID,
			Model: "gpt-3.5-turbo",
			Usage: domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			Cost:  0.0001,
		}
	}
	return result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Timeout:    time.Second,
		Multiplier: 2.0,
		JitterMin:  0.5,
		JitterMax:  1.0,
	}
}

func newTestManager(completer Completer, breaker *CircuitBreaker) *RetryManager {
	if breaker == nil {
		breaker = NewCircuitBreaker(100, time.Minute)
	}
	return NewRetryManager(completer, breaker, fastRetryConfig(), testLogger())
}

func TestRetryManager_FirstTrySuccess(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{nil}}
	manager := newTestManager(completer, nil)

	req := &domain.TaskRequest{ID: "task-1", Prompt: "hello"}
	resp := manager.Execute(context.Background(), req)

	require.True(t, resp.Success)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, 1, completer.calls)
	assert.Empty(t, resp.ErrorCode)
	assert.Equal(t, "task-1", resp.ID)
	assert.Equal(t, *req, resp.Request)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.False(t, resp.Timings.Start.IsZero())
	assert.False(t, resp.Timings.End.Before(resp.Timings.Start))
}

func TestRetryManager_RateLimitThenSuccess(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{
		NewTaskError(CodeRateLimit, "rate limit exceeded"),
		nil,
	}}
	manager := newTestManager(completer, nil)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.RetryCount)
	assert.Equal(t, 2, completer.calls)
	assert.Empty(t, resp.ErrorCode)
	assert.Empty(t, resp.Error)
}

func TestRetryManager_AuthErrorNeverRetried(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{
		NewTaskError(CodeAuth, "invalid api key"),
	}}
	manager := newTestManager(completer, nil)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.False(t, resp.Success)
	assert.Equal(t, 1, completer.calls, "exactly one call must be made")
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, string(CodeAuth), resp.ErrorCode)
	assert.False(t, resp.IsRetryable)
	assert.Equal(t, "invalid api key", resp.Error)
}

func TestRetryManager_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{
		NewTaskError(CodeServerError, "internal error"),
	}}
	manager := newTestManager(completer, nil)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.False(t, resp.Success)
	assert.Equal(t, 4, completer.calls, "first attempt plus three retries")
	assert.Equal(t, 3, resp.RetryCount)
	assert.Equal(t, string(CodeServerError), resp.ErrorCode)
	assert.True(t, resp.IsRetryable)
}

func TestRetryManager_UntaggedErrorClassified(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{
		context.DeadlineExceeded,
	}}
	manager := newTestManager(completer, nil)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.False(t, resp.Success)
	assert.Equal(t, string(CodeTimeout), resp.ErrorCode)
	assert.True(t, resp.IsRetryable)
}

func TestRetryManager_BreakerOpenFailsFast(t *testing.T) {
	t.Parallel()

	breaker := NewCircuitBreaker(1, time.Hour)
	breaker.RecordFailure() // trip it

	completer := &scriptedCompleter{script: []error{nil}}
	manager := newTestManager(completer, breaker)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.False(t, resp.Success)
	assert.Equal(t, 0, completer.calls, "the transport function must not be invoked")
	assert.Equal(t, string(CodeNetwork), resp.ErrorCode)
	assert.Contains(t, resp.Error, "circuit breaker")
	// Fast-fails are not new breaker failures.
	assert.Equal(t, 1, breaker.State().FailureCount)
}

func TestRetryManager_SuccessReportsBreaker(t *testing.T) {
	t.Parallel()

	breaker := NewCircuitBreaker(5, time.Minute)
	breaker.RecordFailure()
	breaker.RecordFailure()

	completer := &scriptedCompleter{script: []error{nil}}
	manager := newTestManager(completer, breaker)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.True(t, resp.Success)
	assert.Equal(t, 0, breaker.State().FailureCount, "success must reset the failure count")
}

func TestRetryManager_FailuresTripBreaker(t *testing.T) {
	t.Parallel()

	breaker := NewCircuitBreaker(2, time.Hour)
	completer := &scriptedCompleter{script: []error{
		NewTaskError(CodeServerError, "internal error"),
	}}
	manager := newTestManager(completer, breaker)

	resp := manager.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hello"})

	require.False(t, resp.Success)
	// Threshold 2: attempts 1 and 2 fail and trip the breaker, the
	// remaining attempts fast-fail without reaching the completer.
	assert.Equal(t, 2, completer.calls)
	assert.Equal(t, BreakerOpen, breaker.State().State)
}

func TestRetryManager_ExecuteBatch(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{script: []error{nil}}
	manager := newTestManager(completer, nil)

	reqs := []*domain.TaskRequest{
		{ID: "a", Prompt: "one"},
		{ID: "b", Prompt: "two"},
		{ID: "c", Prompt: "three"},
	}
	responses := manager.ExecuteBatch(context.Background(), reqs)

	require.Len(t, responses, len(reqs))
	for i, resp := range responses {
		assert.Equal(t, reqs[i].ID, resp.ID)
		assert.True(t, resp.Success)
		assert.Equal(t, 0, resp.RetryCount)
	}
}

func TestRetryManager_Backoff(t *testing.T) {
	t.Parallel()

	manager := newTestManager(&scriptedCompleter{script: []error{nil}}, nil)
	manager.config.BaseDelay = 100 * time.Millisecond

	rng := rand.New(rand.NewSource(1))
	for attempt := 0; attempt < 3; attempt++ {
		delay := manager.backoff(attempt, rng)
		base := time.Duration(float64(100*time.Millisecond) * math.Pow(2, float64(attempt)))
		assert.GreaterOrEqual(t, delay, base/2, "jitter floor is half the exponential delay")
		assert.Less(t, delay, base, "jitter ceiling is the exponential delay")
	}
}
