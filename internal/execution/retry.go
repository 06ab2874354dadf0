package execution

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// RetryConfig tunes the retry layer. It is fixed at construction time;
// a transport instance never changes its retry behavior mid-batch.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseDelay is the backoff before the first retry; subsequent delays
	// grow by Multiplier per attempt.
	BaseDelay time.Duration

	// Timeout bounds each individual attempt. It cancels only the current
	// network call, never the whole batch.
	Timeout time.Duration

	// Multiplier is the exponential backoff growth factor.
	Multiplier float64

	// JitterMin and JitterMax bound the random factor applied to each
	// delay, spreading out retry storms.
	JitterMin float64
	JitterMax float64
}

// DefaultRetryConfig returns the process-wide defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		Timeout:    30 * time.Second,
		Multiplier: 2.0,
		JitterMin:  0.5,
		JitterMax:  1.0,
	}
}

// RetryManager is the live Transport: it wraps a single-attempt Completer
// with a per-attempt timeout, exponential backoff with jitter, and circuit
// breaker gating. It creates the TaskResponse for every request, success
// or failure, and never returns a bare error to callers.
type RetryManager struct {
	completer Completer
	breaker   *CircuitBreaker
	config    RetryConfig
	logger    *slog.Logger
}

// NewRetryManager creates a RetryManager. Out-of-range config values are
// replaced with defaults, matching the behavior config loading promises.
func NewRetryManager(
	completer Completer,
	breaker *CircuitBreaker,
	config RetryConfig,
	logger *slog.Logger,
) *RetryManager {
	defaults := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		logger.Warn("invalid max retries, using default",
			"configured", config.MaxRetries,
			"default", defaults.MaxRetries)
		config.MaxRetries = defaults.MaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaults.BaseDelay
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Multiplier < 1 {
		config.Multiplier = defaults.Multiplier
	}
	if config.JitterMin <= 0 || config.JitterMax < config.JitterMin {
		config.JitterMin = defaults.JitterMin
		config.JitterMax = defaults.JitterMax
	}

	return &RetryManager{
		completer: completer,
		breaker:   breaker,
		config:    config,
		logger:    logger,
	}
}

// Breaker exposes the manager's circuit breaker for observability.
func (m *RetryManager) Breaker() *CircuitBreaker {
	return m.breaker
}

// Execute runs one request through the full retry policy. The returned
// response carries RetryCount (attempts made beyond the first); individual
// failed attempts are otherwise invisible to the caller, only the final
// exhausted failure surfaces in Error/ErrorCode/IsRetryable.
func (m *RetryManager) Execute(ctx context.Context, req *domain.TaskRequest) *domain.TaskResponse {
	start := time.Now()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	attempts := 0
	var lastErr *TaskError

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		attempts++

		if !m.breaker.Allow() {
			// A rejected call never reaches the network and is not a new
			// breaker failure.
			lastErr = ErrBreakerOpen
			m.logger.WarnContext(ctx, "circuit breaker open, failing fast",
				"task_id", req.ID,
				"attempt", attempts)
		} else {
			attemptCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
			result, err := m.completer.Complete(attemptCtx, req)
			cancel()

			if err == nil {
				m.breaker.RecordSuccess()
				return m.successResponse(req, result, start, attempts)
			}

			lastErr = Classify(err)
			m.breaker.RecordFailure()
			m.logger.WarnContext(ctx, "attempt failed",
				"task_id", req.ID,
				"attempt", attempts,
				"error_code", lastErr.Code,
				"error", lastErr.Message)
		}

		if !lastErr.Retryable() {
			m.logger.WarnContext(ctx, "permanent error, not retrying",
				"task_id", req.ID,
				"error_code", lastErr.Code)
			break
		}

		if attempt == m.config.MaxRetries {
			m.logger.WarnContext(ctx, "maximum retry attempts reached",
				"task_id", req.ID,
				"max_retries", m.config.MaxRetries)
			break
		}

		delay := m.backoff(attempt, rng)
		m.logger.InfoContext(ctx, "retrying after delay",
			"task_id", req.ID,
			"attempt", attempts,
			"delay_ms", delay.Milliseconds())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = Classify(ctx.Err())
			return m.failureResponse(req, lastErr, start, attempts)
		}
	}

	return m.failureResponse(req, lastErr, start, attempts)
}

// ExecuteBatch runs the requests strictly sequentially. One request's
// retries fully resolve before the next request is sent, so the shared
// breaker observes failures in a well-defined order.
func (m *RetryManager) ExecuteBatch(ctx context.Context, reqs []*domain.TaskRequest) []*domain.TaskResponse {
	responses := make([]*domain.TaskResponse, 0, len(reqs))
	for i, req := range reqs {
		m.logger.InfoContext(ctx, "executing task",
			"task_id", req.ID,
			"position", i+1,
			"total", len(reqs))
		responses = append(responses, m.Execute(ctx, req))
	}
	return responses
}

// backoff computes the delay before the retry following the given 0-based
// attempt: BaseDelay x Multiplier^attempt, scaled by a random jitter
// factor in [JitterMin, JitterMax).
func (m *RetryManager) backoff(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(m.config.BaseDelay) * math.Pow(m.config.Multiplier, float64(attempt))
	jitter := m.config.JitterMin + rng.Float64()*(m.config.JitterMax-m.config.JitterMin)
	return time.Duration(backoff * jitter)
}

func (m *RetryManager) successResponse(
	req *domain.TaskRequest,
	result *domain.CompletionResult,
	start time.Time,
	attempts int,
) *domain.TaskResponse {
	end := time.Now()
	return &domain.TaskResponse{
		ID:         req.ID,
		Request:    *req,
		Response:   result.Text,
		Usage:      result.Usage,
		Cost:       result.Cost,
		Timestamp:  end,
		Success:    true,
		Timings:    timings(start, end),
		RetryCount: attempts - 1,
	}
}

func (m *RetryManager) failureResponse(
	req *domain.TaskRequest,
	taskErr *TaskError,
	start time.Time,
	attempts int,
) *domain.TaskResponse {
	end := time.Now()
	return &domain.TaskResponse{
		ID:          req.ID,
		Request:     *req,
		Error:       taskErr.Message,
		ErrorCode:   string(taskErr.Code),
		IsRetryable: taskErr.Retryable(),
		Timestamp:   end,
		Success:     false,
		Timings:     timings(start, end),
		RetryCount:  attempts - 1,
	}
}

func timings(start, end time.Time) domain.Timings {
	return domain.Timings{
		Start:    start,
		End:      end,
		Duration: end.Sub(start).Milliseconds(),
	}
}
