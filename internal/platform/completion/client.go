package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/libranvoice/batchrunner/internal/domain"
	"github.com/libranvoice/batchrunner/internal/execution"
)

// ErrInvalidConfig is returned when the client configuration is invalid.
var ErrInvalidConfig = errors.New("invalid completion client configuration")

// Fallbacks applied when a request leaves the field unset.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000

	completionsPath = "/v1/chat/completions"
)

// Config holds the settings the client needs to reach the upstream
// service.
type Config struct {
	// BaseURL is the root of the upstream API, without the completions
	// path.
	BaseURL string

	// APIKey is sent as a bearer token on every call.
	APIKey string

	// Model overrides DefaultModel as the fallback for requests that do
	// not name one.
	Model string
}

// Client performs single completion attempts. Retries, timeouts and
// breaker gating belong to the execution layer wrapping it; the client
// itself makes exactly one network call per Complete invocation.
type Client struct {
	httpClient *http.Client
	config     Config
	pricing    execution.PriceTable
	logger     *slog.Logger
}

// NewClient creates a live completion client.
//
// Parameters:
//   - config: upstream endpoint, API key and default model
//   - pricing: per-model price table for cost estimates
//   - logger: structured logger for attempt-level logging
//
// Returns an error wrapping ErrInvalidConfig when required settings are
// missing.
func NewClient(config Config, pricing execution.PriceTable, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig)
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	return &Client{
		httpClient: &http.Client{},
		config:     config,
		pricing:    pricing,
		logger:     logger,
	}, nil
}

// chatRequest is the wire shape sent to the upstream service.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

// chatResponse is the wire shape of a successful upstream reply.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message domain.Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// apiError is the wire shape of an upstream error body.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs one attempt against the upstream service. Failures
// that carry an HTTP status are returned as tagged *execution.TaskError
// values classified at this call site; only failures that never reached
// the upstream (dial errors, cancelled contexts) come back untagged.
func (c *Client) Complete(ctx context.Context, req *domain.TaskRequest) (*domain.CompletionResult, error) {
	wire := c.toWire(req)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, execution.NewTaskError(execution.CodeInput,
			fmt.Sprintf("failed to encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, execution.NewTaskError(execution.CodeInput,
			fmt.Sprintf("failed to build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	if req.CorrID != "" {
		httpReq.Header.Set("X-Correlation-ID", req.CorrID)
	}

	c.logger.DebugContext(ctx, "calling completion service",
		"task_id", req.ID,
		"model", wire.Model,
		"max_tokens", wire.MaxTokens)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Never reached the upstream; leave classification to the
		// retry layer's fallback.
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, execution.NewTaskError(execution.CodeNetwork,
			fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, execution.ClassifyStatus(resp.StatusCode, errorMessage(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, execution.NewTaskError(execution.CodeServerError,
			fmt.Sprintf("failed to decode response: %v", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, execution.NewTaskError(execution.CodeServerError, "no choices in response")
	}

	model := parsed.Model
	if model == "" {
		model = wire.Model
	}
	usage := domain.Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &domain.CompletionResult{
		Text:  parsed.Choices[0].Message.Content,
		Model: model,
		Usage: usage,
		Cost:  c.pricing.CostFor(model, usage),
	}, nil
}

// toWire converts a task request to the upstream shape, applying the
// model, temperature and token-limit fallbacks. A bare prompt is wrapped
// as a single user message.
func (c *Client) toWire(req *domain.TaskRequest) chatRequest {
	messages := req.Messages
	if len(messages) == 0 {
		messages = []domain.Message{{Role: domain.RoleUser, Content: req.Prompt}}
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// errorMessage extracts the upstream error message from a non-200 body,
// falling back to the raw body text.
func errorMessage(body []byte) string {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}
