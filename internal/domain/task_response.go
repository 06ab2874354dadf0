package domain

import "time"

// Usage holds the token counters reported (or estimated) for one request.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Timings records wall-clock boundaries of one request's execution,
// including all retry attempts and backoff delays. Duration is in
// milliseconds.
type Timings struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int64     `json:"duration"`
}

// TaskResponse is the outcome of one TaskRequest, produced exactly once
// per accepted request. On success Response holds the generated text; on
// failure Error, ErrorCode and IsRetryable describe the final exhausted
// attempt. RetryCount is attempts made beyond the first. A TaskResponse
// is never mutated after creation.
type TaskResponse struct {
	ID          string      `json:"id"`
	Request     TaskRequest `json:"request"`
	Response    string      `json:"response,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorCode   string      `json:"errorCode,omitempty"`
	IsRetryable bool        `json:"isRetryable,omitempty"`
	Usage       Usage       `json:"usage"`
	Cost        float64     `json:"cost"`
	Timestamp   time.Time   `json:"timestamp"`
	Success     bool        `json:"success"`
	Timings     Timings     `json:"timings"`
	RetryCount  int         `json:"retryCount"`
}

// DryRunResult is the simulation-mode counterpart of TaskResponse. Usage
// and cost are estimates derived from content length and the requested
// token limit; no network call ever backs one of these.
type DryRunResult struct {
	ID                string      `json:"id"`
	Request           TaskRequest `json:"request"`
	SimulatedResponse string      `json:"simulatedResponse"`
	Usage             Usage       `json:"usage"`
	Cost              float64     `json:"cost"`
	Timestamp         time.Time   `json:"timestamp"`
	Success           bool        `json:"success"`
}

// CompletionResult is the outcome of one successful attempt against the
// upstream completion service, before the retry layer wraps it into a
// TaskResponse.
type CompletionResult struct {
	Text  string
	Model string
	Usage Usage
	Cost  float64
}
