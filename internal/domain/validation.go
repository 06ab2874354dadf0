package domain

import "fmt"

// Validation bounds for request parameters.
const (
	TemperatureMin = 0.0
	TemperatureMax = 2.0
	MaxTokensMin   = 1
	MaxTokensMax   = 4096
)

// ValidationError describes one problem with one field of one record.
// Row is the 1-based input row the record came from, or 0 when the record
// was validated outside a file context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
	Row     int    `json:"row,omitempty"`
}

// Error implements the error interface. The row prefix keeps batch-level
// aggregation readable when errors from many rows are reported together.
func (e ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("Row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult is the outcome of validating one record. Warnings are
// advisory and never block execution.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []string
}

// ValidateTaskRequest checks a single record's shape and ranges. Pass the
// 1-based input row for file-sourced records, or 0 when there is none.
// It is side-effect free and safe for concurrent use.
//
// Rules:
//   - id is required
//   - exactly one of prompt / messages must be present
//   - temperature, when set, must lie in [0, 2]
//   - maxTokens, when set, must lie in [1, 4096]
//   - every message role must be system, user or assistant
//   - an unrecognized model produces a warning, not an error
func ValidateTaskRequest(req *TaskRequest, row int) ValidationResult {
	result := ValidationResult{Valid: true}

	fail := func(field, message string, value any) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Message: message,
			Value:   value,
			Row:     row,
		})
	}

	if req.ID == "" {
		fail("id", "id is required", nil)
	}

	switch {
	case !req.HasContent():
		fail("content", "exactly one of prompt or messages is required", nil)
	case req.Prompt != "" && len(req.Messages) > 0:
		fail("content", "prompt and messages are mutually exclusive", nil)
	}

	if req.Temperature != nil && (*req.Temperature < TemperatureMin || *req.Temperature > TemperatureMax) {
		fail("temperature",
			fmt.Sprintf("temperature must be between %g and %g", TemperatureMin, TemperatureMax),
			*req.Temperature)
	}

	if req.MaxTokens != nil && (*req.MaxTokens < MaxTokensMin || *req.MaxTokens > MaxTokensMax) {
		fail("maxTokens",
			fmt.Sprintf("maxTokens must be between %d and %d", MaxTokensMin, MaxTokensMax),
			*req.MaxTokens)
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			field := fmt.Sprintf("messages[%d].role", i)
			fail(field, "role must be one of system, user, assistant", msg.Role)
		}
	}

	if req.Model != "" {
		if _, ok := SupportedModels[req.Model]; !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unrecognized model %q, cost will use the baseline tier", req.Model))
		}
	}

	return result
}
