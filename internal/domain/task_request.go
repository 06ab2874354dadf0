package domain

// Message roles accepted by the upstream completion service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TaskRequest is the immutable input unit of a batch. Exactly one of
// Prompt or Messages must be set; Temperature and MaxTokens are pointers
// so that an absent value survives a write/reload round trip as absent
// rather than as a zero.
type TaskRequest struct {
	ID             string         `json:"id"`
	Prompt         string         `json:"prompt,omitempty"`
	Messages       []Message      `json:"messages,omitempty"`
	Model          string         `json:"model,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int           `json:"maxTokens,omitempty"`
	BatchID        string         `json:"batch_id,omitempty"`
	CorrID         string         `json:"corr_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// HasContent reports whether the request carries a prompt or a non-empty
// message list.
func (r *TaskRequest) HasContent() bool {
	return r.Prompt != "" || len(r.Messages) > 0
}

// ContentLength returns the total number of characters of prompt content,
// summing message contents when the request is chat-shaped. Dry-run token
// estimation is derived from this.
func (r *TaskRequest) ContentLength() int {
	if r.Prompt != "" {
		return len(r.Prompt)
	}
	total := 0
	for _, m := range r.Messages {
		total += len(m.Content)
	}
	return total
}

// SupportedModels is the set of model identifiers the runner knows pricing
// for. Requests naming other models still execute; the validator only
// raises a warning and cost falls back to the baseline tier.
var SupportedModels = map[string]struct{}{
	"gpt-4":         {},
	"gpt-4-turbo":   {},
	"gpt-4o":        {},
	"gpt-4o-mini":   {},
	"gpt-3.5-turbo": {},
}
