package execution

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranvoice/batchrunner/internal/domain"
)

func TestDryRunTransport_Estimates(t *testing.T) {
	t.Parallel()

	transport := NewDryRunTransport(DefaultPriceTable(), testLogger())

	maxTokens := 2000
	req := &domain.TaskRequest{
		ID:        "task-1",
		Prompt:    strings.Repeat("x", 400),
		Model:     "gpt-4",
		MaxTokens: &maxTokens,
	}

	resp := transport.Execute(context.Background(), req)

	require.True(t, resp.Success)
	assert.Equal(t, 100, resp.Usage.PromptTokens, "contentLength/4")
	assert.Equal(t, 1400, resp.Usage.CompletionTokens, "0.7 x maxTokens")
	assert.Equal(t, 1500, resp.Usage.TotalTokens)

	wantCost := 100.0/1000*0.03 + 1400.0/1000*0.06
	assert.InDelta(t, wantCost, resp.Cost, 1e-9)
}

func TestDryRunTransport_Defaults(t *testing.T) {
	t.Parallel()

	transport := NewDryRunTransport(DefaultPriceTable(), testLogger())

	// No model, no maxTokens: completion tokens default to 0.7 x 1000.
	resp := transport.Execute(context.Background(), &domain.TaskRequest{ID: "task-1", Prompt: "hi"})

	require.True(t, resp.Success)
	assert.Equal(t, 700, resp.Usage.CompletionTokens)
	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.Response)
}

func TestDryRunTransport_ResultsLog(t *testing.T) {
	t.Parallel()

	transport := NewDryRunTransport(DefaultPriceTable(), testLogger())

	reqs := []*domain.TaskRequest{
		{ID: "a", Prompt: "one"},
		{ID: "b", Prompt: "two"},
	}
	responses := transport.ExecuteBatch(context.Background(), reqs)
	require.Len(t, responses, 2)

	results := transport.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.True(t, results[0].Success)
	assert.Equal(t, *reqs[0], results[0].Request)

	// Results returns a snapshot, not the live list.
	results[0].ID = "mutated"
	assert.Equal(t, "a", transport.Results()[0].ID)

	transport.Clear()
	assert.Empty(t, transport.Results())
}
