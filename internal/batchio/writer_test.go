package batchio

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranvoice/batchrunner/internal/domain"
)

func sampleResponses() []*domain.TaskResponse {
	temperature := 0.3
	maxTokens := 128
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	return []*domain.TaskResponse{
		{
			ID: "a",
			Request: domain.TaskRequest{
				ID:          "a",
				Prompt:      "translate stone",
				Model:       "gpt-4",
				Temperature: &temperature,
				MaxTokens:   &maxTokens,
			},
			Response:  "vethra",
			Usage:     domain.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
			Cost:      0.006,
			Timestamp: timestamp,
			Success:   true,
			Timings:   domain.Timings{Start: timestamp, End: timestamp.Add(time.Second), Duration: 1000},
		},
		{
			ID:          "b",
			Request:     domain.TaskRequest{ID: "b", Prompt: "translate river"},
			Error:       "rate limit exceeded",
			ErrorCode:   "E_RATE_LIMIT",
			IsRetryable: true,
			Timestamp:   timestamp,
			Success:     false,
			RetryCount:  3,
		},
	}
}

func TestWriter_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	writer := NewWriter(testLogger())

	err := writer.WriteResults(sampleResponses(), filepath.Join(t.TempDir(), "out.xml"))
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
	assert.Contains(t, err.Error(), ".csv, .jsonl, .ndjson")
}

func TestWriter_JSONL(t *testing.T) {
	t.Parallel()

	writer := NewWriter(testLogger())
	path := filepath.Join(t.TempDir(), "out.jsonl")

	require.NoError(t, writer.WriteResults(sampleResponses(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(raw)
	assert.True(t, strings.HasSuffix(content, "\n"), "final record must be newline-terminated")

	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 2, "one record per line")

	var first domain.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first.ID)
	assert.True(t, first.Success)
	assert.Equal(t, "vethra", first.Response)

	// Absent optionals are absent keys, never null markers.
	assert.NotContains(t, lines[0], `"error"`)
	assert.NotContains(t, lines[0], "null")
	assert.NotContains(t, lines[1], `"response"`)
	assert.Contains(t, lines[1], `"errorCode":"E_RATE_LIMIT"`)
}

func TestWriter_JSONL_RoundTrip(t *testing.T) {
	t.Parallel()

	writer := NewWriter(testLogger())
	loader := NewLoader(testLogger())
	dir := t.TempDir()

	// Start from loader output so the round trip covers load -> write -> reload.
	input := writeTempFile(t, "in.jsonl",
		`{"id":"a","prompt":"translate stone","model":"gpt-4","temperature":0.3,"maxTokens":128,"batch_id":"batch-1","corr_id":"corr-1","idempotency_key":"idem-1","metadata":{"chapter":"3"}}
{"id":"b","messages":[{"role":"system","content":"You translate."},{"role":"user","content":"river"}]}
`)
	loaded, err := loader.LoadFromFile(input)
	require.NoError(t, err)

	responses := make([]*domain.TaskResponse, len(loaded.Tasks))
	for i, task := range loaded.Tasks {
		responses[i] = &domain.TaskResponse{
			ID:        task.ID,
			Request:   *task,
			Response:  "ok",
			Success:   true,
			Timestamp: time.Now().UTC(),
		}
	}

	outPath := filepath.Join(dir, "out.jsonl")
	require.NoError(t, writer.WriteResults(responses, outPath))

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, len(loaded.Tasks))

	for i, line := range lines {
		var reloaded domain.TaskResponse
		require.NoError(t, json.Unmarshal([]byte(line), &reloaded))
		assert.Equal(t, *loaded.Tasks[i], reloaded.Request,
			"request must deep-equal the originating TaskRequest")
	}
}

func TestWriter_CSV(t *testing.T) {
	t.Parallel()

	writer := NewWriter(testLogger())
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, writer.WriteResults(sampleResponses(), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = file.Close()
	}()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two records")

	header := records[0]
	assert.Equal(t, []string{
		"ID", "Success", "Response", "Error", "Error Code",
		"Prompt Tokens", "Completion Tokens", "Total Tokens",
		"Cost", "Timestamp", "Prompt", "Model", "Temperature", "Max Tokens",
	}, header)

	success := records[1]
	assert.Equal(t, "a", success[0])
	assert.Equal(t, "true", success[1])
	assert.Equal(t, "vethra", success[2])
	assert.Equal(t, "", success[3], "absent error is an empty string")
	assert.Equal(t, "0.006", success[8])
	assert.Equal(t, "0.3", success[12])
	assert.Equal(t, "128", success[13])

	failure := records[2]
	assert.Equal(t, "b", failure[0])
	assert.Equal(t, "false", failure[1])
	assert.Equal(t, "", failure[2])
	assert.Equal(t, "rate limit exceeded", failure[3])
	assert.Equal(t, "E_RATE_LIMIT", failure[4])
	assert.Equal(t, "", failure[12], "absent temperature is an empty string")
	assert.Equal(t, "", failure[13], "absent maxTokens is an empty string")
}

func TestWriter_DryRunResults(t *testing.T) {
	t.Parallel()

	writer := NewWriter(testLogger())
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	results := []domain.DryRunResult{
		{
			ID:                "a",
			Request:           domain.TaskRequest{ID: "a", Prompt: "hello", Model: "gpt-4"},
			SimulatedResponse: "[dry run] simulated response for task a",
			Usage:             domain.Usage{PromptTokens: 1, CompletionTokens: 700, TotalTokens: 701},
			Cost:              0.042,
			Timestamp:         timestamp,
			Success:           true,
		},
	}

	t.Run("csv", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "dry.csv")
		require.NoError(t, writer.WriteDryRunResults(results, path))

		file, err := os.Open(path)
		require.NoError(t, err)
		defer func() {
			_ = file.Close()
		}()

		records, err := csv.NewReader(file).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Contains(t, records[0], "Simulated Response")
		assert.Contains(t, records[0], "Simulated Cost")
		assert.Equal(t, "0.042", records[1][6])
	})

	t.Run("jsonl", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "dry.jsonl")
		require.NoError(t, writer.WriteDryRunResults(results, path))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)

		var reloaded domain.DryRunResult
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(string(raw), "\n")), &reloaded))
		assert.Equal(t, results[0].ID, reloaded.ID)
		assert.Equal(t, results[0].Usage, reloaded.Usage)
		assert.Equal(t, results[0].Request, reloaded.Request)
	})
}
