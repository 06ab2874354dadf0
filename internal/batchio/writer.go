package batchio

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// CSV column sets. Absent optional fields serialize as empty strings so a
// written file re-parses without null markers.
var (
	responseColumns = []string{
		"ID", "Success", "Response", "Error", "Error Code",
		"Prompt Tokens", "Completion Tokens", "Total Tokens",
		"Cost", "Timestamp", "Prompt", "Model", "Temperature", "Max Tokens",
	}
	dryRunColumns = []string{
		"ID", "Success", "Simulated Response",
		"Prompt Tokens", "Completion Tokens", "Total Tokens",
		"Simulated Cost", "Timestamp", "Prompt", "Model", "Temperature", "Max Tokens",
	}
)

// Writer serializes result collections to CSV or line-delimited JSON,
// dispatched by output extension.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

// WriteResults writes task responses to the file at path. JSONL output is
// one serialized record per line, newline-terminated including the final
// record; CSV output flattens nested usage, cost and request fields into
// named columns.
func (w *Writer) WriteResults(responses []*domain.TaskResponse, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson", ".json":
		return w.writeJSONL(path, len(responses), func(i int) any { return responses[i] })
	case ".csv":
		return w.writeCSV(path, responseColumns, len(responses), func(i int) []string {
			return responseRow(responses[i])
		})
	default:
		return fmt.Errorf("%w: unsupported output extension %q (supported: .csv, .jsonl, .ndjson)",
			domain.ErrInvalidFormat, ext)
	}
}

// WriteDryRunResults writes dry-run estimates to the file at path, with
// the same extension dispatch as WriteResults.
func (w *Writer) WriteDryRunResults(results []domain.DryRunResult, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson", ".json":
		return w.writeJSONL(path, len(results), func(i int) any { return results[i] })
	case ".csv":
		return w.writeCSV(path, dryRunColumns, len(results), func(i int) []string {
			return dryRunRow(results[i])
		})
	default:
		return fmt.Errorf("%w: unsupported output extension %q (supported: .csv, .jsonl, .ndjson)",
			domain.ErrInvalidFormat, ext)
	}
}

func (w *Writer) writeJSONL(path string, count int, record func(int) any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	buf := bufio.NewWriter(file)
	for i := 0; i < count; i++ {
		line, err := json.Marshal(record(i))
		if err != nil {
			return fmt.Errorf("failed to serialize record %d: %w", i, err)
		}
		if _, err := buf.Write(line); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
		if err := buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	w.logger.Info("results written", "path", path, "count", count, "format", "jsonl")
	return nil
}

func (w *Writer) writeCSV(path string, columns []string, count int, row func(int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < count; i++ {
		if err := writer.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	w.logger.Info("results written", "path", path, "count", count, "format", "csv")
	return nil
}

func responseRow(resp *domain.TaskResponse) []string {
	return []string{
		resp.ID,
		strconv.FormatBool(resp.Success),
		resp.Response,
		resp.Error,
		resp.ErrorCode,
		strconv.Itoa(resp.Usage.PromptTokens),
		strconv.Itoa(resp.Usage.CompletionTokens),
		strconv.Itoa(resp.Usage.TotalTokens),
		formatCost(resp.Cost),
		resp.Timestamp.Format(time.RFC3339Nano),
		resp.Request.Prompt,
		resp.Request.Model,
		formatOptionalFloat(resp.Request.Temperature),
		formatOptionalInt(resp.Request.MaxTokens),
	}
}

func dryRunRow(result domain.DryRunResult) []string {
	return []string{
		result.ID,
		strconv.FormatBool(result.Success),
		result.SimulatedResponse,
		strconv.Itoa(result.Usage.PromptTokens),
		strconv.Itoa(result.Usage.CompletionTokens),
		strconv.Itoa(result.Usage.TotalTokens),
		formatCost(result.Cost),
		result.Timestamp.Format(time.RFC3339Nano),
		result.Request.Prompt,
		result.Request.Model,
		formatOptionalFloat(result.Request.Temperature),
		formatOptionalInt(result.Request.MaxTokens),
	}
}

func formatCost(cost float64) string {
	return strconv.FormatFloat(cost, 'f', -1, 64)
}

func formatOptionalFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatOptionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
