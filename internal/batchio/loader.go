package batchio

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/libranvoice/batchrunner/internal/domain"
)

// Format identifies a supported batch file format.
type Format string

// Supported formats.
const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// supportedExtensions names the allowed input extensions for error
// messages.
const supportedExtensions = ".csv, .jsonl, .ndjson"

// jsonlScanBufferSize bounds the longest accepted input line.
const jsonlScanBufferSize = 1024 * 1024

// LoadResult is a fully validated batch ready for execution.
type LoadResult struct {
	Tasks  []*domain.TaskRequest
	Format Format
}

// BatchValidationError aggregates every validation problem found in one
// load. The load is all-or-nothing: when this error is returned, no
// partial task list is available, so a malformed batch can never execute
// partially against billable calls.
type BatchValidationError struct {
	Errors []domain.ValidationError
}

// Error lists every problem, one per line.
func (e *BatchValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch validation failed with %d error(s):", len(e.Errors))
	for _, ve := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Unwrap lets callers detect the failure class with errors.Is.
func (e *BatchValidationError) Unwrap() error {
	return domain.ErrValidation
}

// Loader streams batch files into validated task requests.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadFromFile parses the file at path, dispatching on its extension, and
// validates every record. A missing file is fatal before any parsing. If
// any record fails validation the whole load fails with a
// BatchValidationError listing every problem.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	var (
		tasks  []*domain.TaskRequest
		errs   []domain.ValidationError
		format Format
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		format = FormatCSV
		tasks, errs, err = l.loadCSV(file)
	case ".jsonl", ".ndjson":
		format = FormatJSONL
		tasks, errs, err = l.loadJSONL(file)
	default:
		return nil, fmt.Errorf("%w: unsupported input extension %q (supported: %s)",
			domain.ErrInvalidFormat, ext, supportedExtensions)
	}
	if err != nil {
		return nil, err
	}

	if len(errs) > 0 {
		l.logger.Error("batch failed validation",
			"path", path,
			"error_count", len(errs))
		return nil, &BatchValidationError{Errors: errs}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyBatch, path)
	}

	l.logger.Info("batch loaded",
		"path", path,
		"format", string(format),
		"task_count", len(tasks))

	return &LoadResult{Tasks: tasks, Format: format}, nil
}

// loadCSV streams a CSV batch. The first line is headers; quoted fields
// (embedded commas, newlines) are handled by the reader. The metadata
// column is opportunistically JSON-parsed, falling back to the raw string
// on parse failure. Row numbers reported in errors are physical file
// lines, so the first data row is row 2.
func (l *Loader) loadCSV(r io.Reader) ([]*domain.TaskRequest, []domain.ValidationError, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read CSV header: %v", domain.ErrInvalidFormat, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var (
		tasks []*domain.TaskRequest
		errs  []domain.ValidationError
	)

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, domain.ValidationError{
				Field:   "row",
				Message: fmt.Sprintf("invalid format: %v", err),
				Row:     row,
			})
			continue
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		req := &domain.TaskRequest{
			ID:             field("id"),
			Prompt:         field("prompt"),
			Model:          field("model"),
			BatchID:        field("batch_id"),
			CorrID:         field("corr_id"),
			IdempotencyKey: field("idempotency_key"),
		}

		rowErrs := false
		if raw := field("temperature"); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs = append(errs, domain.ValidationError{
					Field:   "temperature",
					Message: "temperature must be a number",
					Value:   raw,
					Row:     row,
				})
				rowErrs = true
			} else {
				req.Temperature = &value
			}
		}
		if raw := field("maxTokens"); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, domain.ValidationError{
					Field:   "maxTokens",
					Message: "maxTokens must be an integer",
					Value:   raw,
					Row:     row,
				})
				rowErrs = true
			} else {
				req.MaxTokens = &value
			}
		}
		if raw := field("messages"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Messages); err != nil {
				errs = append(errs, domain.ValidationError{
					Field:   "messages",
					Message: fmt.Sprintf("messages must be a JSON array: %v", err),
					Value:   raw,
					Row:     row,
				})
				rowErrs = true
			}
		}
		if raw := field("metadata"); raw != "" {
			req.Metadata = parseMetadata(raw)
		}
		if rowErrs {
			continue
		}

		l.validate(req, row, &tasks, &errs)
	}

	return tasks, errs, nil
}

// loadJSONL streams a line-delimited JSON batch, one TaskRequest per
// line. A line that fails to parse becomes an invalid-format
// ValidationError carrying the line content, rather than aborting the
// stream. Blank lines are skipped.
func (l *Loader) loadJSONL(r io.Reader) ([]*domain.TaskRequest, []domain.ValidationError, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), jsonlScanBufferSize)

	var (
		tasks []*domain.TaskRequest
		errs  []domain.ValidationError
	)

	for row := 1; scanner.Scan(); row++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req domain.TaskRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			errs = append(errs, domain.ValidationError{
				Field:   "line",
				Message: fmt.Sprintf("invalid format: %v", err),
				Value:   truncate(line, 120),
				Row:     row,
			})
			continue
		}

		l.validate(&req, row, &tasks, &errs)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}

	return tasks, errs, nil
}

// validate runs one record through the task validator, accumulating into
// the shared error list and logging warnings.
func (l *Loader) validate(
	req *domain.TaskRequest,
	row int,
	tasks *[]*domain.TaskRequest,
	errs *[]domain.ValidationError,
) {
	result := domain.ValidateTaskRequest(req, row)
	for _, warning := range result.Warnings {
		l.logger.Warn("validation warning",
			"row", row,
			"task_id", req.ID,
			"warning", warning)
	}
	if !result.Valid {
		*errs = append(*errs, result.Errors...)
		return
	}
	*tasks = append(*tasks, req)
}

// parseMetadata tries the metadata cell as embedded JSON, falling back to
// the raw string under the "raw" key when it does not parse as an object.
func parseMetadata(raw string) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed
	}
	return map[string]any{"raw": raw}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
