package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a batch fails the validation gate.
	// This is often wrapped with the full list of per-row problems.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when input data is not in an expected
	// format (unparseable line, unsupported file extension).
	ErrInvalidFormat = errors.New("invalid format")

	// ErrEmptyBatch is returned when an input file yields no records.
	ErrEmptyBatch = errors.New("batch contains no records")
)
