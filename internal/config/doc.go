// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to the runner's tunables (retry policy, breaker
// thresholds, upstream endpoint) while keeping configuration details
// separate from business logic.
package config
