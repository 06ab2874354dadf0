package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	LLM     LLMConfig     `mapstructure:"llm" validate:"required"`
	Retry   RetryConfig   `mapstructure:"retry" validate:"required"`
	Breaker BreakerConfig `mapstructure:"breaker" validate:"required"`
	Batch   BatchConfig   `mapstructure:"batch"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// LLMConfig contains settings for the upstream completion service.
// APIKey may stay empty for dry runs; the live client rejects an empty
// key at construction.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	Model   string `mapstructure:"model"`
}

// RetryConfig contains the retry tunables, durations in milliseconds.
type RetryConfig struct {
	MaxRetries  int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelayMs int     `mapstructure:"base_delay_ms" validate:"gt=0"`
	TimeoutMs   int     `mapstructure:"timeout_ms" validate:"gt=0"`
	Multiplier  float64 `mapstructure:"multiplier" validate:"gte=1"`
}

// BreakerConfig contains the circuit breaker tunables.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold" validate:"gt=0"`
	CooldownMs       int `mapstructure:"cooldown_ms" validate:"gt=0"`
}

// BatchConfig names the input and output files of a run and whether to
// execute in dry-run (estimate-only) mode.
type BatchConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	DryRun bool   `mapstructure:"dry_run"`
}
