package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Refresh  RefreshConfig  `mapstructure:"refresh" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`

	// AutoMigrate runs pending migrations at startup when set.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// AuthConfig contains all authentication and authorization settings.
// The API issues short-lived JWT access tokens to operators who present the
// configured operator key.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`

	// OperatorKeyHash is the bcrypt hash of the operator key. Generate one
	// with cmd/hash-generator.
	OperatorKeyHash string `mapstructure:"operator_key_hash" validate:"required"`
}

// LLMConfig contains all settings for the Gemini-backed discovery source.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// RefreshConfig tunes the hierarchy refresh core: outbound fetch
// concurrency, pacing, per-call timeouts and the retry budget.
type RefreshConfig struct {
	// FetchConcurrency caps simultaneous data-source calls across all tasks.
	FetchConcurrency int `mapstructure:"fetch_concurrency" validate:"required,gt=0"`

	// FetchTimeoutSeconds bounds a single data-source call.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" validate:"required,gt=0"`

	// RequestsPerSecond paces data-source calls. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// RetryMaxAttempts is the total attempt budget per fetch, including the
	// first call.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" validate:"required,gt=0"`

	// RetryBaseDelaySeconds is the backoff before the second attempt; each
	// further attempt doubles it.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" validate:"required,gt=0"`

	// CleanupRetentionDays is the default retention used by the cleanup
	// endpoint when the caller does not name one.
	CleanupRetentionDays int `mapstructure:"cleanup_retention_days" validate:"required,gt=0"`
}
