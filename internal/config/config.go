package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	SRS       SRSConfig       `mapstructure:"srs"`
	Plan      PlanConfig      `mapstructure:"plan" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Catalog   CatalogConfig   `mapstructure:"catalog" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Retry     RetryConfig     `mapstructure:"retry" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// Backend "memory" keeps all state in process and ignores the remaining fields.
type DatabaseConfig struct {
	Backend         string        `mapstructure:"backend" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"required_if=Backend postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

// AuthConfig contains the settings used to validate externally issued tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer    string `mapstructure:"issuer"`
}

// SRSConfig overrides the interval algorithm constants. Zero keeps the default.
type SRSConfig struct {
	InitialEaseFactor   float64 `mapstructure:"initial_ease_factor" validate:"gte=0"`
	MinEaseFactor       float64 `mapstructure:"min_ease_factor" validate:"omitempty,gte=1.3"`
	MaxEaseFactor       float64 `mapstructure:"max_ease_factor" validate:"gte=0"`
	RelapseEasePenalty  float64 `mapstructure:"relapse_ease_penalty" validate:"gte=0"`
	RelapseIntervalDays int     `mapstructure:"relapse_interval_days" validate:"gte=0"`
	FirstIntervalDays   int     `mapstructure:"first_interval_days" validate:"gte=0"`
	SecondIntervalDays  int     `mapstructure:"second_interval_days" validate:"gte=0"`
	MaxIntervalDays     int     `mapstructure:"max_interval_days" validate:"gte=0,lte=36500"`
	EaseBase            float64 `mapstructure:"ease_base" validate:"gte=0"`
	EaseLinear          float64 `mapstructure:"ease_linear" validate:"gte=0"`
	EaseQuadratic       float64 `mapstructure:"ease_quadratic" validate:"gte=0"`
}

// PlanConfig bounds the daily plan.
type PlanConfig struct {
	MaxReviewsPerDay int    `mapstructure:"max_reviews_per_day" validate:"gte=0,lte=100"`
	MaxNewPerDay     int    `mapstructure:"max_new_per_day" validate:"gte=0,lte=100"`
	TimeZone         string `mapstructure:"time_zone" validate:"required"`
	WeakPatterns     int    `mapstructure:"weak_patterns" validate:"gte=0"`
}

// SchedulerConfig bounds due-card listings.
type SchedulerConfig struct {
	DefaultDueLimit int `mapstructure:"default_due_limit" validate:"gt=0"`
	MaxDueLimit     int `mapstructure:"max_due_limit" validate:"gtefield=DefaultDueLimit"`
}

// CatalogConfig selects how problem existence lookups are cached.
type CatalogConfig struct {
	CacheMode string        `mapstructure:"cache_mode" validate:"required,oneof=none memory redis"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	CacheSize int           `mapstructure:"cache_size" validate:"gte=0"`
}

// RedisConfig is only required when the catalog cache runs in redis mode.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// TasksConfig controls the background plan warm-up.
type TasksConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	WorkerCount  int           `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize    int           `mapstructure:"queue_size" validate:"gt=0"`
	WarmInterval time.Duration `mapstructure:"warm_interval" validate:"gt=0"`
	ActiveWindow time.Duration `mapstructure:"active_window" validate:"gt=0"`
}

// RetryConfig controls how transient store failures are retried.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
}
