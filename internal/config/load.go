package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // plan.time_zone must resolve on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RECALL_DATABASE_URL.
const EnvPrefix = "RECALL"

// setDefaults registers every key so that environment overrides are picked up
// by Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.backend", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.query_timeout", 5*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("srs.initial_ease_factor", 0)
	v.SetDefault("srs.min_ease_factor", 0)
	v.SetDefault("srs.max_ease_factor", 0)
	v.SetDefault("srs.relapse_ease_penalty", 0)
	v.SetDefault("srs.relapse_interval_days", 0)
	v.SetDefault("srs.first_interval_days", 0)
	v.SetDefault("srs.second_interval_days", 0)
	v.SetDefault("srs.max_interval_days", 0)
	v.SetDefault("srs.ease_base", 0)
	v.SetDefault("srs.ease_linear", 0)
	v.SetDefault("srs.ease_quadratic", 0)

	v.SetDefault("plan.max_reviews_per_day", 3)
	v.SetDefault("plan.max_new_per_day", 2)
	v.SetDefault("plan.time_zone", "UTC")
	v.SetDefault("plan.weak_patterns", 3)

	v.SetDefault("scheduler.default_due_limit", 10)
	v.SetDefault("scheduler.max_due_limit", 100)

	v.SetDefault("catalog.cache_mode", "memory")
	v.SetDefault("catalog.cache_ttl", 30*time.Second)
	v.SetDefault("catalog.cache_size", 10000)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("tasks.enabled", true)
	v.SetDefault("tasks.worker_count", 2)
	v.SetDefault("tasks.queue_size", 100)
	v.SetDefault("tasks.warm_interval", time.Hour)
	v.SetDefault("tasks.active_window", 7*24*time.Hour)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 50*time.Millisecond)
	v.SetDefault("retry.max_delay", time.Second)
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom behaves like Load but looks for config.yaml in dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags plus the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(c.Plan.TimeZone); err != nil {
		return fmt.Errorf("config validation failed: plan.time_zone %q: %w", c.Plan.TimeZone, err)
	}

	if c.Catalog.CacheMode == "redis" && c.Redis.Addr == "" {
		return errors.New("config validation failed: redis.addr is required when catalog.cache_mode is redis")
	}

	return nil
}

// Location returns the plan time zone. Validate guarantees it loads.
func (p PlanConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
