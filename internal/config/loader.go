package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "matching.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "MATCHING_PORT")
	setString(&cfg.Server.CORSOrigin, "MATCHING_CORS_ORIGIN")
	setString(&cfg.Server.AdminToken, "MATCHING_ADMIN_TOKEN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MATCHING_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MATCHING_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MATCHING_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MATCHING_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MATCHING_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "MATCHING_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MATCHING_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MATCHING_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "MATCHING_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MATCHING_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "MATCHING_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.CandidateTTL, "MATCHING_CACHE_CANDIDATE_TTL")
	setString(&cfg.Cache.SharedBucket, "MATCHING_CACHE_SHARED_BUCKET")
	setString(&cfg.Slack.WebhookURL, "MATCHING_SLACK_WEBHOOK_URL")
	setString(&cfg.Discord.WebhookURL, "MATCHING_DISCORD_WEBHOOK_URL")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setInt(&cfg.Matching.MaxAttempts, "MATCHING_MAX_ATTEMPTS")
	setDuration(&cfg.Matching.ResponseWindow, "MATCHING_RESPONSE_WINDOW")
	setDuration(&cfg.Matching.RequestTTL, "MATCHING_REQUEST_TTL")
	setDuration(&cfg.Matching.SweepInterval, "MATCHING_SWEEP_INTERVAL")
	setInt64(&cfg.Matching.MaxConcurrentSweep, "MATCHING_MAX_CONCURRENT_SWEEP")
	setInt(&cfg.Matching.DefaultMinAgents, "MATCHING_DEFAULT_MIN_AGENTS")
	setInt(&cfg.Matching.DefaultMaxAgents, "MATCHING_DEFAULT_MAX_AGENTS")
	setBool(&cfg.Matching.AllowBenchFallback, "MATCHING_ALLOW_BENCH_FALLBACK")
	setFloat64(&cfg.Matching.MaxResponseHours, "MATCHING_MAX_RESPONSE_HOURS")
	setFloat64(&cfg.Matching.StarTierScore, "MATCHING_STAR_TIER_SCORE")
	setFloat64(&cfg.Matching.BenchTierScore, "MATCHING_BENCH_TIER_SCORE")
	setInt(&cfg.Matching.MinReasonLength, "MATCHING_MIN_REASON_LENGTH")
	setInt(&cfg.Matching.WorkloadRetries, "MATCHING_WORKLOAD_RETRIES")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Matching.MaxAttempts < 1 {
		return errors.New("matching.max_attempts must be >= 1")
	}
	if cfg.Matching.ResponseWindow <= 0 {
		return errors.New("matching.response_window must be positive")
	}
	if cfg.Matching.RequestTTL < cfg.Matching.ResponseWindow {
		return errors.New("matching.request_ttl must be >= matching.response_window")
	}
	if cfg.Matching.DefaultMinAgents < 1 {
		return errors.New("matching.default_min_agents must be >= 1")
	}
	if cfg.Matching.DefaultMaxAgents < cfg.Matching.DefaultMinAgents {
		return errors.New("matching.default_max_agents must be >= default_min_agents")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
