package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "settingsd.yaml"

// DefaultEnvFile is the dotenv file loaded into the process environment.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; missing files are not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile, DefaultEnvFile)
}

// LoadFrom returns a Config loaded from the given YAML and dotenv paths.
// Variables already present in the environment win over the dotenv file.
func LoadFrom(yamlPath, envPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotEnv(envPath); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-provided
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

// loadDotEnv populates unset environment variables from a dotenv file.
// Returns nil if path is empty or the file does not exist.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SETTINGSD_PORT")
	setString(&cfg.Server.CORSOrigin, "SETTINGSD_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxRequestBodySize, "SETTINGSD_MAX_BODY_SIZE")
	setDuration(&cfg.Server.ShutdownTimeout, "SETTINGSD_SHUTDOWN_TIMEOUT")
	setFloat64(&cfg.Server.RateLimitRPS, "SETTINGSD_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "SETTINGSD_RATE_LIMIT_BURST")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SETTINGSD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SETTINGSD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SETTINGSD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SETTINGSD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SETTINGSD_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "SETTINGSD_NATS_STREAM")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "SETTINGSD_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Backend, "SETTINGSD_CACHE_L2_BACKEND")
	setString(&cfg.Cache.L2Bucket, "SETTINGSD_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "SETTINGSD_CACHE_L2_TTL")
	setDuration(&cfg.Directory.CacheTTL, "SETTINGSD_DIRECTORY_CACHE_TTL")

	setInt(&cfg.Breaker.MaxFailures, "SETTINGSD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SETTINGSD_BREAKER_TIMEOUT")

	// Scheduler
	setBool(&cfg.Scheduler.Enabled, "SETTINGSD_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.Interval, "SETTINGSD_SCHEDULER_INTERVAL")
	setInt(&cfg.Scheduler.Concurrency, "SETTINGSD_SCHEDULER_CONCURRENCY")
	setInt(&cfg.Dnd.MaxStepHours, "SETTINGSD_DND_MAX_STEP_HOURS")

	setString(&cfg.Logging.Level, "SETTINGSD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SETTINGSD_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SETTINGSD_LOG_ASYNC")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "SETTINGSD_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRatio, "SETTINGSD_OTEL_SAMPLE_RATIO")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RateLimitRPS < 0 {
		return errors.New("server.rate_limit_rps must be >= 0")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Scheduler.Enabled && cfg.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be > 0")
	}
	if cfg.Scheduler.Concurrency < 1 {
		return errors.New("scheduler.concurrency must be >= 1")
	}
	if cfg.Dnd.MaxStepHours < 0 {
		return errors.New("dnd.max_step_hours must be >= 0")
	}
	switch cfg.Cache.L2Backend {
	case "none", "":
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("cache.l2_backend nats requires nats.url")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("cache.l2_backend redis requires redis.addr")
		}
	default:
		return fmt.Errorf("cache.l2_backend %q must be one of nats, redis, none", cfg.Cache.L2Backend)
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("otel.sample_ratio must be within [0, 1]")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
