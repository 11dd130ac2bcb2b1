package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadFromEnv applies SENSORBENCH_* environment overrides. Unparseable
// values are ignored.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SENSORBENCH_BASE_URL"); v != "" {
		cfg.Target.BaseURL = v
	}
	if d, ok := envDuration("SENSORBENCH_TIMEOUT"); ok {
		cfg.Target.Timeout = d
	}
	if v, ok := os.LookupEnv("SENSORBENCH_ENCODING"); ok {
		cfg.Target.Encoding = v
	}
	if v := os.Getenv("SENSORBENCH_BEARER_TOKEN"); v != "" {
		cfg.Target.BearerToken = v
	}
	if v := os.Getenv("SENSORBENCH_JWT_SECRET"); v != "" {
		cfg.Target.JWTSecret = v
	}
	if v := os.Getenv("SENSORBENCH_JWT_SUBJECT"); v != "" {
		cfg.Target.JWTSubject = v
	}

	if v := os.Getenv("SENSORBENCH_RUN_NAME"); v != "" {
		cfg.Run.Name = v
	}
	if d, ok := envDuration("SENSORBENCH_DURATION"); ok {
		cfg.Run.Duration = d
	}
	if n, ok := envInt("SENSORBENCH_RPS"); ok {
		cfg.Run.RPS = n
	}
	if n, ok := envInt("SENSORBENCH_MAX_CONCURRENCY"); ok {
		cfg.Run.MaxConcurrency = n
	}

	if b, ok := envBool("SENSORBENCH_REQUEST_SCHEMA"); ok {
		cfg.Checks.RequestSchema = b
	}
	if b, ok := envBool("SENSORBENCH_STRICT_PRIORITY"); ok {
		cfg.Checks.StrictPriority = b
	}
	if d, ok := envDuration("SENSORBENCH_SLOW_REQUEST"); ok {
		cfg.Checks.SlowRequest = d
	}

	if v := os.Getenv("SENSORBENCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENSORBENCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SENSORBENCH_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("SENSORBENCH_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}

	archive := &cfg.History.Archive
	archive.Endpoint = GetEnvOrDefault("SENSORBENCH_S3_ENDPOINT", archive.Endpoint)
	archive.Region = GetEnvOrDefault("SENSORBENCH_S3_REGION", archive.Region)
	archive.Bucket = GetEnvOrDefault("SENSORBENCH_S3_BUCKET", archive.Bucket)
	archive.AccessKey = GetEnvOrDefault("SENSORBENCH_S3_ACCESS_KEY", archive.AccessKey)
	archive.SecretKey = GetEnvOrDefault("SENSORBENCH_S3_SECRET_KEY", archive.SecretKey)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil
}

func envBool(key string) (bool, bool) {
	b, err := strconv.ParseBool(os.Getenv(key))
	return b, err == nil
}

func envDuration(key string) (time.Duration, bool) {
	d, err := time.ParseDuration(os.Getenv(key))
	return d, err == nil
}
