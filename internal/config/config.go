package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FairForge/sensorbench/internal/client"
	"github.com/FairForge/sensorbench/internal/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Target  TargetConfig         `yaml:"target"`
	Run     RunConfig            `yaml:"run"`
	Mix     MixConfig            `yaml:"mix"`
	Checks  ChecksConfig         `yaml:"checks"`
	Logging logging.LoggerConfig `yaml:"logging"`
	Metrics MetricsConfig        `yaml:"metrics"`
	History HistoryConfig        `yaml:"history"`
}

type TargetConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Encoding    string        `yaml:"encoding"` // gzip, zstd, snappy or empty
	BearerToken string        `yaml:"bearer_token"`
	JWTSecret   string        `yaml:"jwt_secret"` // mints a token when BearerToken is empty
	JWTSubject  string        `yaml:"jwt_subject"`
}

type RunConfig struct {
	Name           string        `yaml:"name"`
	Duration       time.Duration `yaml:"duration"`
	RPS            int           `yaml:"rps"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// MixConfig holds relative scenario weights. They need not sum to 100.
type MixConfig struct {
	Health     float64 `yaml:"health"`
	SensorData float64 `yaml:"sensor_data"`
	SensorRW   float64 `yaml:"sensor_rw"`
	Batch      float64 `yaml:"batch"`
	Stats      float64 `yaml:"stats"`
}

type ChecksConfig struct {
	RequestSchema  bool          `yaml:"request_schema"`
	StrictPriority bool          `yaml:"strict_priority"`
	SlowRequest    time.Duration `yaml:"slow_request"` // 0 disables
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the /metrics server
}

type HistoryConfig struct {
	DSN     string        `yaml:"dsn"` // empty disables run history
	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig points at an S3-compatible bucket for run summaries. An
// empty Bucket disables archiving.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Run: RunConfig{
			Name:           "sensorbench",
			Duration:       5 * time.Minute,
			RPS:            100,
			MaxConcurrency: 50,
		},
		Mix: MixConfig{
			Health:     5,
			SensorData: 40,
			SensorRW:   35,
			Batch:      15,
			Stats:      5,
		},
		Checks: ChecksConfig{
			SlowRequest: time.Second,
		},
		Logging: logging.LoggerConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the driver cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: target.base_url %q is not an absolute URL", ErrInvalidConfig, c.Target.BaseURL)
	}
	if c.Target.Timeout <= 0 {
		return fmt.Errorf("%w: target.timeout must be positive", ErrInvalidConfig)
	}
	if !client.ValidEncoding(c.Target.Encoding) {
		return fmt.Errorf("%w: target.encoding %q is not supported", ErrInvalidConfig, c.Target.Encoding)
	}
	if c.Run.Duration <= 0 {
		return fmt.Errorf("%w: run.duration must be positive", ErrInvalidConfig)
	}
	if c.Run.RPS <= 0 {
		return fmt.Errorf("%w: run.rps must be positive", ErrInvalidConfig)
	}
	if c.Run.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: run.max_concurrency must be positive", ErrInvalidConfig)
	}

	m := c.Mix
	for name, w := range map[string]float64{
		"health": m.Health, "sensor_data": m.SensorData, "sensor_rw": m.SensorRW,
		"batch": m.Batch, "stats": m.Stats,
	} {
		if w < 0 {
			return fmt.Errorf("%w: mix.%s must not be negative", ErrInvalidConfig, name)
		}
	}
	if m.Health+m.SensorData+m.SensorRW+m.Batch+m.Stats == 0 {
		return fmt.Errorf("%w: mix weights are all zero", ErrInvalidConfig)
	}

	if c.Checks.SlowRequest < 0 {
		return fmt.Errorf("%w: checks.slow_request must not be negative", ErrInvalidConfig)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
