// cmd/sensorbench/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FairForge/sensorbench/internal/client"
	"github.com/FairForge/sensorbench/internal/config"
	"github.com/FairForge/sensorbench/internal/driver"
	"github.com/FairForge/sensorbench/internal/history"
	"github.com/FairForge/sensorbench/internal/loadtest"
	"github.com/FairForge/sensorbench/internal/logging"
	"github.com/FairForge/sensorbench/internal/metrics"
	"github.com/FairForge/sensorbench/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envPath := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "sensorbench: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	if cfg.Metrics.Listen != "" {
		srv := metricsServer(cfg.Metrics.Listen, reg)
		go func() {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mix, err := driver.NewMix(cfg.Mix)
	if err != nil {
		return fmt.Errorf("scenario mix: %w", err)
	}

	opts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithMetrics(collector),
		driver.WithStrictPriority(cfg.Checks.StrictPriority),
		driver.WithSlowRequest(cfg.Checks.SlowRequest),
	}
	if cfg.Checks.RequestSchema {
		contract, err := validator.NewRequestContract()
		if err != nil {
			return fmt.Errorf("request contract: %w", err)
		}
		opts = append(opts, driver.WithRequestContract(contract))
	}

	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	d := driver.New(c, mix, opts...)

	framework := loadtest.New(&loadtest.Config{
		Name:           cfg.Run.Name,
		Duration:       cfg.Run.Duration,
		TargetRPS:      cfg.Run.RPS,
		MaxConcurrency: cfg.Run.MaxConcurrency,
	}, d.Worker())

	logger.Info("starting load run",
		zap.String("name", cfg.Run.Name),
		zap.String("target", cfg.Target.BaseURL),
		zap.Duration("duration", cfg.Run.Duration),
		zap.Int("rps", cfg.Run.RPS),
		zap.Int("max_concurrency", cfg.Run.MaxConcurrency))

	summary, err := framework.Run(ctx)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	logSummary(logger, summary)

	// The run context may already be cancelled by a signal.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if cfg.History.DSN != "" {
		if err := recordHistory(saveCtx, cfg.History.DSN, summary); err != nil {
			logger.Error("failed to record run history", zap.Error(err))
		}
	}
	if a := cfg.History.Archive; a.Bucket != "" {
		archive := history.NewArchive(history.ArchiveConfig{
			Endpoint:  a.Endpoint,
			Region:    a.Region,
			Bucket:    a.Bucket,
			Prefix:    a.Prefix,
			AccessKey: a.AccessKey,
			SecretKey: a.SecretKey,
		}, nil)
		key, err := archive.Put(saveCtx, summary)
		if err != nil {
			logger.Error("failed to archive run summary", zap.Error(err))
		} else {
			logger.Info("archived run summary", zap.String("bucket", a.Bucket), zap.String("key", key))
		}
	}
	return nil
}

// newClient builds the target client with the configured encoding and
// credentials.
func newClient(cfg *config.Config) (*client.Client, error) {
	c := client.New(cfg.Target.BaseURL, cfg.Target.Timeout)
	if err := c.SetEncoding(cfg.Target.Encoding); err != nil {
		return nil, err
	}

	switch {
	case cfg.Target.BearerToken != "":
		c.SetBearerToken(cfg.Target.BearerToken)
	case cfg.Target.JWTSecret != "":
		ttl := cfg.Run.Duration + cfg.Target.Timeout + time.Minute
		token, err := client.SignToken(cfg.Target.JWTSecret, cfg.Target.JWTSubject, ttl, time.Now())
		if err != nil {
			return nil, fmt.Errorf("target token: %w", err)
		}
		c.SetBearerToken(token)
	}
	return c, nil
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func logSummary(logger *zap.Logger, s *loadtest.Summary) {
	logger.Info("load run finished",
		zap.String("name", s.TestName),
		zap.Int64("requests", s.TotalRequests),
		zap.Int64("failures", s.FailureCount),
		zap.Int64("violations", s.ViolationCount),
		zap.Float64("rps", s.RequestsPerSec),
		zap.Float64("error_rate", s.ErrorRate),
		zap.Duration("p50", s.P50Latency),
		zap.Duration("p95", s.P95Latency),
		zap.Duration("p99", s.P99Latency),
		zap.Strings("top_violations", s.TopViolations(5)))

	for name, sc := range s.Scenarios {
		logger.Info("scenario summary",
			zap.String("scenario", name),
			zap.Int64("requests", sc.Requests),
			zap.Int64("failures", sc.Failures),
			zap.Int64("violations", sc.Violations),
			zap.Duration("avg_latency", sc.AvgLatency))
	}
}

func recordHistory(ctx context.Context, dsn string, s *loadtest.Summary) error {
	store, err := history.Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateTables(ctx); err != nil {
		return err
	}
	_, err = store.RecordRun(ctx, s)
	return err
}
