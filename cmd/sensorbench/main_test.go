package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FairForge/sensorbench/internal/config"
	"github.com/FairForge/sensorbench/internal/loadtest"
	"github.com/FairForge/sensorbench/internal/metrics"
)

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordRequest("health", 200, time.Millisecond)

	server := httptest.NewServer(metricsServer(":0", reg).Handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `sensorbench_requests_total{scenario="health",status="2xx"} 1`)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	logSummary(zap.New(core), &loadtest.Summary{
		TestName:       "nightly",
		TotalRequests:  10,
		FailureCount:   2,
		ViolationCount: 3,
		Violations:     map[string]int64{"results array length mismatch": 3},
		Scenarios: map[string]loadtest.ScenarioSummary{
			"batch_sensor_rw": {Requests: 10, Failures: 2, Violations: 3},
		},
	})

	finished := logs.FilterMessage("load run finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(3), finished[0].ContextMap()["violations"])
	assert.Len(t, logs.FilterMessage("scenario summary").All(), 1)
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  rps: 0\n"), 0o600))

	err := run(path, filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.rps")
}

func TestNewClient(t *testing.T) {
	cfg := config.Default()
	cfg.Target.Encoding = "gzip"
	cfg.Target.JWTSecret = "shh"
	cfg.Target.JWTSubject = "runner"

	c, err := newClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gzip", c.Encoding)
	assert.True(t, strings.HasPrefix(c.Headers["Authorization"], "Bearer ey"))

	cfg.Target.BearerToken = "static"
	c, err = newClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Bearer static", c.Headers["Authorization"])

	cfg.Target.Encoding = "brotli"
	_, err = newClient(cfg)
	assert.Error(t, err)
}
