// Package driver turns generated sensor records into requests against the
// ingestion API and checks every response it gets back.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/sensorbench/internal/client"
	"github.com/FairForge/sensorbench/internal/generator"
	"github.com/FairForge/sensorbench/internal/loadtest"
	"github.com/FairForge/sensorbench/internal/logging"
	"github.com/FairForge/sensorbench/internal/metrics"
	"github.com/FairForge/sensorbench/internal/validator"
)

// API paths.
const (
	PathHealth     = "/health"
	PathSensorData = "/api/sensor-data"
	PathSensorRW   = "/api/sensor-rw"
	PathBatch      = "/api/batch-sensor-rw"
	PathStats      = "/api/stats"
)

// ErrUnknownScenario is reported in a Result for a scenario the driver does
// not know how to send.
var ErrUnknownScenario = errors.New("unknown scenario")

// Driver sends one scenario per call and validates the response.
type Driver struct {
	client   *client.Client
	mix      *Mix
	gen      *generator.Generator
	src      generator.Source
	contract *validator.RequestContract
	metrics  *metrics.Collector
	logger   *zap.Logger

	strictPriority bool
	slowRequest    time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithGenerator sets the record generator.
func WithGenerator(g *generator.Generator) Option {
	return func(d *Driver) { d.gen = g }
}

// WithSource sets the random source used to pick scenarios.
func WithSource(src generator.Source) Option {
	return func(d *Driver) { d.src = src }
}

// WithRequestContract checks every request body against the API schemas
// before it is sent. Schema errors are reported as violations.
func WithRequestContract(c *validator.RequestContract) Option {
	return func(d *Driver) { d.contract = c }
}

// WithMetrics records request metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Driver) { d.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithStrictPriority also requires high-value writes to come back with
// priority 1.
func WithStrictPriority(on bool) Option {
	return func(d *Driver) { d.strictPriority = on }
}

// WithSlowRequest logs and counts requests slower than threshold. Zero
// disables the check.
func WithSlowRequest(threshold time.Duration) Option {
	return func(d *Driver) { d.slowRequest = threshold }
}

// New creates a Driver that sends requests through c.
func New(c *client.Client, mix *Mix, opts ...Option) *Driver {
	d := &Driver{
		client: c,
		mix:    mix,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.gen == nil {
		d.gen = generator.New()
	}
	if d.src == nil {
		d.src = generator.DefaultSource()
	}
	d.logger = logging.OrNop(d.logger)
	return d
}

// Worker returns a loadtest.WorkerFunc that sends one scenario drawn from
// the mix per call.
func (d *Driver) Worker() loadtest.WorkerFunc {
	return func(ctx context.Context, workerID int) loadtest.Result {
		return d.Execute(ctx, d.mix.Pick(d.src.Float64()))
	}
}

// checkFunc validates one response.
type checkFunc func(status int, body validator.Body) validator.Violations

// Execute sends a single request for s and validates the response.
func (d *Driver) Execute(ctx context.Context, s Scenario) loadtest.Result {
	switch s {
	case ScenarioHealth:
		return d.get(ctx, s, PathHealth, validator.ValidateHealthResponse)

	case ScenarioStats:
		return d.get(ctx, s, PathStats, validator.ValidateStatsResponse)

	case ScenarioSensorData:
		rec := d.gen.SingleRecord()
		return d.post(ctx, s, PathSensorData, validator.RequestSensorData, rec, payloadSize(rec.Data),
			func(status int, body validator.Body) validator.Violations {
				return validator.ValidateSingleResponse(rec, status, body)
			})

	case ScenarioSensorRW:
		rec := d.gen.RWRecord()
		return d.post(ctx, s, PathSensorRW, validator.RequestSensorRW, rec, payloadSize(rec.Data),
			func(status int, body validator.Body) validator.Violations {
				v := validator.ValidateRWResponse(rec, status, body)
				if d.strictPriority && v.OK() {
					v = append(v, validator.ValidateRWPriority(rec, body)...)
				}
				return v
			})

	case ScenarioBatch:
		rec := d.gen.BatchRecord()
		size := 0
		for _, item := range rec.Data {
			size += payloadSize(item.Data)
		}
		return d.post(ctx, s, PathBatch, validator.RequestBatch, rec, size,
			func(status int, body validator.Body) validator.Violations {
				return validator.ValidateBatchResponse(rec, status, body)
			})

	default:
		return loadtest.Result{
			Scenario:  string(s),
			StartTime: time.Now(),
			Error:     fmt.Errorf("%w: %q", ErrUnknownScenario, s),
		}
	}
}

func (d *Driver) get(ctx context.Context, s Scenario, path string, check checkFunc) loadtest.Result {
	return d.send(ctx, s, client.Request{Method: http.MethodGet, Path: path}, 0, nil, check)
}

func (d *Driver) post(ctx context.Context, s Scenario, path string, kind validator.RequestKind, rec any, size int, check checkFunc) loadtest.Result {
	body, err := json.Marshal(rec)
	if err != nil {
		return loadtest.Result{
			Scenario:  string(s),
			StartTime: time.Now(),
			Error:     fmt.Errorf("encode %s request: %w", s, err),
		}
	}

	var pre validator.Violations
	if d.contract != nil {
		pre = d.contract.ValidateRequest(kind, body)
	}
	return d.send(ctx, s, client.Request{Method: http.MethodPost, Path: path, Body: body}, size, pre, check)
}

func (d *Driver) send(ctx context.Context, s Scenario, req client.Request, size int, pre validator.Violations, check checkFunc) loadtest.Result {
	scenario := string(s)
	result := loadtest.Result{Scenario: scenario, StartTime: time.Now()}
	if b, ok := req.Body.([]byte); ok {
		result.BytesSent = int64(len(b))
	}

	resp, err := d.client.Do(ctx, req)
	result.Duration = time.Since(result.StartTime)
	if err != nil {
		result.Error = err
		if d.metrics != nil {
			d.metrics.RecordError(scenario)
		}
		d.logger.Warn("request failed",
			zap.String("scenario", scenario),
			zap.String("path", req.Path),
			zap.Error(err))
		return result
	}
	result.StatusCode = resp.StatusCode
	result.BytesSent = int64(resp.BytesSent)
	result.BytesRecv = int64(len(resp.Body))

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("HTTP error",
			zap.String("scenario", scenario),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", resp.RequestID))
	}

	body, err := validator.ParseBody(resp.Body)
	if err != nil {
		d.logger.Debug("unparseable response body",
			zap.String("scenario", scenario),
			zap.String("request_id", resp.RequestID),
			zap.Error(err))
	}

	violations := append(pre, check(resp.StatusCode, body)...)
	result.Violations = []string(violations)

	slow := d.slowRequest > 0 && result.Duration > d.slowRequest
	if slow {
		d.logger.Warn(fmt.Sprintf("Slow request detected: %dms for %s", result.Duration.Milliseconds(), scenario),
			zap.String("request_id", resp.RequestID))
	}
	if len(violations) > 0 {
		d.logger.Warn("response contract violated",
			zap.String("scenario", scenario),
			zap.String("request_id", resp.RequestID),
			zap.Strings("violations", violations))
	}

	d.logger.Debug("request completed",
		zap.String("scenario", scenario),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", result.Duration),
		zap.Int("payload_bytes", size),
		zap.String("request_id", resp.RequestID))

	if d.metrics != nil {
		d.metrics.RecordRequest(scenario, resp.StatusCode, result.Duration)
		d.metrics.RecordPayload(scenario, size)
		d.metrics.RecordViolations(scenario, len(violations))
		if slow {
			d.metrics.RecordSlow(scenario)
		}
	}
	return result
}

// payloadSize returns the decoded length of a standard base64 string.
func payloadSize(encoded string) int {
	n := len(encoded) / 4 * 3
	return n - (len(encoded) - len(strings.TrimRight(encoded, "=")))
}
