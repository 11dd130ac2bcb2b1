// Package loadtest runs a worker function at a constant request rate and
// aggregates what the workers report.
package loadtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorKeyLen bounds the length of violation and error keys in a Summary.
const maxErrorKeyLen = 100

// Config defines load test parameters.
type Config struct {
	Name           string
	Duration       time.Duration
	TargetRPS      int // Requests per second
	MaxConcurrency int // Max concurrent workers
}

// DefaultConfig returns sensible defaults for load testing.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:           name,
		Duration:       5 * time.Minute,
		TargetRPS:      100,
		MaxConcurrency: 50,
	}
}

// Result captures metrics from a single request.
type Result struct {
	Scenario   string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	BytesSent  int64
	BytesRecv  int64
	Violations []string
	Error      error
}

// Failed reports whether the request errored or broke the response contract.
func (r Result) Failed() bool {
	return r.Error != nil || len(r.Violations) > 0
}

// ScenarioSummary aggregates results for one scenario.
type ScenarioSummary struct {
	Requests   int64
	Failures   int64
	Violations int64
	AvgLatency time.Duration
}

// Summary aggregates results from a load test run.
type Summary struct {
	TestName       string
	StartTime      time.Time
	EndTime        time.Time
	TotalRequests  int64
	SuccessCount   int64
	FailureCount   int64
	ViolationCount int64
	TotalBytes     int64
	MinLatency     time.Duration
	MaxLatency     time.Duration
	AvgLatency     time.Duration
	P50Latency     time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	RequestsPerSec float64
	ErrorRate      float64
	Errors         map[string]int64
	Violations     map[string]int64
	Scenarios      map[string]ScenarioSummary
}

// WorkerFunc is the function each worker executes.
// It should perform one unit of work and return a Result.
type WorkerFunc func(ctx context.Context, workerID int) Result

type scenarioStats struct {
	requests   int64
	failures   int64
	violations int64
	latency    time.Duration
}

// Framework orchestrates load test execution.
type Framework struct {
	config     *Config
	workerFunc WorkerFunc
	results    chan Result

	// Metrics (atomic for thread safety)
	totalRequests  atomic.Int64
	successCount   atomic.Int64
	failureCount   atomic.Int64
	violationCount atomic.Int64
	totalBytes     atomic.Int64

	// State
	mu         sync.RWMutex
	running    bool
	startTime  time.Time
	latencies  []time.Duration
	errors     map[string]int64
	violations map[string]int64
	scenarios  map[string]*scenarioStats
}

// New creates a new load testing framework.
func New(config *Config, workerFunc WorkerFunc) *Framework {
	if config == nil {
		config = DefaultConfig("default")
	}

	return &Framework{
		config:     config,
		workerFunc: workerFunc,
		latencies:  make([]time.Duration, 0, 10000),
		errors:     make(map[string]int64),
		violations: make(map[string]int64),
		scenarios:  make(map[string]*scenarioStats),
	}
}

// Run executes the load test and returns a summary. Cancelling ctx ends the
// run early; the summary then covers the requests made so far.
func (f *Framework) Run(ctx context.Context) (*Summary, error) {
	if f.config.TargetRPS <= 0 || f.config.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("load test %q: TargetRPS and MaxConcurrency must be positive", f.config.Name)
	}

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil, fmt.Errorf("load test already running")
	}
	f.running = true
	f.startTime = time.Now()
	f.results = make(chan Result, f.config.MaxConcurrency*10)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	testCtx, cancel := context.WithTimeout(ctx, f.config.Duration)
	defer cancel()

	collectorDone := make(chan struct{})
	go f.collectResults(collectorDone)

	var wg sync.WaitGroup
	limiter := rate.NewLimiter(rate.Limit(f.config.TargetRPS), 1)
	semaphore := make(chan struct{}, f.config.MaxConcurrency)
	var workerID atomic.Int64

	for {
		if err := limiter.Wait(testCtx); err != nil {
			break
		}
		select {
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				defer func() { <-semaphore }()

				// Results are always delivered so in-flight requests are
				// counted even when the run ends mid-request.
				f.results <- f.workerFunc(testCtx, id)
			}(int(workerID.Add(1)))
		default:
			// At max concurrency, skip this slot
		}
	}

	wg.Wait()
	close(f.results)
	<-collectorDone

	return f.buildSummary(), nil
}

// collectResults aggregates results from workers.
func (f *Framework) collectResults(done chan struct{}) {
	defer close(done)

	for result := range f.results {
		f.totalRequests.Add(1)
		f.totalBytes.Add(result.BytesSent + result.BytesRecv)
		f.violationCount.Add(int64(len(result.Violations)))

		if result.Failed() {
			f.failureCount.Add(1)
		} else {
			f.successCount.Add(1)
		}

		f.mu.Lock()
		if result.Error != nil {
			f.errors[truncateKey(result.Error.Error())]++
		}
		for _, v := range result.Violations {
			f.violations[truncateKey(v)]++
		}

		s, ok := f.scenarios[result.Scenario]
		if !ok {
			s = &scenarioStats{}
			f.scenarios[result.Scenario] = s
		}
		s.requests++
		s.latency += result.Duration
		s.violations += int64(len(result.Violations))
		if result.Failed() {
			s.failures++
		}

		f.latencies = append(f.latencies, result.Duration)
		f.mu.Unlock()
	}
}

func truncateKey(key string) string {
	if len(key) > maxErrorKeyLen {
		return key[:maxErrorKeyLen]
	}
	return key
}

// buildSummary creates the final summary from collected metrics.
func (f *Framework) buildSummary() *Summary {
	f.mu.RLock()
	defer f.mu.RUnlock()

	endTime := time.Now()
	duration := endTime.Sub(f.startTime).Seconds()
	total := f.totalRequests.Load()

	summary := &Summary{
		TestName:       f.config.Name,
		StartTime:      f.startTime,
		EndTime:        endTime,
		TotalRequests:  total,
		SuccessCount:   f.successCount.Load(),
		FailureCount:   f.failureCount.Load(),
		ViolationCount: f.violationCount.Load(),
		TotalBytes:     f.totalBytes.Load(),
		Errors:         make(map[string]int64, len(f.errors)),
		Violations:     make(map[string]int64, len(f.violations)),
		Scenarios:      make(map[string]ScenarioSummary, len(f.scenarios)),
	}

	for k, v := range f.errors {
		summary.Errors[k] = v
	}
	for k, v := range f.violations {
		summary.Violations[k] = v
	}
	for name, s := range f.scenarios {
		ss := ScenarioSummary{Requests: s.requests, Failures: s.failures, Violations: s.violations}
		if s.requests > 0 {
			ss.AvgLatency = s.latency / time.Duration(s.requests)
		}
		summary.Scenarios[name] = ss
	}

	if duration > 0 {
		summary.RequestsPerSec = float64(total) / duration
	}
	if total > 0 {
		summary.ErrorRate = float64(summary.FailureCount) / float64(total)
	}

	if len(f.latencies) > 0 {
		summary.MinLatency, summary.MaxLatency, summary.AvgLatency,
			summary.P50Latency, summary.P95Latency, summary.P99Latency = calculatePercentiles(f.latencies)
	}

	return summary
}

// calculatePercentiles computes latency statistics.
func calculatePercentiles(latencies []time.Duration) (min, max, avg, p50, p95, p99 time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	min = sorted[0]
	max = sorted[len(sorted)-1]

	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	avg = total / time.Duration(len(sorted))

	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]

	return
}

// TopViolations returns up to n violation messages ordered by count.
func (s *Summary) TopViolations(n int) []string {
	keys := make([]string, 0, len(s.Violations))
	for k := range s.Violations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.Violations[keys[i]] != s.Violations[keys[j]] {
			return s.Violations[keys[i]] > s.Violations[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// IsRunning returns whether a test is currently executing.
func (f *Framework) IsRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// CurrentStats returns real-time metrics during test execution.
func (f *Framework) CurrentStats() (total, success, failure int64, rps float64) {
	total = f.totalRequests.Load()
	success = f.successCount.Load()
	failure = f.failureCount.Load()

	f.mu.RLock()
	elapsed := time.Since(f.startTime).Seconds()
	f.mu.RUnlock()

	if elapsed > 0 {
		rps = float64(total) / elapsed
	}
	return
}
