package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FairForge/sensorbench/internal/loadtest"
)

// ArchiveConfig locates the S3-compatible bucket run summaries are copied to.
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Archive uploads run summaries as JSON objects.
type Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchive creates an archive client. Path-style addressing is used so
// that self-hosted S3-compatible stores work without DNS buckets.
func NewArchive(cfg ArchiveConfig, httpClient *http.Client) *Archive {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	opts := s3.Options{
		Region:                     cfg.Region,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle:               true,
		HTTPClient:                 httpClient,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Archive{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// summaryDocument is the archived form of a loadtest.Summary.
type summaryDocument struct {
	Name           string                      `json:"name"`
	StartTime      time.Time                   `json:"start_time"`
	EndTime        time.Time                   `json:"end_time"`
	TotalRequests  int64                       `json:"total_requests"`
	SuccessCount   int64                       `json:"success_count"`
	FailureCount   int64                       `json:"failure_count"`
	ViolationCount int64                       `json:"violation_count"`
	TotalBytes     int64                       `json:"total_bytes"`
	RequestsPerSec float64                     `json:"requests_per_sec"`
	ErrorRate      float64                     `json:"error_rate"`
	LatencyMs      map[string]float64          `json:"latency_ms"`
	Errors         map[string]int64            `json:"errors"`
	Violations     map[string]int64            `json:"violations"`
	Scenarios      map[string]scenarioDocument `json:"scenarios"`
}

type scenarioDocument struct {
	Requests     int64   `json:"requests"`
	Failures     int64   `json:"failures"`
	Violations   int64   `json:"violations"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func newSummaryDocument(s *loadtest.Summary) summaryDocument {
	doc := summaryDocument{
		Name:           s.TestName,
		StartTime:      s.StartTime.UTC(),
		EndTime:        s.EndTime.UTC(),
		TotalRequests:  s.TotalRequests,
		SuccessCount:   s.SuccessCount,
		FailureCount:   s.FailureCount,
		ViolationCount: s.ViolationCount,
		TotalBytes:     s.TotalBytes,
		RequestsPerSec: s.RequestsPerSec,
		ErrorRate:      s.ErrorRate,
		LatencyMs: map[string]float64{
			"min": ms(s.MinLatency),
			"avg": ms(s.AvgLatency),
			"p50": ms(s.P50Latency),
			"p95": ms(s.P95Latency),
			"p99": ms(s.P99Latency),
			"max": ms(s.MaxLatency),
		},
		Errors:     s.Errors,
		Violations: s.Violations,
		Scenarios:  make(map[string]scenarioDocument, len(s.Scenarios)),
	}
	for name, sc := range s.Scenarios {
		doc.Scenarios[name] = scenarioDocument{
			Requests:     sc.Requests,
			Failures:     sc.Failures,
			Violations:   sc.Violations,
			AvgLatencyMs: ms(sc.AvgLatency),
		}
	}
	return doc
}

// Key returns the object key a summary is stored under.
func (a *Archive) Key(s *loadtest.Summary) string {
	return path.Join(a.prefix, s.TestName, s.StartTime.UTC().Format("20060102T150405Z")+".json")
}

// Put uploads s and returns its object key.
func (a *Archive) Put(ctx context.Context, s *loadtest.Summary) (string, error) {
	body, err := json.MarshalIndent(newSummaryDocument(s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	key := a.Key(s)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
