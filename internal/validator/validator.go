// Package validator checks the ingestion API's responses against the request
// record that produced them.
//
// Every validator returns the full list of violations it found instead of
// stopping at the first one. Only a body that failed to parse, or a failed
// status on endpoints whose remaining checks depend on a successful reply,
// ends validation early. Nothing here panics or returns an error: turning
// violations into a failed run is the caller's decision.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/FairForge/sensorbench/internal/generator"
)

// AlertThreshold is the value above which the API must raise an alert.
const AlertThreshold = 100.0

// ValueTolerance is the accepted difference between the submitted and the
// echoed new_value.
const ValueTolerance = 0.01

// HighValueAlert is the text an alert message must contain.
const HighValueAlert = "High value alert"

// ErrMalformedBody is returned by ParseBody when a response body is not a
// JSON object.
var ErrMalformedBody = errors.New("malformed response body")

// Violations lists every contract violation found for one response.
type Violations []string

// OK reports whether no violation was found.
func (v Violations) OK() bool {
	return len(v) == 0
}

// Err joins the violations into a single error, or returns nil.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	errs := make([]error, len(v))
	for i, msg := range v {
		errs[i] = errors.New(msg)
	}
	return errors.Join(errs...)
}

func (v *Violations) addf(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

// Body is a decoded JSON response object. A nil Body stands for a response
// whose body could not be parsed.
type Body map[string]any

// ParseBody decodes a response body. JSON null, arrays and scalars are
// rejected along with invalid JSON.
func ParseBody(raw []byte) (Body, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedBody)
	}

	var body Body
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return body, nil
}

func (b Body) str(key string) (string, bool) {
	s, ok := b[key].(string)
	return s, ok
}

func (b Body) num(key string) (float64, bool) {
	n, ok := b[key].(float64)
	return n, ok
}

// failureMessage mirrors the server's optional "message" field.
func (b Body) failureMessage() string {
	if msg, ok := b.str("message"); ok && msg != "" {
		return msg
	}
	return "unknown error"
}

func (b Body) successful() bool {
	status, _ := b.str("status")
	return status == "success"
}

// ValidateSingleResponse checks a POST /api/sensor-data response. An HTTP
// status failure does not stop the remaining checks; a missing body does.
func ValidateSingleResponse(rec generator.SensorRecord, status int, body Body) Violations {
	var v Violations

	if status != http.StatusOK {
		v.addf("sensor data response status: %d", status)
	}
	if body == nil {
		v.addf("failed to parse sensor data response")
		return v
	}
	if !body.successful() {
		v.addf("sensor data response not successful: %s", body.failureMessage())
	}
	if rec.Data == "" {
		v.addf("missing payload data in original request")
	}

	return v
}

// ValidateRWResponse checks a POST /api/sensor-rw response.
//
// A value above AlertThreshold must produce an alert. An alert on a value at
// or below the threshold is not reported.
func ValidateRWResponse(rec generator.SensorRWRecord, status int, body Body) Violations {
	var v Violations

	switch {
	case status != http.StatusOK:
		v.addf("sensor RW response status: %d", status)
		return v
	case body == nil:
		v.addf("failed to parse sensor RW response")
		return v
	case !body.successful():
		v.addf("sensor RW response not successful: %s", body.failureMessage())
		return v
	}

	if id, _ := body.str("device_id"); id != rec.DeviceID {
		v.addf("device ID mismatch in sensor RW response")
	}
	if got, ok := body.num("new_value"); !ok || math.Abs(got-rec.NewValue) > ValueTolerance {
		v.addf("new value mismatch in sensor RW response")
	}
	if rec.Data == "" {
		v.addf("missing payload data in original RW request")
	}
	if rec.NewValue > AlertThreshold {
		if alert, _ := body.str("alert"); !strings.Contains(alert, HighValueAlert) {
			v.addf("missing expected alert for high value")
		}
	}

	return v
}

// ValidateRWPriority checks that the API escalated a high-value write to
// priority 1. It is not part of ValidateRWResponse and only applies to
// responses that passed it.
func ValidateRWPriority(rec generator.SensorRWRecord, body Body) Violations {
	var v Violations
	if body == nil || rec.NewValue <= AlertThreshold {
		return v
	}
	if p, ok := body.num("priority"); !ok || p != 1 {
		v.addf("priority not escalated to 1 for high value %.2f", rec.NewValue)
	}
	return v
}

// ValidateBatchResponse checks a POST /api/batch-sensor-rw response.
func ValidateBatchResponse(rec generator.BatchRecord, status int, body Body) Violations {
	var v Violations

	switch {
	case status != http.StatusOK:
		v.addf("batch response status: %d", status)
		return v
	case body == nil:
		v.addf("failed to parse batch response")
		return v
	case !body.successful():
		v.addf("batch response not successful: %s", body.failureMessage())
		return v
	}

	expected := len(rec.Data)

	if got, ok := body.num("total_processed"); !ok || got != float64(expected) {
		v.addf("processed count mismatch: expected %d, got %s", expected, describe(body["total_processed"]))
	}
	if results, ok := body["results"].([]any); !ok || len(results) != expected {
		v.addf("results array length mismatch")
	}

	alerts := 0
	allHavePayload := true
	for _, item := range rec.Data {
		if item.Data == "" {
			allHavePayload = false
		}
		if item.NewValue > AlertThreshold {
			alerts++
		}
	}
	if !allHavePayload {
		v.addf("some batch items missing payload data")
	}
	if got, ok := body.num("total_alerts"); !ok || got != float64(alerts) {
		v.addf("alert count mismatch: expected %d, got %s", alerts, describe(body["total_alerts"]))
	}

	return v
}

// ValidateStatsResponse checks a GET /api/stats response.
func ValidateStatsResponse(status int, body Body) Violations {
	var v Violations

	if status != http.StatusOK {
		v.addf("stats response status: %d", status)
		return v
	}
	if body == nil {
		v.addf("failed to parse stats response")
		return v
	}

	if n, ok := body.num("total_records"); !ok || n < 0 {
		v.addf("invalid total_records in stats response")
	}
	if stats, ok := body["priority_stats"].(map[string]any); !ok || stats == nil {
		v.addf("invalid priority_stats in stats response")
	}
	if n, ok := body.num("recent_24h_count"); !ok || n < 0 {
		v.addf("invalid recent_24h_count in stats response")
	}

	return v
}

// ValidateHealthResponse checks a GET /health response.
func ValidateHealthResponse(status int, body Body) Violations {
	var v Violations

	if status != http.StatusOK {
		v.addf("health check status: %d", status)
		return v
	}
	if body == nil {
		v.addf("failed to parse health check response")
		return v
	}
	if s, _ := body.str("status"); s != "healthy" {
		v.addf("health check status is not healthy: %s", describe(body["status"]))
	}

	return v
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case float64:
		return fmt.Sprintf("%g", x)
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
