package generator

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// SensorRecord is the body of a single sensor report (POST /api/sensor-data).
type SensorRecord struct {
	Timestamp  string  `json:"timestamp"`
	DeviceID   string  `json:"device_id"`
	MetricName string  `json:"metric_name"`
	Value      float64 `json:"value"`
	Priority   int     `json:"priority"`
	Data       string  `json:"data"`
}

// SensorRWRecord is the body of a read-modify-write call (POST /api/sensor-rw).
type SensorRWRecord struct {
	DeviceID   string  `json:"device_id"`
	MetricName string  `json:"metric_name"`
	NewValue   float64 `json:"new_value"`
	Timestamp  string  `json:"timestamp"`
	Priority   int     `json:"priority"`
	Data       string  `json:"data"`
}

// BatchRecord is the body of a batch read-modify-write call
// (POST /api/batch-sensor-rw).
type BatchRecord struct {
	Data []SensorRWRecord `json:"data"`
}

// Source is the random number source used by a Generator.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource returns a source backed by the math/rand/v2 top-level
// functions. It is safe for concurrent use.
func DefaultSource() Source {
	return globalSource{}
}

// PayloadBand is one entry of the single-record payload size distribution.
type PayloadBand struct {
	Size   int
	Weight float64
}

var payloadBands = []PayloadBand{
	{Size: 512, Weight: 0.3},
	{Size: 2048, Weight: 0.3},
	{Size: 8192, Weight: 0.3},
	{Size: 20480, Weight: 0.1},
}

// PayloadBands returns the payload size distribution used by SingleRecord.
func PayloadBands() []PayloadBand {
	out := make([]PayloadBand, len(payloadBands))
	copy(out, payloadBands)
	return out
}

var metricNames = []string{
	"temperature", "pressure", "humidity", "vibration",
	"voltage", "current", "power", "flow_rate",
}

// Metrics returns the metric names records are drawn from.
func Metrics() []string {
	out := make([]string, len(metricNames))
	copy(out, metricNames)
	return out
}

var factories = []string{"001", "002", "003", "004", "005"}

const (
	maxDeviceNumber = 200
	timestampSpread = time.Hour

	rwMinPayload    = 1024
	rwMaxPayload    = 5120
	batchMinPayload = 256
	batchMaxPayload = 1024 // exclusive
	batchMinLen     = 2
	batchMaxLen     = 5
)

// Generator produces synthetic sensor records.
type Generator struct {
	src Source
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource sets the random source. A *rand.Rand is not safe for concurrent
// use; share one only between goroutines that synchronise access.
func WithSource(src Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.src = src
		}
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a Generator. Without options it uses DefaultSource and
// time.Now.
func New(opts ...Option) *Generator {
	g := &Generator{
		src: DefaultSource(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SingleRecord returns a sensor report whose payload size is drawn from
// PayloadBands.
func (g *Generator) SingleRecord() SensorRecord {
	return SensorRecord{
		Timestamp:  g.timestamp(),
		DeviceID:   g.deviceID(),
		MetricName: g.metric(),
		Value:      g.floatRange(10, 150),
		Priority:   g.priority(),
		Data:       g.Payload(g.bandSize()),
	}
}

// RWRecord returns a read-modify-write record with a 1-5 KiB payload.
func (g *Generator) RWRecord() SensorRWRecord {
	return g.rwRecord(g.intRange(rwMinPayload, rwMaxPayload))
}

// BatchRecord returns between two and five RW records, each with a payload
// target in [256, 1024) to keep the aggregate request small.
func (g *Generator) BatchRecord() BatchRecord {
	n := g.intRange(batchMinLen, batchMaxLen)
	items := make([]SensorRWRecord, n)
	for i := range items {
		items[i] = g.rwRecord(batchMinPayload + g.src.IntN(batchMaxPayload-batchMinPayload))
	}
	return BatchRecord{Data: items}
}

func (g *Generator) rwRecord(payloadSize int) SensorRWRecord {
	return SensorRWRecord{
		DeviceID:   g.deviceID(),
		MetricName: g.metric(),
		NewValue:   g.floatRange(20, 140),
		Timestamp:  g.timestamp(),
		Priority:   g.priority(),
		Data:       g.Payload(payloadSize),
	}
}

func (g *Generator) bandSize() int {
	r := g.src.Float64()
	var cumulative float64
	for _, band := range payloadBands {
		cumulative += band.Weight
		if r < cumulative {
			return band.Size
		}
	}
	// Float rounding can leave r just above the summed weights.
	return payloadBands[len(payloadBands)-1].Size
}

func (g *Generator) deviceID() string {
	factory := factories[g.src.IntN(len(factories))]
	return fmt.Sprintf("factory_%s_device_%03d", factory, g.intRange(1, maxDeviceNumber))
}

func (g *Generator) metric() string {
	return metricNames[g.src.IntN(len(metricNames))]
}

func (g *Generator) priority() int {
	return g.intRange(1, 3)
}

func (g *Generator) timestamp() string {
	offset := time.Duration(g.src.IntN(int(timestampSpread / time.Millisecond)))
	return formatTimestamp(g.now().Add(-offset * time.Millisecond))
}
