// Package generator builds synthetic sensor records for load testing the
// time-series ingestion API.
//
// Every record carries an opaque base64 payload blob whose decoded size is
// drawn from a fixed band distribution, so request sizes stay realistic and
// comparable between runs even though the values themselves are random.
package generator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// MinPayloadSize is the smallest target a payload is padded to.
	MinPayloadSize = 256
	// MaxPayloadSize is the largest target a payload is padded to.
	MaxPayloadSize = 65535

	paddingToken = "_LOAD_TEST_PADDING_DATA_"

	loadLen     = 50
	loadMax     = 10000
	randomLen   = 200
	sequenceLen = 30
	sequenceMax = 1000

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// payloadBlob is the structure serialized into the record's data field.
type payloadBlob struct {
	Load      []int     `json:"load"`
	Timestamp string    `json:"timestamp"`
	Size      int       `json:"size"`
	Random    string    `json:"random"`
	Sequence  []float64 `json:"sequence"`
	Metadata  string    `json:"metadata"`
}

// ClampPayloadSize bounds a requested payload size to
// [MinPayloadSize, MaxPayloadSize].
func ClampPayloadSize(size int) int {
	if size > MaxPayloadSize {
		return MaxPayloadSize
	}
	if size < MinPayloadSize {
		return MinPayloadSize
	}
	return size
}

// Payload returns a base64-encoded JSON blob whose decoded length is at least
// the clamped target size.
func (g *Generator) Payload(targetSize int) string {
	targetSize = ClampPayloadSize(targetSize)
	now := g.now()

	blob := payloadBlob{
		Load:      make([]int, loadLen),
		Timestamp: formatTimestamp(now),
		Size:      targetSize,
		Random:    g.randomString(randomLen),
		Sequence:  make([]float64, sequenceLen),
		Metadata:  fmt.Sprintf("generated_at_%d_device_simulation_data_for_load_testing", now.UnixMilli()),
	}
	for i := range blob.Load {
		blob.Load[i] = g.intRange(1, loadMax)
	}
	for i := range blob.Sequence {
		blob.Sequence[i] = g.floatRange(0, sequenceMax)
	}

	encoded := mustMarshal(blob)

	// The padding token needs no JSON escaping, so each appended byte grows
	// the serialized form by exactly one byte. The loop only repeats if that
	// ever stops holding.
	for len(encoded) < targetSize {
		blob.Metadata += padding(targetSize - len(encoded))
		encoded = mustMarshal(blob)
	}

	return base64.StdEncoding.EncodeToString(encoded)
}

// padding returns n bytes of the repeating padding token.
func padding(n int) string {
	repeats := (n + len(paddingToken) - 1) / len(paddingToken)
	return strings.Repeat(paddingToken, repeats)[:n]
}

func (g *Generator) randomString(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(alphanumeric[g.src.IntN(len(alphanumeric))])
	}
	return sb.String()
}

// intRange draws uniformly from the closed interval [lo, hi].
func (g *Generator) intRange(lo, hi int) int {
	return lo + g.src.IntN(hi-lo+1)
}

// floatRange draws uniformly from [lo, hi) and rounds to two decimals.
func (g *Generator) floatRange(lo, hi float64) float64 {
	return round2(g.src.Float64()*(hi-lo) + lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// mustMarshal serializes a payloadBlob. The blob holds only strings, ints and
// finite floats, so encoding cannot fail.
func mustMarshal(blob payloadBlob) []byte {
	data, err := json.Marshal(blob)
	if err != nil {
		panic(fmt.Sprintf("generator: marshal payload: %v", err))
	}
	return data
}
