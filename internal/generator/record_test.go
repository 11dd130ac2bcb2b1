package generator

import (
	"encoding/json"
	"math/rand/v2"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deviceIDPattern = regexp.MustCompile(`^factory_\d{3}_device_\d{3}$`)

func assertCommonFields(t *testing.T, deviceID, metric, timestamp string, priority int, data string) {
	t.Helper()
	assert.Regexp(t, deviceIDPattern, deviceID)
	assert.Contains(t, metricNames, metric)
	assert.GreaterOrEqual(t, priority, 1)
	assert.LessOrEqual(t, priority, 3)
	assert.NotEmpty(t, data)

	_, err := time.Parse(time.RFC3339, timestamp)
	assert.NoError(t, err, "timestamp %q", timestamp)
}

func TestNew_Defaults(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Equal(t, DefaultSource(), g.src)

	g = New(WithSource(nil), WithClock(nil))
	assert.Equal(t, DefaultSource(), g.src)
	assert.NotNil(t, g.now)
}

func TestSingleRecord(t *testing.T) {
	g := seeded(10)
	allowed := map[int]bool{512: true, 2048: true, 8192: true, 20480: true}

	for i := 0; i < 200; i++ {
		rec := g.SingleRecord()
		assertCommonFields(t, rec.DeviceID, rec.MetricName, rec.Timestamp, rec.Priority, rec.Data)
		assert.GreaterOrEqual(t, rec.Value, 10.0)
		assert.LessOrEqual(t, rec.Value, 150.0)

		raw := decodePayload(t, rec.Data)
		var blob payloadBlob
		require.NoError(t, json.Unmarshal(raw, &blob))
		assert.True(t, allowed[blob.Size], "unexpected band %d", blob.Size)
		assert.GreaterOrEqual(t, len(raw), blob.Size)
	}
}

func TestSingleRecord_BandDistribution(t *testing.T) {
	g := seeded(11)
	counts := make(map[int]int)
	const trials = 10000

	for i := 0; i < trials; i++ {
		counts[g.bandSize()]++
	}

	require.Len(t, counts, len(payloadBands))
	for _, band := range payloadBands {
		share := float64(counts[band.Size]) / trials
		assert.InDelta(t, band.Weight, share, 0.03, "band %d", band.Size)
	}
	assert.Zero(t, counts[1024], "1024 is not a band")
}

func TestPayloadBands_SumToOne(t *testing.T) {
	var total float64
	for _, band := range PayloadBands() {
		total += band.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRWRecord(t *testing.T) {
	g := seeded(12)

	for i := 0; i < 200; i++ {
		rec := g.RWRecord()
		assertCommonFields(t, rec.DeviceID, rec.MetricName, rec.Timestamp, rec.Priority, rec.Data)
		assert.GreaterOrEqual(t, rec.NewValue, 20.0)
		assert.LessOrEqual(t, rec.NewValue, 140.0)
		assert.GreaterOrEqual(t, len(decodePayload(t, rec.Data)), rwMinPayload)
	}
}

func TestBatchRecord_Length(t *testing.T) {
	g := seeded(13)
	seen := make(map[int]bool)

	for i := 0; i < 1000; i++ {
		n := len(g.BatchRecord().Data)
		require.GreaterOrEqual(t, n, batchMinLen)
		require.LessOrEqual(t, n, batchMaxLen)
		seen[n] = true
	}

	assert.Len(t, seen, batchMaxLen-batchMinLen+1, "every length in [2,5] should occur")
}

func TestBatchRecord_Items(t *testing.T) {
	g := seeded(14)

	for i := 0; i < 50; i++ {
		for _, item := range g.BatchRecord().Data {
			assertCommonFields(t, item.DeviceID, item.MetricName, item.Timestamp, item.Priority, item.Data)
			assert.GreaterOrEqual(t, item.NewValue, 20.0)
			assert.LessOrEqual(t, item.NewValue, 140.0)
			assert.GreaterOrEqual(t, len(decodePayload(t, item.Data)), batchMinPayload)
		}
	}
}

func TestDeviceID_Range(t *testing.T) {
	g := seeded(15)
	re := regexp.MustCompile(`^factory_00([1-5])_device_(\d{3})$`)

	for i := 0; i < 1000; i++ {
		m := re.FindStringSubmatch(g.deviceID())
		require.NotNil(t, m)
		assert.NotEqual(t, "000", m[2])
		assert.LessOrEqual(t, m[2], "200")
	}
}

func TestTimestamp_WithinLastHour(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	g := New(
		WithSource(rand.New(rand.NewPCG(16, 16))),
		WithClock(func() time.Time { return fixed }),
	)

	for i := 0; i < 500; i++ {
		ts, err := time.Parse(time.RFC3339, g.timestamp())
		require.NoError(t, err)
		assert.False(t, ts.After(fixed))
		assert.True(t, ts.After(fixed.Add(-time.Hour)))
	}
}

func TestGenerator_DeterministicWithSeed(t *testing.T) {
	a := seeded(42).RWRecord()
	b := seeded(42).RWRecord()
	assert.Equal(t, a, b)

	c := seeded(43).RWRecord()
	assert.NotEqual(t, a, c)
}

func TestGenerator_ConcurrentDefaultSource(t *testing.T) {
	g := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec := g.BatchRecord()
				assert.GreaterOrEqual(t, len(rec.Data), batchMinLen)
			}
		}()
	}
	wg.Wait()
}
