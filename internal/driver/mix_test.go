package driver

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/sensorbench/internal/config"
)

func TestNewMix_DefaultWeights(t *testing.T) {
	m, err := NewMix(config.Default().Mix)
	require.NoError(t, err)

	tests := []struct {
		r    float64
		want Scenario
	}{
		{0, ScenarioHealth},
		{0.049, ScenarioHealth},
		{0.05, ScenarioSensorData},
		{0.44, ScenarioSensorData},
		{0.46, ScenarioSensorRW},
		{0.79, ScenarioSensorRW},
		{0.81, ScenarioBatch},
		{0.94, ScenarioBatch},
		{0.96, ScenarioStats},
		{0.9999, ScenarioStats},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Pick(tt.r), "r=%v", tt.r)
	}

	assert.InDelta(t, 0.40, m.Share(ScenarioSensorData), 1e-9)
	assert.InDelta(t, 0.15, m.Share(ScenarioBatch), 1e-9)
}

func TestNewMix_SkipsZeroWeights(t *testing.T) {
	m, err := NewMix(config.MixConfig{SensorRW: 2, Stats: 2})
	require.NoError(t, err)

	assert.Equal(t, ScenarioSensorRW, m.Pick(0))
	assert.Equal(t, ScenarioStats, m.Pick(0.5))
	assert.Zero(t, m.Share(ScenarioHealth))
	assert.InDelta(t, 0.5, m.Share(ScenarioStats), 1e-9)
}

func TestNewMix_Errors(t *testing.T) {
	_, err := NewMix(config.MixConfig{})
	assert.ErrorIs(t, err, ErrEmptyMix)

	_, err = NewMix(config.MixConfig{Health: 1, Batch: -1})
	assert.Error(t, err)
}

func TestMix_Distribution(t *testing.T) {
	m, err := NewMix(config.Default().Mix)
	require.NoError(t, err)

	src := rand.New(rand.NewPCG(11, 11))
	const trials = 20000
	counts := make(map[Scenario]int)
	for i := 0; i < trials; i++ {
		counts[m.Pick(src.Float64())]++
	}

	for _, s := range Scenarios() {
		assert.InDelta(t, m.Share(s), float64(counts[s])/trials, 0.02, s)
	}
}
