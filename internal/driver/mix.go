package driver

import (
	"errors"
	"fmt"

	"github.com/FairForge/sensorbench/internal/config"
)

// Scenario names one kind of request the driver can send.
type Scenario string

const (
	ScenarioHealth     Scenario = "health"
	ScenarioSensorData Scenario = "sensor_data"
	ScenarioSensorRW   Scenario = "sensor_rw"
	ScenarioBatch      Scenario = "batch_sensor_rw"
	ScenarioStats      Scenario = "stats"
)

// Scenarios lists every scenario in mix order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioHealth, ScenarioSensorData, ScenarioSensorRW, ScenarioBatch, ScenarioStats}
}

// ErrEmptyMix is returned by NewMix when no scenario has a positive weight.
var ErrEmptyMix = errors.New("scenario mix has no positive weight")

type mixEntry struct {
	scenario   Scenario
	cumulative float64
}

// Mix picks scenarios in proportion to their weights.
type Mix struct {
	entries []mixEntry
	total   float64
}

// NewMix builds a Mix from configured weights. Zero weights are skipped.
func NewMix(cfg config.MixConfig) (*Mix, error) {
	weights := map[Scenario]float64{
		ScenarioHealth:     cfg.Health,
		ScenarioSensorData: cfg.SensorData,
		ScenarioSensorRW:   cfg.SensorRW,
		ScenarioBatch:      cfg.Batch,
		ScenarioStats:      cfg.Stats,
	}

	m := &Mix{}
	for _, s := range Scenarios() {
		w := weights[s]
		if w < 0 {
			return nil, fmt.Errorf("scenario %s: negative weight %g", s, w)
		}
		if w == 0 {
			continue
		}
		m.total += w
		m.entries = append(m.entries, mixEntry{scenario: s, cumulative: m.total})
	}
	if len(m.entries) == 0 {
		return nil, ErrEmptyMix
	}
	return m, nil
}

// Pick maps r in [0, 1) to a scenario.
func (m *Mix) Pick(r float64) Scenario {
	target := r * m.total
	for _, e := range m.entries {
		if target < e.cumulative {
			return e.scenario
		}
	}
	return m.entries[len(m.entries)-1].scenario
}

// Share returns the fraction of requests that go to s.
func (m *Mix) Share(s Scenario) float64 {
	prev := 0.0
	for _, e := range m.entries {
		if e.scenario == s {
			return (e.cumulative - prev) / m.total
		}
		prev = e.cumulative
	}
	return 0
}
