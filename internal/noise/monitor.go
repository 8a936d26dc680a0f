// Package noise classifies a smoothed microphone level into traffic light zones.
package noise

import "github.com/edunotas/edunotas-api/internal/models"

// Alpha is the exponential smoothing factor; low for a steady light.
const Alpha = 0.1

// Smoother is an exponential moving average seeded by its first sample.
type Smoother struct {
	value  float64
	seeded bool
}

// Update folds a raw sample in and returns the smoothed value.
func (s *Smoother) Update(raw float64) float64 {
	if !s.seeded {
		s.value = raw
		s.seeded = true
		return s.value
	}
	s.value += Alpha * (raw - s.value)
	return s.value
}

// Value returns the current smoothed value.
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset forgets the history.
func (s *Smoother) Reset() {
	s.value = 0
	s.seeded = false
}

// Reading is one classified sample.
type Reading struct {
	Level   float64 `json:"level"`
	DB      float64 `json:"db"`
	Zone    Zone    `json:"zone"`
	Changed bool    `json:"changed"`
}

// Monitor turns raw amplitude frames into zone readings. It reports a
// change only when the zone differs from the previous frame's zone.
type Monitor struct {
	smoother Smoother
	zone     Zone
}

// Observe processes one RMS amplitude frame under the given settings.
func (m *Monitor) Observe(rms float64, s models.NoiseSettings) Reading {
	raw := DBToLevel(AmplitudeToDB(rms, s.Gain), s.VisualScale)
	level := m.smoother.Update(raw)
	zone := Classify(level, ThresholdsOf(s))
	changed := zone != m.zone
	m.zone = zone
	return Reading{
		Level:   round1(level),
		DB:      round1(LevelToDB(level, s.VisualScale)),
		Zone:    zone,
		Changed: changed,
	}
}

// Level returns the current smoothed display level.
func (m *Monitor) Level() float64 {
	return m.smoother.Value()
}

// Zone returns the zone of the last frame, empty before the first one.
func (m *Monitor) Zone() Zone {
	return m.zone
}

// Reset clears smoothing and zone history, used when the microphone stops.
func (m *Monitor) Reset() {
	m.smoother.Reset()
	m.zone = ""
}
