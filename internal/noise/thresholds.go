package noise

import (
	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

const (
	// MinGap is the minimum width of the amber band.
	MinGap = 3.0
	// TalkMargin is added to the talk sample to derive the red boundary.
	TalkMargin = 6.0

	DefaultGreenMax = 40.0
	DefaultRedMin   = 60.0
)

// Zone is the traffic light classification of a level.
type Zone string

const (
	ZoneGreen Zone = "green"
	ZoneAmber Zone = "amber"
	ZoneRed   Zone = "red"
)

// Boundary names the threshold being edited.
type Boundary string

const (
	BoundaryGreen Boundary = "green"
	BoundaryRed   Boundary = "red"
)

// Valid reports whether the boundary is known.
func (b Boundary) Valid() bool {
	return b == BoundaryGreen || b == BoundaryRed
}

// Thresholds are the two zone boundaries on the display scale.
type Thresholds struct {
	GreenMax float64 `json:"greenMax"`
	RedMin   float64 `json:"redMin"`
}

// Classify maps a level to its zone. Boundaries belong to the upper zone.
func Classify(level float64, t Thresholds) Zone {
	switch {
	case level >= t.RedMin:
		return ZoneRed
	case level >= t.GreenMax:
		return ZoneAmber
	default:
		return ZoneGreen
	}
}

// Adjust moves one boundary to level and pushes the opposite boundary just
// far enough to keep the amber band at least MinGap wide. When the opposite
// boundary would leave the scale, the edited one gives way instead.
func Adjust(t Thresholds, edited Boundary, level float64) Thresholds {
	level = clamp(level, 0, MaxLevel)
	switch edited {
	case BoundaryRed:
		t.RedMin = level
		if t.GreenMax > t.RedMin-MinGap {
			t.GreenMax = t.RedMin - MinGap
		}
		if t.GreenMax < 0 {
			t.GreenMax = 0
			t.RedMin = MinGap
		}
	default:
		t.GreenMax = level
		if t.RedMin < t.GreenMax+MinGap {
			t.RedMin = t.GreenMax + MinGap
		}
		if t.RedMin > MaxLevel {
			t.RedMin = MaxLevel
			t.GreenMax = MaxLevel - MinGap
		}
	}
	return t
}

// Normalize clamps both boundaries and restores the minimum gap by moving redMin.
func Normalize(t Thresholds) Thresholds {
	t.RedMin = clamp(t.RedMin, 0, MaxLevel)
	return Adjust(t, BoundaryGreen, t.GreenMax)
}

// ThresholdsOf extracts the boundaries of a settings document.
func ThresholdsOf(s models.NoiseSettings) Thresholds {
	return Thresholds{GreenMax: s.GreenMax, RedMin: s.RedMin}
}

func apply(s *models.NoiseSettings, t Thresholds) {
	s.GreenMax = t.GreenMax
	s.RedMin = t.RedMin
}

// SetThreshold applies a manual slider edit to the settings.
func SetThreshold(s *models.NoiseSettings, edited Boundary, level float64) {
	apply(s, Adjust(ThresholdsOf(*s), edited, level))
}

// CalibrateSilence stores the silence sample and discards any talk sample,
// so a calibration pass always runs silence first.
func CalibrateSilence(s *models.NoiseSettings, level float64) {
	v := round1(clamp(level, 0, MaxLevel))
	s.Calibration.Silence = &v
	s.Calibration.Talk = nil
}

// CalibrateTalk stores the talk sample and derives both thresholds from the
// silence/talk pair: greenMax at the midpoint, redMin at talk + TalkMargin.
func CalibrateTalk(s *models.NoiseSettings, level float64) error {
	if s.Calibration.Silence == nil {
		return appErrors.ErrSilenceRequired
	}
	talk := round1(clamp(level, 0, MaxLevel))
	s.Calibration.Talk = &talk

	silence := *s.Calibration.Silence
	apply(s, Normalize(Thresholds{
		GreenMax: round1((silence + talk) / 2),
		RedMin:   talk + TalkMargin,
	}))
	return nil
}
