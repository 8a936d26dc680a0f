package document

import (
	"encoding/json"
	"regexp"

	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/noise"
)

const NoiseVersion = 1

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// DefaultColors are the traffic light colors of a fresh configuration.
var DefaultColors = models.NoiseColors{Green: "#22c55e", Amber: "#f59e0b", Red: "#ef4444"}

// DefaultNoise returns the noise configuration used on first run.
func DefaultNoise() models.NoiseSettings {
	return models.NoiseSettings{
		Version:     NoiseVersion,
		GreenMax:    noise.DefaultGreenMax,
		RedMin:      noise.DefaultRedMin,
		Gain:        noise.DefaultGain,
		VisualScale: 1,
		Colors:      DefaultColors,
	}
}

// ValidColor reports whether s is a #rgb or #rrggbb color.
func ValidColor(s string) bool {
	return hexColor.MatchString(s)
}

// MigrateNoise decodes a persisted noise configuration field by field.
func MigrateNoise(raw []byte) models.NoiseSettings {
	s := DefaultNoise()
	o, ok := decodeObject(raw)
	if !ok {
		return s
	}

	if v, ok := o.number("greenMax"); ok && v >= 0 && v <= noise.MaxLevel {
		s.GreenMax = v
	}
	if v, ok := o.number("redMin"); ok && v >= 0 && v <= noise.MaxLevel {
		s.RedMin = v
	}
	t := noise.Normalize(noise.ThresholdsOf(s))
	s.GreenMax, s.RedMin = t.GreenMax, t.RedMin

	if v, ok := o.number("gain"); ok {
		s.Gain = noise.ClampGain(v)
	}
	if v, ok := o.number("visualScale"); ok && v > 0 {
		s.VisualScale = v
	}

	if cal, ok := decodeObject(o["calibration"]); ok {
		s.Calibration.Silence = level(cal, "silence")
		if s.Calibration.Silence != nil {
			s.Calibration.Talk = level(cal, "talk")
		}
	}

	if colors, ok := decodeObject(o["colors"]); ok {
		pick := func(key, fallback string) string {
			if c, ok := colors.str(key); ok && ValidColor(c) {
				return c
			}
			return fallback
		}
		s.Colors = models.NoiseColors{
			Green: pick("green", DefaultColors.Green),
			Amber: pick("amber", DefaultColors.Amber),
			Red:   pick("red", DefaultColors.Red),
		}
	}
	return s
}

func level(o object, key string) *float64 {
	v, ok := o.number(key)
	if !ok || v < 0 || v > noise.MaxLevel {
		return nil
	}
	return &v
}

// MigrateWorkMode accepts either {"mode": "..."} or a bare string.
func MigrateWorkMode(raw []byte) models.WorkModeSettings {
	def := models.WorkModeSettings{Mode: models.WorkModeIndividual}

	var mode string
	if o, ok := decodeObject(raw); ok {
		mode, _ = o.str("mode")
	} else if json.Unmarshal(raw, &mode) != nil {
		return def
	}
	if m := models.WorkMode(mode); m.Valid() {
		return models.WorkModeSettings{Mode: m}
	}
	return def
}
