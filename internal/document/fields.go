package document

import (
	"encoding/json"
	"math"

	"github.com/edunotas/edunotas-api/internal/models"
)

type object map[string]json.RawMessage

func decodeObject(raw json.RawMessage) (object, bool) {
	var o object
	if len(raw) == 0 || json.Unmarshal(raw, &o) != nil || o == nil {
		return nil, false
	}
	return o, true
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	var a []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &a) != nil || a == nil {
		return nil, false
	}
	return a, true
}

func (o object) number(key string) (float64, bool) {
	raw, ok := o[key]
	if !ok {
		return 0, false
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// count reads a non-negative whole number, flooring fractions.
func (o object) count(key string, fallback int) int {
	f, ok := o.number(key)
	if !ok || f < 0 || f > math.MaxInt32 {
		return fallback
	}
	return int(math.Floor(f))
}

// minutes reads a per-mark cost, capped at models.MaxMinutesPerPoint.
func (o object) minutes(key string, fallback int) int {
	n := o.count(key, fallback)
	if n > models.MaxMinutesPerPoint {
		return models.MaxMinutesPerPoint
	}
	return n
}

func (o object) millis(key string, fallback int64) int64 {
	f, ok := o.number(key)
	if !ok || f < 0 || f > math.MaxInt64/2 {
		return fallback
	}
	return int64(math.Floor(f))
}

func (o object) str(key string) (string, bool) {
	raw, ok := o[key]
	if !ok {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

func (o object) boolean(key string, fallback bool) bool {
	raw, ok := o[key]
	if !ok {
		return fallback
	}
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return fallback
	}
	return b
}

// counts decodes a map of per-class filter values, dropping invalid entries.
func (o object) counts(key string) map[string]int {
	out := map[string]int{}
	inner, ok := decodeObject(o[key])
	if !ok {
		return out
	}
	for id := range inner {
		if n := inner.count(id, -1); n >= 0 {
			out[id] = n
		}
	}
	return out
}
