// Package decay turns accumulated negative marks into a remaining detention
// time that burns down while the global clock runs.
package decay

import (
	"github.com/edunotas/edunotas-api/internal/models"
)

const msPerMinute int64 = 60_000

// DefaultMinutesPerPoint applies when the configuration is missing.
const DefaultMinutesPerPoint = 5

// Config is the per-point cost in milliseconds.
type Config struct {
	NegMsPerPoint int64
	PosMsPerPoint int64
}

// ConfigFromSettings converts whole minutes to milliseconds, clamping to
// [0, models.MaxMinutesPerPoint].
func ConfigFromSettings(s models.DecaySettings) Config {
	return Config{
		NegMsPerPoint: minutesToMs(s.NegMinutesPerPoint),
		PosMsPerPoint: minutesToMs(s.PosMinutesPerPoint),
	}
}

func minutesToMs(minutes int) int64 {
	if minutes < 0 {
		return 0
	}
	if minutes > models.MaxMinutesPerPoint {
		minutes = models.MaxMinutesPerPoint
	}
	return int64(minutes) * msPerMinute
}

// Remaining is the time a student still has to serve, never negative.
func Remaining(s *models.Student, cfg Config) int64 {
	total := int64(s.Count)*cfg.NegMsPerPoint - s.SpentMs - int64(s.PositiveCount)*cfg.PosMsPerPoint
	if total < 0 {
		return 0
	}
	return total
}

// AddNegative records a negative mark. A mark that starts a new streak
// resets the spent time; a mark on an active streak extends its budget.
func AddNegative(s *models.Student, atMs int64) {
	if s.Count <= 0 {
		s.SpentMs = 0
	}
	s.Count++
	s.Events = append(s.Events, models.MarkEvent{At: atMs, Kind: models.MarkNegative})
}

// AddPositive records a positive mark. Its offset flows through Remaining.
func AddPositive(s *models.Student, atMs int64) {
	s.PositiveCount++
	s.Events = append(s.Events, models.MarkEvent{At: atMs, Kind: models.MarkPositive})
}

// Tick burns elapsed time against every active streak in the class.
func Tick(c *models.Class, elapsedMs int64) {
	if c == nil || elapsedMs <= 0 {
		return
	}
	for _, s := range c.Students {
		if s.Count > 0 {
			s.SpentMs += elapsedMs
		}
	}
}

// ExpireIfDue clears streaks whose remaining time has run out and returns
// how many students were cleared. Positive counts and history stay.
func ExpireIfDue(c *models.Class, cfg Config) int {
	if c == nil {
		return 0
	}
	expired := 0
	for _, s := range c.Students {
		if s.Count > 0 && Remaining(s, cfg) <= 0 {
			s.Count = 0
			s.SpentMs = 0
			expired++
		}
	}
	return expired
}

// Sync applies the clock's pending elapsed time to every class and then
// expires what is due. It returns the elapsed ms and the expired count.
func Sync(state *models.AppState, clock *Clock) (int64, int) {
	elapsed := clock.Advance()
	return elapsed, settle(state, elapsed)
}

// PauseAndSync settles pending decay up to the pause instant and freezes the clock.
func PauseAndSync(state *models.AppState, clock *Clock) (int64, int) {
	elapsed := clock.Pause()
	return elapsed, settle(state, elapsed)
}

func settle(state *models.AppState, elapsed int64) int {
	cfg := ConfigFromSettings(state.UI.Decay)
	expired := 0
	for _, c := range state.Classes {
		Tick(c, elapsed)
		expired += ExpireIfDue(c, cfg)
	}
	return expired
}
