package decay

import (
	"time"

	"github.com/edunotas/edunotas-api/internal/models"
)

// Clock is the global pause/resume clock shared by every class. It mutates
// the persisted state in place so that the effective time survives reloads.
type Clock struct {
	state *models.ClockState
	wall  func() time.Time
}

// NewClock wraps the persisted clock state. A nil wall source uses time.Now.
func NewClock(state *models.ClockState, wall func() time.Time) *Clock {
	if wall == nil {
		wall = time.Now
	}
	return &Clock{state: state, wall: wall}
}

func (c *Clock) wallMs() int64 {
	return c.wall().UnixMilli()
}

// Running reports whether decay is currently accruing.
func (c *Clock) Running() bool {
	return c.state.Running
}

// Now returns the effective time in unix milliseconds: wall time while
// running, the frozen instant while paused.
func (c *Clock) Now() int64 {
	if c.state.Running {
		return c.wallMs()
	}
	return c.state.FrozenAtMs
}

// Advance returns the milliseconds elapsed since the last anchor and moves
// the anchor to now. The whole gap is returned, however long, so a process
// that was down while the clock ran catches up in one step. Paused clocks
// and wall-clock regressions yield zero.
func (c *Clock) Advance() int64 {
	if !c.state.Running {
		return 0
	}
	now := c.wallMs()
	elapsed := now - c.state.LastTickMs
	c.state.LastTickMs = now
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Pause freezes the effective time. It returns the elapsed time that still
// has to be applied before freezing; callers tick with it.
func (c *Clock) Pause() int64 {
	if !c.state.Running {
		return 0
	}
	elapsed := c.Advance()
	c.state.Running = false
	c.state.FrozenAtMs = c.state.LastTickMs
	return elapsed
}

// Resume starts accruing again from the current wall time; the paused gap
// never counts.
func (c *Clock) Resume() {
	if c.state.Running {
		return
	}
	now := c.wallMs()
	c.state.Running = true
	c.state.LastTickMs = now
	c.state.FrozenAtMs = now
}
