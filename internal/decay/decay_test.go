package decay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/models"
)

var fiveMinutes = Config{NegMsPerPoint: 5 * msPerMinute, PosMsPerPoint: 5 * msPerMinute}

func TestRemainingIsCountTimesCost(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 40} {
		for _, m := range []int64{0, 1, 60_000, 300_000} {
			s := &models.Student{Count: n}
			assert.Equal(t, int64(n)*m, Remaining(s, Config{NegMsPerPoint: m, PosMsPerPoint: m}))
		}
	}
}

func TestConfigFromSettingsClampsNegativeMinutes(t *testing.T) {
	cfg := ConfigFromSettings(models.DecaySettings{NegMinutesPerPoint: 3, PosMinutesPerPoint: -2})
	assert.Equal(t, int64(180_000), cfg.NegMsPerPoint)
	assert.Equal(t, int64(0), cfg.PosMsPerPoint)
}

func TestConfigFromSettingsCapsHugeMinutes(t *testing.T) {
	cfg := ConfigFromSettings(models.DecaySettings{NegMinutesPerPoint: 2_000_000_000, PosMinutesPerPoint: models.MaxMinutesPerPoint})
	assert.Equal(t, int64(models.MaxMinutesPerPoint)*msPerMinute, cfg.NegMsPerPoint)
	assert.Equal(t, cfg.NegMsPerPoint, cfg.PosMsPerPoint)

	s := &models.Student{Count: 200_000}
	assert.Equal(t, int64(200_000)*cfg.NegMsPerPoint, Remaining(s, cfg))
}

func TestPositiveMarksNeverIncreaseRemaining(t *testing.T) {
	s := &models.Student{Count: 3}
	prev := Remaining(s, fiveMinutes)
	for i := 0; i < 5; i++ {
		AddPositive(s, int64(i))
		cur := Remaining(s, fiveMinutes)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, int64(0), prev)
	assert.Equal(t, 5, s.PositiveCount)
	assert.Len(t, s.Events, 5)
}

func TestStreakStartResetsSpentTime(t *testing.T) {
	s := &models.Student{Count: 0, SpentMs: 99_999}
	AddNegative(s, 1)
	assert.Equal(t, int64(0), s.SpentMs)
	assert.Equal(t, 1, s.Count)

	s.SpentMs = 1_000
	AddNegative(s, 2)
	assert.Equal(t, int64(1_000), s.SpentMs, "an active streak keeps its spent time")
	assert.Equal(t, 2, s.Count)
	require.Len(t, s.Events, 2)
	assert.Equal(t, models.MarkNegative, s.Events[1].Kind)
}

func TestTickOnlyBurnsActiveStreaks(t *testing.T) {
	active := &models.Student{ID: "a", Count: 1}
	idle := &models.Student{ID: "b", Count: 0, PositiveCount: 2}
	class := &models.Class{Students: []*models.Student{active, idle}}

	Tick(class, 1_500)
	Tick(class, -10)
	assert.Equal(t, int64(1_500), active.SpentMs)
	assert.Equal(t, int64(0), idle.SpentMs)
}

func TestEmptyClassIsNoop(t *testing.T) {
	class := &models.Class{}
	Tick(class, 1_000)
	assert.Equal(t, 0, ExpireIfDue(class, fiveMinutes))
	assert.Equal(t, 0, ExpireIfDue(nil, fiveMinutes))
}

func TestExpireIfDueIsIdempotent(t *testing.T) {
	due := &models.Student{ID: "due", Count: 1, PositiveCount: 4, SpentMs: 5 * msPerMinute}
	pending := &models.Student{ID: "pending", Count: 2, SpentMs: msPerMinute}
	class := &models.Class{Students: []*models.Student{due, pending}}

	assert.Equal(t, 1, ExpireIfDue(class, fiveMinutes))
	assert.Equal(t, 0, due.Count)
	assert.Equal(t, int64(0), due.SpentMs)
	assert.Equal(t, 4, due.PositiveCount, "positive marks survive expiry")
	assert.Equal(t, 2, pending.Count)

	snapshot := class.Clone()
	assert.Equal(t, 0, ExpireIfDue(class, fiveMinutes))
	assert.Equal(t, snapshot, class)
}

type fakeWall struct{ now time.Time }

func (f *fakeWall) Now() time.Time { return f.now }

func (f *fakeWall) Add(d time.Duration) { f.now = f.now.Add(d) }

func newWall() *fakeWall {
	return &fakeWall{now: time.UnixMilli(1_700_000_000_000)}
}

func stateWith(students ...*models.Student) *models.AppState {
	return &models.AppState{
		Classes: map[string]*models.Class{"clase_01": {Name: "Clase 1", Students: students}},
		UI:      models.UISettings{Decay: models.DecaySettings{NegMinutesPerPoint: 5, PosMinutesPerPoint: 5}},
	}
}

func TestRemainingMonotonicWhileRunningAndConstantWhilePaused(t *testing.T) {
	wall := newWall()
	s := &models.Student{ID: "s", Count: 3}
	state := stateWith(s)
	clock := NewClock(&state.UI.Clock, wall.Now)
	clock.Resume()

	cfg := ConfigFromSettings(state.UI.Decay)
	prev := Remaining(s, cfg)
	for i := 0; i < 10; i++ {
		wall.Add(30 * time.Second)
		Sync(state, clock)
		cur := Remaining(s, cfg)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, int64(15*msPerMinute-5*msPerMinute), prev)

	PauseAndSync(state, clock)
	frozen := clock.Now()
	paused := Remaining(s, cfg)
	wall.Add(2 * time.Hour)
	Sync(state, clock)
	assert.Equal(t, paused, Remaining(s, cfg))
	assert.Equal(t, frozen, clock.Now())
	assert.False(t, clock.Running())
}

func TestResumeAfterLongGapAppliesWholeGapOnce(t *testing.T) {
	wall := newWall()
	s := &models.Student{ID: "s", Count: 30}
	state := stateWith(s)
	clock := NewClock(&state.UI.Clock, wall.Now)
	clock.Resume()

	// process down for 40 minutes while the clock kept running
	wall.Add(40 * time.Minute)
	elapsed, expired := Sync(state, clock)
	assert.Equal(t, int64(40*msPerMinute), elapsed)
	assert.Equal(t, 0, expired)
	assert.Equal(t, int64(40*msPerMinute), s.SpentMs)
}

func TestPausedGapNeverDecays(t *testing.T) {
	wall := newWall()
	s := &models.Student{ID: "s", Count: 1}
	state := stateWith(s)
	clock := NewClock(&state.UI.Clock, wall.Now)
	clock.Resume()

	wall.Add(time.Minute)
	PauseAndSync(state, clock)
	assert.Equal(t, int64(msPerMinute), s.SpentMs)

	wall.Add(3 * time.Hour)
	clock.Resume()
	wall.Add(time.Minute)
	Sync(state, clock)
	assert.Equal(t, int64(2*msPerMinute), s.SpentMs)
}

func TestSyncExpiresFinishedStreaks(t *testing.T) {
	wall := newWall()
	s := &models.Student{ID: "s", Count: 1}
	state := stateWith(s)
	clock := NewClock(&state.UI.Clock, wall.Now)
	clock.Resume()

	wall.Add(5 * time.Minute)
	_, expired := Sync(state, clock)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, int64(0), s.SpentMs)
}

func TestClockIgnoresWallRegression(t *testing.T) {
	wall := newWall()
	state := &models.ClockState{}
	clock := NewClock(state, wall.Now)
	clock.Resume()
	wall.Add(-time.Minute)
	assert.Equal(t, int64(0), clock.Advance())
}
