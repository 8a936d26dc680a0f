package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/noise"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/kvstore"
)

type fakeMic struct {
	mu       sync.Mutex
	onFrame  func(float64)
	startErr error
	gate     chan struct{}
	starts   int
	stops    int
}

func (m *fakeMic) Start(onFrame func(float64)) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.onFrame = onFrame
	return nil
}

func (m *fakeMic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.onFrame = nil
	return nil
}

func (m *fakeMic) feed(rms float64) {
	m.mu.Lock()
	fn := m.onFrame
	m.mu.Unlock()
	if fn != nil {
		fn(rms)
	}
}

func newNoiseService(t *testing.T, store kvstore.Store, mic Microphone) *NoiseService {
	t.Helper()
	svc := NewNoiseService(newDocumentRepo(store), mic, nil, nil, nil)
	svc.wall = newFakeWall().Now
	require.NoError(t, svc.Load(context.Background()))
	t.Cleanup(svc.Close)
	return svc
}

func level(v float64) *float64 { return &v }

func TestNoiseServiceDefaults(t *testing.T) {
	svc := newNoiseService(t, kvstore.NewMemoryStore(), nil)
	status := svc.Status(context.Background())
	assert.Equal(t, 40.0, status.Settings.GreenMax)
	assert.Equal(t, 60.0, status.Settings.RedMin)
	assert.Equal(t, dto.MicOff, status.Mic)
	assert.Empty(t, status.Zone)
}

func TestNoiseServiceCalibrationPersists(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	svc := newNoiseService(t, store, nil)

	_, err := svc.CalibrateTalk(ctx, dto.CalibrateRequest{Level: level(40)})
	assert.ErrorIs(t, err, appErrors.ErrSilenceRequired)

	_, err = svc.CalibrateSilence(ctx, dto.CalibrateRequest{Level: level(10)})
	require.NoError(t, err)
	settings, err := svc.CalibrateTalk(ctx, dto.CalibrateRequest{Level: level(40)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, settings.GreenMax)
	assert.Equal(t, 46.0, settings.RedMin)

	reloaded := newNoiseService(t, store, nil)
	got := reloaded.Status(ctx).Settings
	assert.Equal(t, 25.0, got.GreenMax)
	require.NotNil(t, got.Calibration.Talk)
	assert.Equal(t, 40.0, *got.Calibration.Talk)
}

func TestNoiseServiceCalibrateFromLiveLevel(t *testing.T) {
	ctx := context.Background()
	svc := newNoiseService(t, kvstore.NewMemoryStore(), nil)
	svc.Observe(0)

	settings, err := svc.CalibrateSilence(ctx, dto.CalibrateRequest{})
	require.NoError(t, err)
	require.NotNil(t, settings.Calibration.Silence)
	assert.Equal(t, 0.0, *settings.Calibration.Silence)
}

func TestNoiseServiceThresholdAndValidation(t *testing.T) {
	ctx := context.Background()
	svc := newNoiseService(t, kvstore.NewMemoryStore(), nil)

	settings, err := svc.SetThreshold(ctx, dto.ThresholdRequest{Boundary: "green", Level: 70})
	require.NoError(t, err)
	assert.Equal(t, 70.0, settings.GreenMax)
	assert.Equal(t, 73.0, settings.RedMin)

	_, err = svc.SetThreshold(ctx, dto.ThresholdRequest{Boundary: "blue", Level: 10})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.SetGain(ctx, dto.GainRequest{Gain: 9})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.SetColors(ctx, dto.ColorsRequest{Green: "green", Amber: "#fff", Red: "#000"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	settings, err = svc.SetGain(ctx, dto.GainRequest{Gain: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, settings.Gain)
	assert.Equal(t, 70.0, settings.GreenMax)
}

func TestNoiseServiceFailedSaveKeepsSettings(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	svc := newNoiseService(t, store, nil)

	store.FailPut = errors.New("read-only")
	_, err := svc.SetColors(ctx, dto.ColorsRequest{Green: "#0f0", Amber: "#ff0", Red: "#f00"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, "#22c55e", svc.Status(ctx).Settings.Colors.Green)
}

func TestNoiseServicePublishesZoneChanges(t *testing.T) {
	svc := newNoiseService(t, kvstore.NewMemoryStore(), nil)
	events, cancel := svc.Subscribe()
	defer cancel()

	first := svc.Observe(0)
	assert.True(t, first.Changed)
	assert.Equal(t, noise.ZoneGreen, first.Zone)
	again := svc.Observe(0)
	assert.False(t, again.Changed)

	select {
	case ev := <-events:
		assert.Equal(t, "green", ev.Zone)
		assert.Equal(t, "#22c55e", ev.Color)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestNoiseServiceMicLifecycle(t *testing.T) {
	ctx := context.Background()
	mic := &fakeMic{}
	svc := newNoiseService(t, kvstore.NewMemoryStore(), mic)

	status, err := svc.EnableMic(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.MicOn, status.Mic)
	_, err = svc.EnableMic(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mic.starts)

	mic.feed(1)
	assert.Equal(t, "red", svc.Status(ctx).Zone)
	assert.Equal(t, "red", svc.Current().Zone)

	status, err = svc.DisableMic(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.MicOff, status.Mic)
	assert.Empty(t, status.Zone)
	_, err = svc.DisableMic(ctx)
	require.NoError(t, err)
}

func TestNoiseServiceConcurrentEnableStartsOnce(t *testing.T) {
	ctx := context.Background()
	mic := &fakeMic{gate: make(chan struct{})}
	svc := newNoiseService(t, kvstore.NewMemoryStore(), mic)

	done := make(chan error, 1)
	go func() {
		_, err := svc.EnableMic(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.starting
	}, time.Second, 5*time.Millisecond)

	_, err := svc.EnableMic(ctx)
	require.NoError(t, err)

	close(mic.gate)
	require.NoError(t, <-done)
	status := svc.Status(ctx)
	assert.Equal(t, dto.MicOn, status.Mic)

	mic.mu.Lock()
	defer mic.mu.Unlock()
	assert.Equal(t, 1, mic.starts)
}

func TestNoiseServiceMicUnavailable(t *testing.T) {
	ctx := context.Background()

	none := newNoiseService(t, kvstore.NewMemoryStore(), nil)
	status, err := none.EnableMic(ctx)
	assert.ErrorIs(t, err, appErrors.ErrMicUnavailable)
	assert.Equal(t, dto.MicOff, status.Mic)
	assert.NotEmpty(t, status.Message)

	broken := newNoiseService(t, kvstore.NewMemoryStore(), &fakeMic{startErr: errors.New("permission denied")})
	status, err = broken.EnableMic(ctx)
	assert.ErrorIs(t, err, appErrors.ErrMicUnavailable)
	assert.Equal(t, dto.MicOff, status.Mic)
	assert.Contains(t, status.Message, "permission denied")
}
