package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/noise"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

// subscriberBuffer is how many events a slow stream client may lag behind
// before events are dropped for it.
const subscriberBuffer = 8

type noiseRepository interface {
	LoadNoise(ctx context.Context) (models.NoiseSettings, error)
	SaveNoise(ctx context.Context, settings models.NoiseSettings) error
}

// Microphone delivers RMS amplitude frames. Stop must be safe to call when
// already stopped.
type Microphone interface {
	Start(onFrame func(rms float64)) error
	Stop() error
}

// NoiseService owns the noise configuration and the live zone monitor.
type NoiseService struct {
	mu       sync.Mutex
	repo     noiseRepository
	settings models.NoiseSettings
	monitor  noise.Monitor
	mic      Microphone
	micOn    bool
	starting bool
	message  string

	subMu  sync.Mutex
	subs   map[int]chan dto.NoiseEvent
	nextID int

	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	wall      func() time.Time
}

// NewNoiseService constructs NoiseService. mic may be nil when the host has no capture support.
func NewNoiseService(repo noiseRepository, mic Microphone, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *NoiseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoiseService{
		repo:      repo,
		settings:  document.DefaultNoise(),
		mic:       mic,
		subs:      map[int]chan dto.NoiseEvent{},
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		wall:      time.Now,
	}
}

// Load reads the persisted configuration.
func (s *NoiseService) Load(ctx context.Context) error {
	settings, err := s.repo.LoadNoise(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load noise settings")
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Status returns the panel state.
func (s *NoiseService) Status(ctx context.Context) dto.NoiseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *NoiseService) statusLocked() dto.NoiseStatus {
	mic := dto.MicOff
	if s.micOn {
		mic = dto.MicOn
	}
	return dto.NoiseStatus{
		Settings: s.settings,
		Level:    s.monitor.Level(),
		Zone:     string(s.monitor.Zone()),
		Mic:      mic,
		Message:  s.message,
	}
}

// Observe classifies one amplitude frame and notifies subscribers when the
// zone changes.
func (s *NoiseService) Observe(rms float64) noise.Reading {
	s.mu.Lock()
	reading := s.monitor.Observe(rms, s.settings)
	colors := s.settings.Colors
	s.mu.Unlock()

	s.metrics.ObserveNoise(reading.Level, reading.Zone)
	if reading.Changed {
		s.publish(dto.NoiseEvent{
			Level: reading.Level,
			DB:    reading.DB,
			Zone:  string(reading.Zone),
			Color: colorFor(colors, reading.Zone),
			AtMs:  s.wall().UnixMilli(),
		})
	}
	return reading
}

// Sample feeds a frame received over HTTP.
func (s *NoiseService) Sample(ctx context.Context, req dto.SampleRequest) (noise.Reading, error) {
	if err := s.validator.Struct(req); err != nil {
		return noise.Reading{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rms must be between 0 and 1")
	}
	return s.Observe(req.RMS), nil
}

// Current returns the event describing the present zone, for new subscribers.
func (s *NoiseService) Current() dto.NoiseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	zone := s.monitor.Zone()
	return dto.NoiseEvent{
		Level: s.monitor.Level(),
		DB:    noise.LevelToDB(s.monitor.Level(), s.settings.VisualScale),
		Zone:  string(zone),
		Color: colorFor(s.settings.Colors, zone),
		AtMs:  s.wall().UnixMilli(),
	}
}

func colorFor(c models.NoiseColors, zone noise.Zone) string {
	switch zone {
	case noise.ZoneGreen:
		return c.Green
	case noise.ZoneAmber:
		return c.Amber
	case noise.ZoneRed:
		return c.Red
	default:
		return ""
	}
}

// Subscribe registers a zone change listener. The returned cancel function
// releases it and may be called more than once. The channel is closed on
// cancel or when the service closes.
func (s *NoiseService) Subscribe() (<-chan dto.NoiseEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan dto.NoiseEvent, subscriberBuffer)
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *NoiseService) publish(ev dto.NoiseEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("noise subscriber lagging, event dropped", zap.Int("subscriber", id))
		}
	}
}

// update applies fn to a copy of the settings and persists it.
func (s *NoiseService) update(ctx context.Context, fn func(*models.NoiseSettings) error) (models.NoiseSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	if s.settings.Calibration.Silence != nil {
		v := *s.settings.Calibration.Silence
		next.Calibration.Silence = &v
	}
	if s.settings.Calibration.Talk != nil {
		v := *s.settings.Calibration.Talk
		next.Calibration.Talk = &v
	}
	if err := fn(&next); err != nil {
		return models.NoiseSettings{}, err
	}
	if err := s.repo.SaveNoise(ctx, next); err != nil {
		s.logger.Error("failed to save noise settings", zap.Error(err))
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save noise settings")
	}
	s.settings = next
	return next, nil
}

// SetThreshold moves one boundary, pushing the other to keep the amber band.
func (s *NoiseService) SetThreshold(ctx context.Context, req dto.ThresholdRequest) (models.NoiseSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid threshold")
	}
	return s.update(ctx, func(ns *models.NoiseSettings) error {
		noise.SetThreshold(ns, noise.Boundary(req.Boundary), req.Level)
		return nil
	})
}

// SetGain changes the input multiplier; thresholds are untouched.
func (s *NoiseService) SetGain(ctx context.Context, req dto.GainRequest) (models.NoiseSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "gain must be between 0.25 and 4")
	}
	return s.update(ctx, func(ns *models.NoiseSettings) error {
		ns.Gain = noise.ClampGain(req.Gain)
		return nil
	})
}

// SetColors changes the traffic light colors.
func (s *NoiseService) SetColors(ctx context.Context, req dto.ColorsRequest) (models.NoiseSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "colors must be #rgb or #rrggbb")
	}
	for _, c := range []string{req.Green, req.Amber, req.Red} {
		if !document.ValidColor(c) {
			return models.NoiseSettings{}, appErrors.Clone(appErrors.ErrValidation, "colors must be #rgb or #rrggbb")
		}
	}
	return s.update(ctx, func(ns *models.NoiseSettings) error {
		ns.Colors = models.NoiseColors{Green: req.Green, Amber: req.Amber, Red: req.Red}
		return nil
	})
}

func (s *NoiseService) sampleLevel(req dto.CalibrateRequest) float64 {
	if req.Level != nil {
		return *req.Level
	}
	return s.monitor.Level()
}

// CalibrateSilence records the silence sample, from the request or the live level.
func (s *NoiseService) CalibrateSilence(ctx context.Context, req dto.CalibrateRequest) (models.NoiseSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calibration level")
	}
	return s.update(ctx, func(ns *models.NoiseSettings) error {
		noise.CalibrateSilence(ns, s.sampleLevel(req))
		return nil
	})
}

// CalibrateTalk records the talk sample and derives both thresholds.
func (s *NoiseService) CalibrateTalk(ctx context.Context, req dto.CalibrateRequest) (models.NoiseSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.NoiseSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calibration level")
	}
	return s.update(ctx, func(ns *models.NoiseSettings) error {
		return noise.CalibrateTalk(ns, s.sampleLevel(req))
	})
}

// EnableMic starts capture. Enabling an active microphone is a no-op; a
// failure leaves the panel off with the reason in the status message.
func (s *NoiseService) EnableMic(ctx context.Context) (dto.NoiseStatus, error) {
	s.mu.Lock()
	if s.micOn || s.starting {
		defer s.mu.Unlock()
		return s.statusLocked(), nil
	}
	if s.mic == nil {
		s.message = appErrors.ErrMicUnavailable.Message
		s.mu.Unlock()
		return s.Status(ctx), appErrors.ErrMicUnavailable
	}
	mic := s.mic
	s.starting = true
	s.mu.Unlock()

	// Start outside the lock: the frame callback takes it.
	if err := mic.Start(func(rms float64) { s.Observe(rms) }); err != nil {
		_ = mic.Stop()
		s.mu.Lock()
		s.micOn = false
		s.starting = false
		s.message = "microphone could not be opened: " + err.Error()
		s.mu.Unlock()
		s.logger.Warn("microphone start failed", zap.Error(err))
		return s.Status(ctx), appErrors.Wrap(err, appErrors.ErrMicUnavailable.Code, appErrors.ErrMicUnavailable.Status, "microphone could not be opened")
	}

	s.mu.Lock()
	s.micOn = true
	s.starting = false
	s.message = ""
	s.mu.Unlock()
	s.logger.Info("microphone enabled")
	return s.Status(ctx), nil
}

// DisableMic stops capture and forgets the smoothed level. Safe to call repeatedly.
func (s *NoiseService) DisableMic(ctx context.Context) (dto.NoiseStatus, error) {
	s.mu.Lock()
	mic, wasOn := s.mic, s.micOn
	s.micOn = false
	s.mu.Unlock()

	if mic != nil {
		if err := mic.Stop(); err != nil {
			s.logger.Warn("microphone stop failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.monitor.Reset()
	s.message = ""
	s.mu.Unlock()
	if wasOn {
		s.logger.Info("microphone disabled")
	}
	return s.Status(ctx), nil
}

// Close releases the microphone and every subscriber.
func (s *NoiseService) Close() {
	_, _ = s.DisableMic(context.Background())
	s.subMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()
}
