package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ticker interface {
	Tick(ctx context.Context) error
}

// TickerService drives periodic decay while the clock runs.
type TickerService struct {
	target   ticker
	interval time.Duration
	logger   *zap.Logger
}

// NewTickerService constructs a TickerService; a non-positive interval defaults to one second.
func NewTickerService(target ticker, interval time.Duration, logger *zap.Logger) *TickerService {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickerService{target: target, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled.
func (t *TickerService) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := t.target.Tick(ctx)
			switch {
			case err != nil && !failing:
				t.logger.Warn("decay tick failed", zap.Error(err))
				failing = true
			case err == nil && failing:
				t.logger.Info("decay tick recovered")
				failing = false
			}
		}
	}
}
