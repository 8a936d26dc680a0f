package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/pkg/kvstore"
)

// DocumentKeys names the three persisted documents.
type DocumentKeys struct {
	App   string
	Noise string
	Mode  string
}

// StoreObserver receives write timings; MetricsService implements it.
type StoreObserver interface {
	ObserveStoreWrite(driver, key string, duration time.Duration, err error)
	RecordStoreError(driver, op string)
}

// DocumentRepository loads and saves the persisted documents, applying
// schema migration on every load.
type DocumentRepository struct {
	store    kvstore.Store
	keys     DocumentKeys
	defaults document.Defaults
	observer StoreObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewDocumentRepository constructs the repository. observer and logger may be nil.
func NewDocumentRepository(store kvstore.Store, keys DocumentKeys, defaults document.Defaults, observer StoreObserver, logger *zap.Logger) *DocumentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRepository{
		store:    store,
		keys:     keys,
		defaults: defaults,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Keys returns the configured document keys.
func (r *DocumentRepository) Keys() DocumentKeys {
	return r.keys
}

// Defaults returns the parameters used for fresh documents.
func (r *DocumentRepository) Defaults() document.Defaults {
	return r.defaults
}

func (r *DocumentRepository) load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		if r.observer != nil {
			r.observer.RecordStoreError(r.store.Name(), "get")
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return raw, nil
}

func (r *DocumentRepository) save(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	start := time.Now()
	err = r.store.Put(ctx, key, payload)
	if r.observer != nil {
		r.observer.ObserveStoreWrite(r.store.Name(), key, time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadState returns the root document. A missing or malformed document
// yields a fresh default one; only store failures are returned as errors.
func (r *DocumentRepository) LoadState(ctx context.Context) (*models.AppState, error) {
	raw, err := r.load(ctx, r.keys.App)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return document.Default(r.now(), r.defaults), nil
	}
	state, fresh := document.Migrate(raw, r.now(), r.defaults)
	if fresh {
		r.logger.Warn("stored document unreadable, starting fresh", zap.String("key", r.keys.App), zap.Int("bytes", len(raw)))
	}
	return state, nil
}

// SaveState writes the full root document.
func (r *DocumentRepository) SaveState(ctx context.Context, state *models.AppState) error {
	return r.save(ctx, r.keys.App, state)
}

// LoadNoise returns the noise configuration, defaulting per field.
func (r *DocumentRepository) LoadNoise(ctx context.Context) (models.NoiseSettings, error) {
	raw, err := r.load(ctx, r.keys.Noise)
	if err != nil {
		return models.NoiseSettings{}, err
	}
	return document.MigrateNoise(raw), nil
}

// SaveNoise writes the noise configuration.
func (r *DocumentRepository) SaveNoise(ctx context.Context, settings models.NoiseSettings) error {
	return r.save(ctx, r.keys.Noise, settings)
}

// LoadWorkMode returns the work mode selection.
func (r *DocumentRepository) LoadWorkMode(ctx context.Context) (models.WorkModeSettings, error) {
	raw, err := r.load(ctx, r.keys.Mode)
	if err != nil {
		return models.WorkModeSettings{}, err
	}
	return document.MigrateWorkMode(raw), nil
}

// SaveWorkMode writes the work mode selection.
func (r *DocumentRepository) SaveWorkMode(ctx context.Context, settings models.WorkModeSettings) error {
	return r.save(ctx, r.keys.Mode, settings)
}

// Ping checks the underlying store.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Driver names the underlying store.
func (r *DocumentRepository) Driver() string {
	return r.store.Name()
}
