// Package microphone captures the host input device and reports one RMS
// amplitude per audio callback.
package microphone

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// DefaultSampleRate is used when the configuration leaves it unset.
const DefaultSampleRate = 16000

// ErrDeviceNotFound is returned when the configured device name matches no capture device.
var ErrDeviceNotFound = errors.New("microphone: capture device not found")

// Config selects the capture device.
type Config struct {
	// Device is matched case-insensitively as a substring of the device
	// name. Empty picks the system default.
	Device     string
	SampleRate int
}

// Capture streams mono S16 frames from a malgo capture device.
type Capture struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// New builds a capture; nothing is opened until Start.
func New(cfg Config, logger *zap.Logger) *Capture {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capture{cfg: cfg, logger: logger.With(zap.String("component", "microphone"))}
}

// Start opens the device and invokes onFrame from the audio thread for every buffer.
func (c *Capture) Start(onFrame func(rms float64)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("microphone: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)

	if c.cfg.Device != "" {
		id, name, err := findDevice(ctx, c.cfg.Device)
		if err != nil {
			releaseContext(ctx)
			return err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
		c.logger.Info("using capture device", zap.String("device", name))
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			if len(data) > 1 {
				onFrame(RMS(data))
			}
		},
	}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext(ctx)
		return fmt.Errorf("microphone: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return fmt.Errorf("microphone: start device: %w", err)
	}

	c.ctx, c.device = ctx, device
	c.logger.Info("capture started", zap.Int("sample_rate", c.cfg.SampleRate))
	return nil
}

// Stop releases the device. Calling it while stopped is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}
	err := c.device.Stop()
	c.device.Uninit()
	releaseContext(c.ctx)
	c.device, c.ctx = nil, nil
	c.logger.Info("capture stopped")
	return err
}

// Devices lists capture device names.
func Devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("microphone: init context: %w", err)
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("microphone: list devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, d := range infos {
		names = append(names, d.Name())
	}
	return names, nil
}

func findDevice(ctx *malgo.AllocatedContext, want string) (malgo.DeviceID, string, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, "", fmt.Errorf("microphone: list devices: %w", err)
	}
	names := make([]string, len(infos))
	for i, d := range infos {
		names[i] = d.Name()
	}
	idx := matchDevice(names, want)
	if idx < 0 {
		return malgo.DeviceID{}, "", fmt.Errorf("%w: %q", ErrDeviceNotFound, want)
	}
	return infos[idx].ID, names[idx], nil
}

// matchDevice prefers an exact case-insensitive match over a substring match.
func matchDevice(names []string, want string) int {
	want = strings.ToLower(strings.TrimSpace(want))
	partial := -1
	for i, name := range names {
		lower := strings.ToLower(name)
		if lower == want {
			return i
		}
		if partial < 0 && strings.Contains(lower, want) {
			partial = i
		}
	}
	return partial
}

func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
