package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/noise"
	"github.com/edunotas/edunotas-api/pkg/response"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

type noiseService interface {
	Status(ctx context.Context) dto.NoiseStatus
	SetThreshold(ctx context.Context, req dto.ThresholdRequest) (models.NoiseSettings, error)
	SetGain(ctx context.Context, req dto.GainRequest) (models.NoiseSettings, error)
	SetColors(ctx context.Context, req dto.ColorsRequest) (models.NoiseSettings, error)
	CalibrateSilence(ctx context.Context, req dto.CalibrateRequest) (models.NoiseSettings, error)
	CalibrateTalk(ctx context.Context, req dto.CalibrateRequest) (models.NoiseSettings, error)
	Sample(ctx context.Context, req dto.SampleRequest) (noise.Reading, error)
	EnableMic(ctx context.Context) (dto.NoiseStatus, error)
	DisableMic(ctx context.Context) (dto.NoiseStatus, error)
	Current() dto.NoiseEvent
	Subscribe() (<-chan dto.NoiseEvent, func())
}

// NoiseHandler exposes the noise traffic light.
type NoiseHandler struct {
	service        noiseService
	originPatterns []string
	logger         *zap.Logger
}

// NewNoiseHandler builds a new handler. originPatterns are the extra hosts
// allowed to open the stream from a browser.
func NewNoiseHandler(service noiseService, originPatterns []string, logger *zap.Logger) *NoiseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoiseHandler{service: service, originPatterns: originPatterns, logger: logger}
}

// Status godoc
// @Summary Noise panel state
// @Tags Noise
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /noise [get]
func (h *NoiseHandler) Status(c *gin.Context) {
	response.OK(c, h.service.Status(c.Request.Context()))
}

// SetThreshold godoc
// @Summary Move the green or red boundary
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.ThresholdRequest true "Boundary and level"
// @Success 200 {object} response.Envelope
// @Router /noise/thresholds [put]
func (h *NoiseHandler) SetThreshold(c *gin.Context) {
	var req dto.ThresholdRequest
	if !bindJSON(c, &req, "invalid threshold payload") {
		return
	}
	h.settings(c)(h.service.SetThreshold(c.Request.Context(), req))
}

// SetGain godoc
// @Summary Set the input gain
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.GainRequest true "Gain"
// @Success 200 {object} response.Envelope
// @Router /noise/gain [put]
func (h *NoiseHandler) SetGain(c *gin.Context) {
	var req dto.GainRequest
	if !bindJSON(c, &req, "invalid gain payload") {
		return
	}
	h.settings(c)(h.service.SetGain(c.Request.Context(), req))
}

// SetColors godoc
// @Summary Set the traffic light colors
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.ColorsRequest true "Colors"
// @Success 200 {object} response.Envelope
// @Router /noise/colors [put]
func (h *NoiseHandler) SetColors(c *gin.Context) {
	var req dto.ColorsRequest
	if !bindJSON(c, &req, "invalid colors payload") {
		return
	}
	h.settings(c)(h.service.SetColors(c.Request.Context(), req))
}

// CalibrateSilence godoc
// @Summary Capture the silence level
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.CalibrateRequest false "Explicit level, defaults to the live level"
// @Success 200 {object} response.Envelope
// @Router /noise/calibrate/silence [post]
func (h *NoiseHandler) CalibrateSilence(c *gin.Context) {
	req, ok := h.calibrateRequest(c)
	if !ok {
		return
	}
	h.settings(c)(h.service.CalibrateSilence(c.Request.Context(), req))
}

// CalibrateTalk godoc
// @Summary Capture the talk level and derive thresholds
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.CalibrateRequest false "Explicit level, defaults to the live level"
// @Success 200 {object} response.Envelope
// @Router /noise/calibrate/talk [post]
func (h *NoiseHandler) CalibrateTalk(c *gin.Context) {
	req, ok := h.calibrateRequest(c)
	if !ok {
		return
	}
	h.settings(c)(h.service.CalibrateTalk(c.Request.Context(), req))
}

// an empty body means "use the live level"
func (h *NoiseHandler) calibrateRequest(c *gin.Context) (dto.CalibrateRequest, bool) {
	var req dto.CalibrateRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	return req, bindJSON(c, &req, "invalid calibration payload")
}

func (h *NoiseHandler) settings(c *gin.Context) func(models.NoiseSettings, error) {
	return func(settings models.NoiseSettings, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, settings)
	}
}

// Sample godoc
// @Summary Feed one RMS amplitude frame from a remote microphone
// @Tags Noise
// @Accept json
// @Produce json
// @Param payload body dto.SampleRequest true "RMS amplitude in [0,1]"
// @Success 200 {object} response.Envelope
// @Router /noise/samples [post]
func (h *NoiseHandler) Sample(c *gin.Context) {
	var req dto.SampleRequest
	if !bindJSON(c, &req, "invalid sample payload") {
		return
	}
	reading, err := h.service.Sample(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reading)
}

// EnableMic godoc
// @Summary Start host microphone capture
// @Tags Noise
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /noise/enable [post]
func (h *NoiseHandler) EnableMic(c *gin.Context) {
	status, err := h.service.EnableMic(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// DisableMic godoc
// @Summary Stop host microphone capture
// @Tags Noise
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /noise/disable [post]
func (h *NoiseHandler) DisableMic(c *gin.Context) {
	status, err := h.service.DisableMic(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Stream godoc
// @Summary Websocket of zone changes; the current zone is sent on connect
// @Tags Noise
// @Router /noise/stream [get]
func (h *NoiseHandler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("noise stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	events, cancel := h.service.Subscribe()
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(c.Request.Context())
	if err := writeEvent(ctx, conn, h.service.Current()); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("noise stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			pingCtx, done := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			done()
			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev dto.NoiseEvent) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
