package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/response"
)

// maxBackupBytes bounds an uploaded backup document.
const maxBackupBytes = 16 << 20

type settingsService interface {
	Clock(ctx context.Context) (dto.ClockView, error)
	StartClock(ctx context.Context) (dto.ClockView, error)
	PauseClock(ctx context.Context) (dto.ClockView, error)
	DecaySettings(ctx context.Context) (models.DecaySettings, error)
	SetDecaySettings(ctx context.Context, req dto.DecaySettingsRequest) (models.DecaySettings, error)
	WorkMode(ctx context.Context) models.WorkModeSettings
	SetWorkMode(ctx context.Context, req dto.WorkModeRequest) (models.WorkModeSettings, error)
	ExportBackup(ctx context.Context) (document.Backup, error)
	ImportBackup(ctx context.Context, raw []byte) ([]dto.ClassSummary, error)
}

// SettingsHandler exposes the global clock, decay and work mode settings and backups.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Clock godoc
// @Summary Decay clock state
// @Tags Clock
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clock [get]
func (h *SettingsHandler) Clock(c *gin.Context) {
	clock, err := h.service.Clock(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, clock)
}

// StartClock godoc
// @Summary Resume decay
// @Tags Clock
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clock/start [post]
func (h *SettingsHandler) StartClock(c *gin.Context) {
	clock, err := h.service.StartClock(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, clock)
}

// PauseClock godoc
// @Summary Pause decay
// @Tags Clock
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clock/pause [post]
func (h *SettingsHandler) PauseClock(c *gin.Context) {
	clock, err := h.service.PauseClock(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, clock)
}

// Decay godoc
// @Summary Minutes per mark
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/decay [get]
func (h *SettingsHandler) Decay(c *gin.Context) {
	settings, err := h.service.DecaySettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// SetDecay godoc
// @Summary Update minutes per mark
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.DecaySettingsRequest true "Decay settings"
// @Success 200 {object} response.Envelope
// @Router /settings/decay [put]
func (h *SettingsHandler) SetDecay(c *gin.Context) {
	var req dto.DecaySettingsRequest
	if !bindJSON(c, &req, "invalid decay payload") {
		return
	}
	settings, err := h.service.SetDecaySettings(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// WorkMode godoc
// @Summary Current work mode
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/work-mode [get]
func (h *SettingsHandler) WorkMode(c *gin.Context) {
	response.OK(c, h.service.WorkMode(c.Request.Context()))
}

// SetWorkMode godoc
// @Summary Change work mode
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.WorkModeRequest true "Work mode"
// @Success 200 {object} response.Envelope
// @Router /settings/work-mode [put]
func (h *SettingsHandler) SetWorkMode(c *gin.Context) {
	var req dto.WorkModeRequest
	if !bindJSON(c, &req, "invalid work mode payload") {
		return
	}
	mode, err := h.service.SetWorkMode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mode)
}

// ExportBackup godoc
// @Summary Download the full document as a JSON backup
// @Tags Backup
// @Produce json
// @Success 200 {object} document.Backup
// @Router /backup [get]
func (h *SettingsHandler) ExportBackup(c *gin.Context) {
	backup, err := h.service.ExportBackup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode backup"))
		return
	}
	filename := fmt.Sprintf("edunotas_backup_%s.json", backup.ExportedAt[:10])
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// ImportBackup godoc
// @Summary Replace the full document from a backup
// @Tags Backup
// @Accept json,mpfd
// @Produce json
// @Param file formData file false "Backup file"
// @Success 200 {object} response.Envelope
// @Router /backup [post]
func (h *SettingsHandler) ImportBackup(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBackupBytes)

	var reader io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, "file field is required"))
			return
		}
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, appErrors.ErrUnreadableFile.Message))
			return
		}
		defer file.Close()
		reader = file
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, appErrors.ErrUnreadableFile.Message))
		return
	}
	classes, err := h.service.ImportBackup(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes, map[string]interface{}{"message": "backup imported"})
}
