package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/service"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/response"
)

type reportService interface {
	CreateJob(ctx context.Context, classID string, req dto.ReportRequest) (*dto.ReportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes asynchronous class report endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler. A nil service answers every request with 503.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) available(c *gin.Context) bool {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "reports are disabled"))
		return false
	}
	return true
}

// Generate godoc
// @Summary Queue a class report
// @Tags Reports
// @Accept json
// @Produce json
// @Param classID path string true "Class ID"
// @Param payload body dto.ReportRequest true "Report format"
// @Success 202 {object} response.Envelope
// @Router /classes/{classID}/reports [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req dto.ReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), c.Param("classID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{jobID} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	if !h.available(c) {
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Download godoc
// @Summary Download a finished report
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	if !h.available(c) {
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType(download.Format), download.File, nil)
}

func contentType(format models.ReportFormat) string {
	if format == models.ReportFormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}
