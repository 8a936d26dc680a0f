package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/response"
)

// maxUploadBytes bounds roster uploads including xlsx archives.
const maxUploadBytes = 8 << 20

type classroomService interface {
	ListClasses(ctx context.Context) ([]dto.ClassSummary, error)
	GetClass(ctx context.Context, classID string, override dto.ClassFilterOverride) (*dto.ClassView, error)
	RenameClass(ctx context.Context, classID string, req dto.RenameRequest) (*dto.ClassSummary, error)
	SetFilters(ctx context.Context, classID string, req dto.FilterRequest) (*dto.ClassView, error)
	ResetClass(ctx context.Context, classID string) (*dto.ClassView, error)
	AddStudent(ctx context.Context, classID string, req dto.StudentRequest) (*dto.StudentView, error)
	RenameStudent(ctx context.Context, classID, studentID string, req dto.RenameRequest) (*dto.StudentView, error)
	DeleteStudent(ctx context.Context, classID, studentID string) error
	AddMark(ctx context.Context, classID, studentID string, kind models.MarkKind) (*dto.StudentView, error)
	ImportText(ctx context.Context, classID string, req dto.ImportTextRequest) (*dto.ImportResponse, error)
	ImportFile(ctx context.Context, classID, filename string, r io.Reader) (*dto.ImportResponse, error)
}

// ClassroomHandler exposes class roster and mark endpoints.
type ClassroomHandler struct {
	service classroomService
}

// NewClassroomHandler builds a new handler.
func NewClassroomHandler(service classroomService) *ClassroomHandler {
	return &ClassroomHandler{service: service}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	classes, err := h.service.ListClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes)
}

// Get godoc
// @Summary Get class roster with remaining times
// @Tags Classes
// @Produce json
// @Param classID path string true "Class ID"
// @Param minCount query int false "Override minimum negative count"
// @Param minPositive query int false "Override minimum positive count"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	minCount, err := optionalIntQuery(c, "minCount")
	if err != nil {
		response.Error(c, err)
		return
	}
	minPositive, err := optionalIntQuery(c, "minPositive")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.GetClass(c.Request.Context(), c.Param("classID"), dto.ClassFilterOverride{MinCount: minCount, MinPositive: minPositive})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Rename godoc
// @Summary Rename class
// @Tags Classes
// @Accept json
// @Produce json
// @Param classID path string true "Class ID"
// @Param payload body dto.RenameRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID} [put]
func (h *ClassroomHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	summary, err := h.service.RenameClass(c.Request.Context(), c.Param("classID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// SetFilters godoc
// @Summary Store list filters of a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param classID path string true "Class ID"
// @Param payload body dto.FilterRequest true "Filters"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/filters [put]
func (h *ClassroomHandler) SetFilters(c *gin.Context) {
	var req dto.FilterRequest
	if !bindJSON(c, &req, "invalid filter payload") {
		return
	}
	view, err := h.service.SetFilters(c.Request.Context(), c.Param("classID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Reset godoc
// @Summary Reset all counters of a class
// @Tags Classes
// @Produce json
// @Param classID path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/reset [post]
func (h *ClassroomHandler) Reset(c *gin.Context) {
	view, err := h.service.ResetClass(c.Request.Context(), c.Param("classID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// AddStudent godoc
// @Summary Add a student
// @Tags Students
// @Accept json
// @Produce json
// @Param classID path string true "Class ID"
// @Param payload body dto.StudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Router /classes/{classID}/students [post]
func (h *ClassroomHandler) AddStudent(c *gin.Context) {
	var req dto.StudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.service.AddStudent(c.Request.Context(), c.Param("classID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// RenameStudent godoc
// @Summary Rename a student
// @Tags Students
// @Accept json
// @Produce json
// @Param classID path string true "Class ID"
// @Param id path string true "Student ID"
// @Param payload body dto.RenameRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/students/{id} [put]
func (h *ClassroomHandler) RenameStudent(c *gin.Context) {
	var req dto.RenameRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.service.RenameStudent(c.Request.Context(), c.Param("classID"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// DeleteStudent godoc
// @Summary Delete a student and its history
// @Tags Students
// @Param classID path string true "Class ID"
// @Param id path string true "Student ID"
// @Success 204
// @Router /classes/{classID}/students/{id} [delete]
func (h *ClassroomHandler) DeleteStudent(c *gin.Context) {
	if err := h.service.DeleteStudent(c.Request.Context(), c.Param("classID"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Negative godoc
// @Summary Add a negative mark
// @Tags Students
// @Produce json
// @Param classID path string true "Class ID"
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/students/{id}/negative [post]
func (h *ClassroomHandler) Negative(c *gin.Context) {
	h.mark(c, models.MarkNegative)
}

// Positive godoc
// @Summary Add a positive mark
// @Tags Students
// @Produce json
// @Param classID path string true "Class ID"
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/students/{id}/positive [post]
func (h *ClassroomHandler) Positive(c *gin.Context) {
	h.mark(c, models.MarkPositive)
}

func (h *ClassroomHandler) mark(c *gin.Context, kind models.MarkKind) {
	student, err := h.service.AddMark(c.Request.Context(), c.Param("classID"), c.Param("id"), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Import godoc
// @Summary Import a roster from pasted text or an uploaded .txt/.csv/.xlsx file
// @Tags Students
// @Accept json,mpfd
// @Produce json
// @Param classID path string true "Class ID"
// @Param payload body dto.ImportTextRequest false "Pasted names"
// @Param file formData file false "Roster file"
// @Success 200 {object} response.Envelope
// @Router /classes/{classID}/import [post]
func (h *ClassroomHandler) Import(c *gin.Context) {
	classID := c.Param("classID")
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
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
		result, err := h.service.ImportFile(c.Request.Context(), classID, header.Filename, file)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, result)
		return
	}

	var req dto.ImportTextRequest
	if !bindJSON(c, &req, "invalid import payload") {
		return
	}
	result, err := h.service.ImportText(c.Request.Context(), classID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
