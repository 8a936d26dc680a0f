package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

type classroomServiceStub struct {
	err error

	override dto.ClassFilterOverride
	markKind models.MarkKind
	imported string
	filename string
	deleted  string
}

func (s *classroomServiceStub) ListClasses(context.Context) ([]dto.ClassSummary, error) {
	return []dto.ClassSummary{{ID: "clase_01", Name: "Clase 1"}}, s.err
}

func (s *classroomServiceStub) GetClass(_ context.Context, classID string, override dto.ClassFilterOverride) (*dto.ClassView, error) {
	s.override = override
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ClassView{ID: classID, Students: []dto.StudentView{}}, nil
}

func (s *classroomServiceStub) RenameClass(_ context.Context, classID string, req dto.RenameRequest) (*dto.ClassSummary, error) {
	return &dto.ClassSummary{ID: classID, Name: req.Name}, s.err
}

func (s *classroomServiceStub) SetFilters(_ context.Context, classID string, req dto.FilterRequest) (*dto.ClassView, error) {
	return &dto.ClassView{ID: classID, MinCount: req.MinCount, MinPositive: req.MinPositive}, s.err
}

func (s *classroomServiceStub) ResetClass(_ context.Context, classID string) (*dto.ClassView, error) {
	return &dto.ClassView{ID: classID}, s.err
}

func (s *classroomServiceStub) AddStudent(_ context.Context, _ string, req dto.StudentRequest) (*dto.StudentView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.StudentView{ID: "st1", Name: req.Name}, nil
}

func (s *classroomServiceStub) RenameStudent(_ context.Context, _, studentID string, req dto.RenameRequest) (*dto.StudentView, error) {
	return &dto.StudentView{ID: studentID, Name: req.Name}, s.err
}

func (s *classroomServiceStub) DeleteStudent(_ context.Context, _, studentID string) error {
	s.deleted = studentID
	return s.err
}

func (s *classroomServiceStub) AddMark(_ context.Context, _, studentID string, kind models.MarkKind) (*dto.StudentView, error) {
	s.markKind = kind
	return &dto.StudentView{ID: studentID, Count: 1}, s.err
}

func (s *classroomServiceStub) ImportText(_ context.Context, _ string, req dto.ImportTextRequest) (*dto.ImportResponse, error) {
	s.imported = req.Text
	return &dto.ImportResponse{Added: 1, Total: 1}, s.err
}

func (s *classroomServiceStub) ImportFile(_ context.Context, _ string, filename string, r io.Reader) (*dto.ImportResponse, error) {
	raw, _ := io.ReadAll(r)
	s.filename = filename
	s.imported = string(raw)
	return &dto.ImportResponse{Added: 2, Total: 2}, s.err
}

func TestClassroomHandlerList(t *testing.T) {
	handler := NewClassroomHandler(&classroomServiceStub{})
	c, w := newGinContext(http.MethodGet, "/classes", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	var classes []dto.ClassSummary
	decodeEnvelope(t, w, &classes)
	assert.Len(t, classes, 1)
}

func TestClassroomHandlerGetParsesOverride(t *testing.T) {
	stub := &classroomServiceStub{}
	handler := NewClassroomHandler(stub)

	c, w := newGinContext(http.MethodGet, "/classes/clase_01?minCount=2", nil)
	c.Params = gin.Params{{Key: "classID", Value: "clase_01"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.override.MinCount)
	assert.Equal(t, 2, *stub.override.MinCount)
	assert.Nil(t, stub.override.MinPositive)

	c, w = newGinContext(http.MethodGet, "/classes/clase_01?minPositive=-1", nil)
	handler.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassroomHandlerMapsServiceErrors(t *testing.T) {
	handler := NewClassroomHandler(&classroomServiceStub{err: appErrors.ErrClassNotFound})
	c, w := newGinContext(http.MethodGet, "/classes/nope", nil)
	c.Params = gin.Params{{Key: "classID", Value: "nope"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "CLASS_NOT_FOUND", env.Error.Code)
}

func TestClassroomHandlerAddStudent(t *testing.T) {
	handler := NewClassroomHandler(&classroomServiceStub{})
	body, _ := json.Marshal(dto.StudentRequest{Name: "Ana"})
	c, w := newGinContext(http.MethodPost, "/classes/clase_01/students", body)

	handler.AddStudent(c)
	require.Equal(t, http.StatusCreated, w.Code)

	handler = NewClassroomHandler(&classroomServiceStub{err: appErrors.ErrDuplicateName})
	c, w = newGinContext(http.MethodPost, "/classes/clase_01/students", body)
	handler.AddStudent(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClassroomHandlerMarks(t *testing.T) {
	stub := &classroomServiceStub{}
	handler := NewClassroomHandler(stub)

	c, w := newGinContext(http.MethodPost, "/classes/clase_01/students/st1/negative", nil)
	handler.Negative(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MarkNegative, stub.markKind)

	c, _ = newGinContext(http.MethodPost, "/classes/clase_01/students/st1/positive", nil)
	handler.Positive(c)
	assert.Equal(t, models.MarkPositive, stub.markKind)
}

func TestClassroomHandlerDeleteStudent(t *testing.T) {
	stub := &classroomServiceStub{}
	handler := NewClassroomHandler(stub)
	c, w := newGinContext(http.MethodDelete, "/classes/clase_01/students/st1", nil)
	c.Params = gin.Params{{Key: "classID", Value: "clase_01"}, {Key: "id", Value: "st1"}}

	handler.DeleteStudent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "st1", stub.deleted)
}

func TestClassroomHandlerImportText(t *testing.T) {
	stub := &classroomServiceStub{}
	handler := NewClassroomHandler(stub)
	body, _ := json.Marshal(dto.ImportTextRequest{Text: "Ana\nLuis"})
	c, w := newGinContext(http.MethodPost, "/classes/clase_01/import", body)

	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana\nLuis", stub.imported)
}

func TestClassroomHandlerImportFile(t *testing.T) {
	stub := &classroomServiceStub{}
	handler := NewClassroomHandler(stub)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "lista.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Pedro\nMarta"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/classes/clase_01/import", buf.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lista.txt", stub.filename)
	assert.Equal(t, "Pedro\nMarta", stub.imported)

	var result dto.ImportResponse
	decodeEnvelope(t, w, &result)
	assert.Equal(t, 2, result.Added)
}

func TestClassroomHandlerImportMissingFile(t *testing.T) {
	handler := NewClassroomHandler(&classroomServiceStub{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/classes/clase_01/import", buf.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "UNREADABLE_FILE", env.Error.Code)
}
