package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/service"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error

	classID string
	token   string
}

func (m *reportServiceMock) CreateJob(_ context.Context, classID string, _ dto.ReportRequest) (*dto.ReportJobResponse, error) {
	m.classID = classID
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(context.Context, string) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(_ context.Context, token string) (*service.ReportDownload, error) {
	m.token = token
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestReportHandlerGenerate(t *testing.T) {
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReportRequest{Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/classes/clase_01/reports", payload)
	c.Params = gin.Params{{Key: "classID", Value: "clase_01"}}

	handler.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "clase_01", mockSvc.classID)

	var job dto.ReportJobResponse
	decodeEnvelope(t, w, &job)
	assert.Equal(t, "job-1", job.ID)
}

func TestReportHandlerGenerateRejectsBadJSON(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})
	c, w := newGinContext(http.MethodPost, "/classes/clase_01/reports", []byte("{"))

	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "jobID", Value: "job-1"}}

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	mockSvc.statusErr = appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	c, w = newGinContext(http.MethodGet, "/reports/missing", nil)
	handler.Status(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name\nAna\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &reportServiceMock{download: &service.ReportDownload{
		File:      file,
		Filename:  "clase_01.csv",
		Format:    models.ReportFormatCSV,
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/download?token=abc", nil)
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", mockSvc.token)
	assert.Equal(t, "Name\nAna\n", w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clase_01.csv")
}

func TestReportHandlerDownloadErrors(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{downloadErr: appErrors.ErrReportNotReady})

	c, w := newGinContext(http.MethodGet, "/reports/download", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/reports/download?token=abc", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w, nil)
	assert.Equal(t, "REPORT_NOT_READY", env.Error.Code)
}

func TestReportHandlerDisabled(t *testing.T) {
	handler := NewReportHandler(nil)
	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	handler.Status(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
