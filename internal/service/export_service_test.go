package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/pkg/export"
	"github.com/edunotas/edunotas-api/pkg/kvstore"
	"github.com/edunotas/edunotas-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage, *ClassroomService) {
	t.Helper()
	ctx := context.Background()
	classes := newClassroomService(t, kvstore.NewMemoryStore(), newFakeWall())
	_, err := classes.ImportText(ctx, classA, dto.ImportTextRequest{Text: "Ana García\nLuis"})
	require.NoError(t, err)
	_, err = classes.AddMark(ctx, classA, "st1", models.MarkNegative)
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(classes, store, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store, classes
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)
	job := &models.ReportJob{ID: "job-1", ClassID: classA, Format: models.ReportFormatCSV}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RelativePath, "reports/clase_01_"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	u, err := url.Parse(result.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/reports/download", u.Path)
	assert.Equal(t, result.Token, u.Query().Get("token"))

	grant, err := svc.Verify(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", grant.JobID)

	data, err := store.Read(result.RelativePath)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "Name,Negative,Positive,Remaining,Last mark")
	assert.Contains(t, body, "Ana García,1,0,05:00,- 2023-11-14 22:13")
	assert.Contains(t, body, "Luis,0,0,00:00,")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)
	job := &models.ReportJob{ID: "job-2", ClassID: classA, Format: models.ReportFormatPDF}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)

	data, err := store.Read(result.RelativePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportServiceUnknownClass(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "job-3", ClassID: "nope", Format: models.ReportFormatCSV})
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "00:01", FormatDuration(1))
	assert.Equal(t, "05:00", FormatDuration(300_000))
	assert.Equal(t, "61:40", FormatDuration(3_700_000))
}
