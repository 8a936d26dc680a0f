package service

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/noise"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/classes", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/classes", 200, 30*time.Millisecond)
	m.RecordMark(models.MarkNegative)
	m.RecordMark(models.MarkNegative)
	m.RecordMark(models.MarkPositive)
	m.RecordExpirations(3)
	m.RecordExpirations(0)
	m.ObserveStoreWrite("memory", "edunotas_asistencia_v1", 4*time.Millisecond, nil)
	m.ObserveStoreWrite("memory", "edunotas_asistencia_v1", 2*time.Millisecond, errors.New("full"))

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.RequestsTotal)
	assert.InDelta(t, 20, snap.AverageRequestDurationMs, 0.001)
	assert.EqualValues(t, 2, snap.NegativeMarks)
	assert.EqualValues(t, 1, snap.PositiveMarks)
	assert.EqualValues(t, 3, snap.Expirations)
	assert.EqualValues(t, 2, snap.StoreWrites)
	assert.EqualValues(t, 1, snap.StoreErrors)
	assert.InDelta(t, 3, snap.AverageStoreWriteMs, 0.001)
	assert.Greater(t, snap.Goroutines, 0)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.SetClockRunning(true)
	m.ObserveNoise(42, noise.ZoneAmber)
	m.RecordReport(models.ReportFormatPDF, models.ReportStatusFinished)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "edunotas_clock_running 1")
	assert.Contains(t, text, `edunotas_noise_zone{zone="amber"} 1`)
	assert.Contains(t, text, `edunotas_noise_zone{zone="red"} 0`)
	assert.Contains(t, text, `edunotas_reports_total{format="pdf",status="FINISHED"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordMark(models.MarkNegative)
		m.ObserveNoise(1, noise.ZoneGreen)
		m.SetClockRunning(true)
		_ = m.Snapshot()
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}
