package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/repository"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
	"github.com/edunotas/edunotas-api/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(context.Context, *models.ReportJob) (*ExportResult, error) {
	return e.result, e.err
}

type reportHarness struct {
	svc      *ReportService
	worker   *ReportWorker
	repo     *repository.ReportRepository
	queue    *queueStub
	exporter *ExportService
}

func newReportHarness(t *testing.T) *reportHarness {
	t.Helper()
	repo := repository.NewReportRepository()
	queue := &queueStub{}
	exporter, _, classes := newExportServiceForTest(t)
	svc := NewReportService(repo, classes, queue, exporter, nil, nil, zap.NewNop(), ReportServiceConfig{ResultTTL: time.Hour})
	return &reportHarness{
		svc:      svc,
		worker:   NewReportWorker(repo, exporter, 3, nil, zap.NewNop()),
		repo:     repo,
		queue:    queue,
		exporter: exporter,
	}
}

func TestReportServiceCreateJob(t *testing.T) {
	h := newReportHarness(t)
	resp, err := h.svc.CreateJob(context.Background(), classA, dto.ReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, h.queue.jobs, 1)
	assert.Equal(t, resp.ID, h.queue.jobs[0].ID)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	h := newReportHarness(t)
	_, err := h.svc.CreateJob(context.Background(), classA, dto.ReportRequest{Format: "docx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = h.svc.CreateJob(context.Background(), "clase_99", dto.ReportRequest{Format: models.ReportFormatPDF})
	assert.ErrorIs(t, err, appErrors.ErrClassNotFound)
	assert.Empty(t, h.queue.jobs)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	h := newReportHarness(t)
	h.queue.err = errors.New("full")
	_, err := h.svc.CreateJob(context.Background(), classA, dto.ReportRequest{Format: models.ReportFormatCSV})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestReportServiceEndToEndDownload(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t)
	resp, err := h.svc.CreateJob(ctx, classA, dto.ReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	status, err := h.svc.GetStatus(ctx, resp.ID)
	require.NoError(t, err)
	assert.Nil(t, status.ResultURL)

	require.NoError(t, h.worker.Handle(ctx, jobs.Job{ID: resp.ID, Attempt: 1}))

	status, err = h.svc.GetStatus(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)

	download, err := h.svc.ResolveDownload(ctx, tokenFromURL(*status.ResultURL))
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ana García")
	assert.Equal(t, models.ReportFormatCSV, download.Format)

	_, err = h.svc.ResolveDownload(ctx, "garbage")
	assert.ErrorIs(t, err, appErrors.ErrInvalidSignature)
}

func TestReportServiceDownloadBeforeFinished(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t)
	resp, err := h.svc.CreateJob(ctx, classA, dto.ReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	job, err := h.repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	result, err := h.exporter.Generate(ctx, job)
	require.NoError(t, err)

	_, err = h.svc.ResolveDownload(ctx, result.Token)
	assert.ErrorIs(t, err, appErrors.ErrReportNotReady)
}

func TestReportServiceUnknownJob(t *testing.T) {
	h := newReportHarness(t)
	_, err := h.svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	ctx := context.Background()
	h := newReportHarness(t)
	resp, err := h.svc.CreateJob(ctx, classA, dto.ReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)
	require.NoError(t, h.worker.Handle(ctx, jobs.Job{ID: resp.ID, Attempt: 1}))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, h.repo.Update(ctx, resp.ID, repository.UpdateReportJobParams{FinishedAt: &old}))
	status, err := h.svc.GetStatus(ctx, resp.ID)
	require.NoError(t, err)
	token := tokenFromURL(*status.ResultURL)

	h.svc.CleanupExpired(ctx)

	_, err = h.svc.GetStatus(ctx, resp.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	grant, err := h.exporter.Verify(token, true)
	require.NoError(t, err)
	_, err = h.exporter.Open(grant.Path)
	assert.Error(t, err)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReportRepository()
	job := &models.ReportJob{ClassID: classA, Format: models.ReportFormatCSV}
	require.NoError(t, repo.Create(ctx, job))
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, 2, nil, zap.NewNop())

	require.Error(t, worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1}))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, got.Status)
	require.NotNil(t, got.ErrorMessage)

	require.Error(t, worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 2}))
	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, got.Status)
	assert.NotNil(t, got.FinishedAt)
}

func TestReportWorkerIgnoresVanishedJob(t *testing.T) {
	worker := NewReportWorker(repository.NewReportRepository(), exportStub{}, 1, nil, nil)
	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "gone"}))
}
