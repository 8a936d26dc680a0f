package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/pkg/export"
	"github.com/edunotas/edunotas-api/pkg/storage"
)

// reportsDir is the storage prefix for rendered class reports.
const reportsDir = "reports"

var reportHeaders = []string{"Name", "Negative", "Positive", "Remaining", "Last mark"}

type classSnapshotter interface {
	ClassSnapshot(ctx context.Context, classID string) (*dto.ClassView, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(prefix string, ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders class rosters and persists the files.
type ExportService struct {
	classes classSnapshotter
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export defaults.
func NewExportService(classes classSnapshotter, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		classes: classes,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the job's class and stores the file behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	view, err := s.classes.ClassSnapshot(ctx, job.ClassID)
	if err != nil {
		return nil, err
	}
	dataset := ClassDataset(view)

	var payload []byte
	switch job.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, view.Name)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.filename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("report rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify validates a download token.
func (s *ExportService) Verify(token string, allowExpired bool) (storage.Grant, error) {
	return s.signer.Verify(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored report file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes report files older than ttl; non-positive ttl uses ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(reportsDir, ttl)
}

func (s *ExportService) filename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return path.Join(reportsDir, fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(job.ClassID), timestamp, shortID(job.ID), job.Format))
}

// ClassDataset flattens a class view into report rows in roster order.
func ClassDataset(view *dto.ClassView) export.Dataset {
	rows := make([]map[string]string, 0, len(view.Students))
	for _, st := range view.Students {
		rows = append(rows, map[string]string{
			"Name":      st.Name,
			"Negative":  strconv.Itoa(st.Count),
			"Positive":  strconv.Itoa(st.PositiveCount),
			"Remaining": FormatDuration(st.RemainingMs),
			"Last mark": lastMark(st.Events),
		})
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}

// FormatDuration renders milliseconds as mm:ss, rounding partial seconds up.
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "00:00"
	}
	secs := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func lastMark(events []models.MarkEvent) string {
	if len(events) == 0 {
		return ""
	}
	last := events[len(events)-1]
	sign := "-"
	if last.Kind == models.MarkPositive {
		sign = "+"
	}
	return sign + " " + time.UnixMilli(last.At).UTC().Format("2006-01-02 15:04")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
