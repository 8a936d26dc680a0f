package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunotas/edunotas-api/internal/decay"
	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/dto"
	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/repository"
	"github.com/edunotas/edunotas-api/internal/roster"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

// maxImportBytes bounds text roster uploads.
const maxImportBytes = 1 << 20

type documentRepository interface {
	LoadState(ctx context.Context) (*models.AppState, error)
	SaveState(ctx context.Context, state *models.AppState) error
	LoadWorkMode(ctx context.Context) (models.WorkModeSettings, error)
	SaveWorkMode(ctx context.Context, settings models.WorkModeSettings) error
	Keys() repository.DocumentKeys
	Defaults() document.Defaults
}

// ClassroomService owns the root document. Every operation runs under one
// lock: settle pending decay, mutate a copy, persist it, then publish it.
// A failed save leaves the previous document in place.
type ClassroomService struct {
	mu     sync.Mutex
	repo   documentRepository
	state  *models.AppState
	mode   models.WorkModeSettings
	loaded bool

	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	wall      func() time.Time
	newID     roster.IDFunc
}

// NewClassroomService constructs ClassroomService. Load must be called before use.
func NewClassroomService(repo documentRepository, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{
		repo:      repo,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		wall:      time.Now,
		newID:     roster.NewID,
	}
}

// Load reads the persisted documents into memory.
func (s *ClassroomService) Load(ctx context.Context) error {
	state, err := s.repo.LoadState(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load classroom document")
	}
	mode, err := s.repo.LoadWorkMode(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load work mode")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.mode = mode
	s.loaded = true
	s.metrics.SetClockRunning(state.UI.Clock.Running)
	s.logger.Info("classroom document loaded",
		zap.Int("classes", len(state.Classes)),
		zap.Bool("clock_running", state.UI.Clock.Running),
		zap.String("work_mode", string(mode.Mode)))
	return nil
}

type mutation func(state *models.AppState, clock *decay.Clock) error

// mutate settles decay on a copy, applies fn and persists the result.
func (s *ClassroomService) mutate(ctx context.Context, fn mutation) (*models.AppState, *decay.Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, nil, appErrors.Clone(appErrors.ErrUnavailable, "classroom document not loaded")
	}

	next := s.state.Clone()
	clock := decay.NewClock(&next.UI.Clock, s.wall)
	_, expired := decay.Sync(next, clock)
	if err := fn(next, clock); err != nil {
		return nil, nil, err
	}
	if err := s.repo.SaveState(ctx, next); err != nil {
		s.logger.Error("failed to save classroom document", zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save classroom document")
	}
	s.state = next
	s.metrics.RecordExpirations(expired)
	s.metrics.SetClockRunning(next.UI.Clock.Running)
	return next, clock, nil
}

// view settles decay on a throwaway copy for reads. Nothing is persisted;
// the next mutation settles from the same anchor and reaches the same values.
func (s *ClassroomService) view(fn func(state *models.AppState, clock *decay.Clock) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return appErrors.Clone(appErrors.ErrUnavailable, "classroom document not loaded")
	}
	snapshot := s.state.Clone()
	clock := decay.NewClock(&snapshot.UI.Clock, s.wall)
	decay.Sync(snapshot, clock)
	return fn(snapshot, clock)
}

func findClass(state *models.AppState, classID string) (*models.Class, error) {
	class, ok := state.Classes[classID]
	if !ok {
		return nil, appErrors.ErrClassNotFound
	}
	return class, nil
}

func (s *ClassroomService) validate(req interface{}, message string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

func (s *ClassroomService) validateName(name string, req interface{}) error {
	if strings.TrimSpace(name) == "" {
		return appErrors.ErrEmptyName
	}
	return s.validate(req, "invalid name")
}

// ListClasses returns every class in id order.
func (s *ClassroomService) ListClasses(ctx context.Context) ([]dto.ClassSummary, error) {
	var out []dto.ClassSummary
	err := s.view(func(state *models.AppState, _ *decay.Clock) error {
		out = make([]dto.ClassSummary, 0, len(state.Classes))
		for _, id := range state.ClassIDs() {
			out = append(out, summarize(id, state.Classes[id]))
		}
		return nil
	})
	return out, err
}

// GetClass returns the filtered roster. The override replaces the stored
// filters for this read only.
func (s *ClassroomService) GetClass(ctx context.Context, classID string, override dto.ClassFilterOverride) (*dto.ClassView, error) {
	var out *dto.ClassView
	err := s.view(func(state *models.AppState, clock *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		minCount, minPositive := state.UI.MinCountByClass[classID], state.UI.MinPositiveByClass[classID]
		if override.MinCount != nil {
			minCount = nonNegative(*override.MinCount)
		}
		if override.MinPositive != nil {
			minPositive = nonNegative(*override.MinPositive)
		}
		out = classView(classID, class, state, clock, minCount, minPositive)
		return nil
	})
	return out, err
}

// RenameClass changes a class display name.
func (s *ClassroomService) RenameClass(ctx context.Context, classID string, req dto.RenameRequest) (*dto.ClassSummary, error) {
	if err := s.validateName(req.Name, req); err != nil {
		return nil, err
	}
	var out dto.ClassSummary
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		class.Name = strings.TrimSpace(req.Name)
		out = summarize(classID, class)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetFilters stores the minimum negative/positive counts shown for a class.
func (s *ClassroomService) SetFilters(ctx context.Context, classID string, req dto.FilterRequest) (*dto.ClassView, error) {
	if err := s.validate(req, "invalid filter values"); err != nil {
		return nil, err
	}
	var out *dto.ClassView
	_, _, err := s.mutate(ctx, func(state *models.AppState, clock *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		state.UI.MinCountByClass[classID] = req.MinCount
		state.UI.MinPositiveByClass[classID] = req.MinPositive
		out = classView(classID, class, state, clock, req.MinCount, req.MinPositive)
		return nil
	})
	return out, err
}

// ResetClass zeroes every counter of a class; the mark history is kept.
func (s *ClassroomService) ResetClass(ctx context.Context, classID string) (*dto.ClassView, error) {
	var out *dto.ClassView
	_, _, err := s.mutate(ctx, func(state *models.AppState, clock *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		roster.ResetMarks(class)
		out = classView(classID, class, state, clock, state.UI.MinCountByClass[classID], state.UI.MinPositiveByClass[classID])
		return nil
	})
	if err == nil {
		s.logger.Info("class reset", zap.String("class_id", classID))
	}
	return out, err
}

// AddStudent appends a student to the roster.
func (s *ClassroomService) AddStudent(ctx context.Context, classID string, req dto.StudentRequest) (*dto.StudentView, error) {
	if err := s.validateName(req.Name, req); err != nil {
		return nil, err
	}
	var out dto.StudentView
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		student, err := roster.AddStudent(class, req.Name, s.newID)
		if err != nil {
			return err
		}
		out = studentView(student, decay.ConfigFromSettings(state.UI.Decay))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameStudent changes a student's name.
func (s *ClassroomService) RenameStudent(ctx context.Context, classID, studentID string, req dto.RenameRequest) (*dto.StudentView, error) {
	if err := s.validateName(req.Name, req); err != nil {
		return nil, err
	}
	var out dto.StudentView
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		student, err := roster.RenameStudent(class, studentID, req.Name)
		if err != nil {
			return err
		}
		out = studentView(student, decay.ConfigFromSettings(state.UI.Decay))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStudent removes a student and its history.
func (s *ClassroomService) DeleteStudent(ctx context.Context, classID, studentID string) error {
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		return roster.DeleteStudent(class, studentID)
	})
	return err
}

// AddMark records a negative or positive mark at the current wall time.
func (s *ClassroomService) AddMark(ctx context.Context, classID, studentID string, kind models.MarkKind) (*dto.StudentView, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown mark kind")
	}
	var out dto.StudentView
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		student := class.FindStudent(studentID)
		if student == nil {
			return appErrors.ErrStudentNotFound
		}
		at := s.wall().UnixMilli()
		if kind == models.MarkPositive {
			decay.AddPositive(student, at)
		} else {
			decay.AddNegative(student, at)
		}
		cfg := decay.ConfigFromSettings(state.UI.Decay)
		s.metrics.RecordExpirations(decay.ExpireIfDue(class, cfg))
		out = studentView(student, cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMark(kind)
	return &out, nil
}

// ImportNames appends names to the roster, skipping duplicates.
func (s *ClassroomService) ImportNames(ctx context.Context, classID string, names []string) (*dto.ImportResponse, error) {
	if len(names) == 0 {
		return nil, appErrors.ErrNoNames
	}
	var out dto.ImportResponse
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		class, err := findClass(state, classID)
		if err != nil {
			return err
		}
		res := roster.Import(class, names, s.newID)
		out = dto.ImportResponse{Added: res.Added, Skipped: res.Skipped, Total: len(class.Students)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("roster imported", zap.String("class_id", classID), zap.Int("added", out.Added), zap.Int("skipped", out.Skipped))
	return &out, nil
}

// ImportText parses pasted text and imports it.
func (s *ClassroomService) ImportText(ctx context.Context, classID string, req dto.ImportTextRequest) (*dto.ImportResponse, error) {
	return s.ImportNames(ctx, classID, roster.ParseNames(req.Text))
}

// ImportFile imports a .txt, .csv or .xlsx roster.
func (s *ClassroomService) ImportFile(ctx context.Context, classID, filename string, r io.Reader) (*dto.ImportResponse, error) {
	var names []string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		parsed, err := roster.NamesFromXLSX(r)
		if err != nil {
			return nil, err
		}
		names = parsed
	case ".txt", ".csv", "":
		data, err := io.ReadAll(io.LimitReader(r, maxImportBytes))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code, appErrors.ErrUnreadableFile.Status, appErrors.ErrUnreadableFile.Message)
		}
		names = roster.ParseNames(string(data))
	default:
		return nil, appErrors.Clone(appErrors.ErrUnreadableFile, "unsupported file type, use .txt, .csv or .xlsx")
	}
	return s.ImportNames(ctx, classID, names)
}

// Clock returns the decay clock state.
func (s *ClassroomService) Clock(ctx context.Context) (dto.ClockView, error) {
	var out dto.ClockView
	err := s.view(func(_ *models.AppState, clock *decay.Clock) error {
		out = clockView(clock)
		return nil
	})
	return out, err
}

// StartClock resumes decay. Starting a running clock is a no-op.
func (s *ClassroomService) StartClock(ctx context.Context) (dto.ClockView, error) {
	var out dto.ClockView
	_, _, err := s.mutate(ctx, func(_ *models.AppState, clock *decay.Clock) error {
		clock.Resume()
		out = clockView(clock)
		return nil
	})
	if err == nil {
		s.logger.Info("clock started")
	}
	return out, err
}

// PauseClock freezes decay after applying the time elapsed so far.
func (s *ClassroomService) PauseClock(ctx context.Context) (dto.ClockView, error) {
	var out dto.ClockView
	_, _, err := s.mutate(ctx, func(state *models.AppState, clock *decay.Clock) error {
		_, expired := decay.PauseAndSync(state, clock)
		s.metrics.RecordExpirations(expired)
		out = clockView(clock)
		return nil
	})
	if err == nil {
		s.logger.Info("clock paused")
	}
	return out, err
}

// Tick applies elapsed decay while the clock runs. A paused clock is not
// persisted on every tick.
func (s *ClassroomService) Tick(ctx context.Context) error {
	s.mu.Lock()
	running := s.loaded && s.state.UI.Clock.Running
	s.mu.Unlock()
	if !running {
		return nil
	}
	_, _, err := s.mutate(ctx, func(*models.AppState, *decay.Clock) error { return nil })
	return err
}

// DecaySettings returns the minutes per mark.
func (s *ClassroomService) DecaySettings(ctx context.Context) (models.DecaySettings, error) {
	var out models.DecaySettings
	err := s.view(func(state *models.AppState, _ *decay.Clock) error {
		out = state.UI.Decay
		return nil
	})
	return out, err
}

// SetDecaySettings changes the minutes per mark. Time already spent is kept,
// so a shorter setting may expire streaks immediately.
func (s *ClassroomService) SetDecaySettings(ctx context.Context, req dto.DecaySettingsRequest) (models.DecaySettings, error) {
	if err := s.validate(req, "invalid decay settings"); err != nil {
		return models.DecaySettings{}, err
	}
	var out models.DecaySettings
	_, _, err := s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		state.UI.Decay = models.DecaySettings{NegMinutesPerPoint: req.NegMinutesPerPoint, PosMinutesPerPoint: req.PosMinutesPerPoint}
		cfg := decay.ConfigFromSettings(state.UI.Decay)
		expired := 0
		for _, class := range state.Classes {
			expired += decay.ExpireIfDue(class, cfg)
		}
		s.metrics.RecordExpirations(expired)
		out = state.UI.Decay
		return nil
	})
	return out, err
}

// ExportBackup wraps the settled document for download.
func (s *ClassroomService) ExportBackup(ctx context.Context) (document.Backup, error) {
	var out document.Backup
	err := s.view(func(state *models.AppState, _ *decay.Clock) error {
		out = document.Export(state, s.repo.Keys().App, s.wall())
		return nil
	})
	return out, err
}

// ImportBackup replaces the whole document. The imported clock is paused at
// the import instant so the time between export and import never decays.
func (s *ClassroomService) ImportBackup(ctx context.Context, raw []byte) ([]dto.ClassSummary, error) {
	now := s.wall()
	imported, err := document.ParseBackup(raw, now, s.repo.Defaults())
	if err != nil {
		return nil, err
	}
	imported.UI.Clock = models.ClockState{Running: false, FrozenAtMs: now.UnixMilli(), LastTickMs: now.UnixMilli()}

	var out []dto.ClassSummary
	_, _, err = s.mutate(ctx, func(state *models.AppState, _ *decay.Clock) error {
		*state = *imported
		out = make([]dto.ClassSummary, 0, len(state.Classes))
		for _, id := range state.ClassIDs() {
			out = append(out, summarize(id, state.Classes[id]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup imported", zap.Int("classes", len(out)))
	return out, nil
}

// WorkMode returns the current classroom mode.
func (s *ClassroomService) WorkMode(ctx context.Context) models.WorkModeSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetWorkMode persists a new classroom mode.
func (s *ClassroomService) SetWorkMode(ctx context.Context, req dto.WorkModeRequest) (models.WorkModeSettings, error) {
	if err := s.validate(req, "invalid work mode"); err != nil {
		return models.WorkModeSettings{}, err
	}
	next := models.WorkModeSettings{Mode: req.Mode}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveWorkMode(ctx, next); err != nil {
		return models.WorkModeSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save work mode")
	}
	s.mode = next
	return next, nil
}

// ClassSnapshot returns the full settled roster for report rendering.
func (s *ClassroomService) ClassSnapshot(ctx context.Context, classID string) (*dto.ClassView, error) {
	zero := 0
	return s.GetClass(ctx, classID, dto.ClassFilterOverride{MinCount: &zero, MinPositive: &zero})
}

func summarize(id string, class *models.Class) dto.ClassSummary {
	active := 0
	for _, st := range class.Students {
		if st.Count > 0 {
			active++
		}
	}
	return dto.ClassSummary{ID: id, Name: class.Name, StudentCount: len(class.Students), ActiveCount: active}
}

func classView(id string, class *models.Class, state *models.AppState, clock *decay.Clock, minCount, minPositive int) *dto.ClassView {
	cfg := decay.ConfigFromSettings(state.UI.Decay)
	filtered := roster.Filter(class, minCount, minPositive)
	students := make([]dto.StudentView, 0, len(filtered))
	for _, st := range filtered {
		students = append(students, studentView(st, cfg))
	}
	return &dto.ClassView{
		ID:          id,
		Name:        class.Name,
		MinCount:    minCount,
		MinPositive: minPositive,
		Total:       len(class.Students),
		Students:    students,
		Clock:       clockView(clock),
	}
}

func studentView(st *models.Student, cfg decay.Config) dto.StudentView {
	events := make([]models.MarkEvent, len(st.Events))
	copy(events, st.Events)
	return dto.StudentView{
		ID:            st.ID,
		Name:          st.Name,
		Count:         st.Count,
		PositiveCount: st.PositiveCount,
		SpentMs:       st.SpentMs,
		RemainingMs:   decay.Remaining(st, cfg),
		Events:        events,
	}
}

func clockView(clock *decay.Clock) dto.ClockView {
	return dto.ClockView{Running: clock.Running(), NowMs: clock.Now()}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
