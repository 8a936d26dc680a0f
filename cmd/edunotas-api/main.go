package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	_ "github.com/edunotas/edunotas-api/api/swagger"
	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/handler"
	internalmiddleware "github.com/edunotas/edunotas-api/internal/middleware"
	"github.com/edunotas/edunotas-api/internal/microphone"
	"github.com/edunotas/edunotas-api/internal/repository"
	"github.com/edunotas/edunotas-api/internal/service"
	"github.com/edunotas/edunotas-api/pkg/cache"
	"github.com/edunotas/edunotas-api/pkg/config"
	"github.com/edunotas/edunotas-api/pkg/database"
	"github.com/edunotas/edunotas-api/pkg/jobs"
	"github.com/edunotas/edunotas-api/pkg/kvstore"
	"github.com/edunotas/edunotas-api/pkg/logger"
	corsmiddleware "github.com/edunotas/edunotas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edunotas/edunotas-api/pkg/middleware/requestid"
	"github.com/edunotas/edunotas-api/pkg/storage"
)

// @title EduNotas API
// @version 1.0.0
// @description Classroom behaviour tracker: decaying negative marks, noise traffic light, roster import and backups.
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	docs := repository.NewDocumentRepository(store,
		repository.DocumentKeys{App: cfg.Store.AppKey, Noise: cfg.Store.NoiseKey, Mode: cfg.Store.ModeKey},
		document.Defaults{
			ClassCount: cfg.Classroom.ClassCount,
			NegMinutes: cfg.Classroom.DefaultNegMinutes,
			PosMinutes: cfg.Classroom.DefaultPosMinutes,
		},
		metricsSvc, logr)

	classroomSvc := service.NewClassroomService(docs, validate, metricsSvc, logr)
	if err := classroomSvc.Load(ctx); err != nil {
		return fmt.Errorf("load classroom document: %w", err)
	}

	var mic service.Microphone
	if cfg.Noise.MicEnabled {
		mic = microphone.New(microphone.Config{Device: cfg.Noise.MicDevice, SampleRate: cfg.Noise.SampleRate}, logr)
	}
	noiseSvc := service.NewNoiseService(docs, mic, validate, metricsSvc, logr)
	if err := noiseSvc.Load(ctx); err != nil {
		return fmt.Errorf("load noise settings: %w", err)
	}
	defer noiseSvc.Close()

	tickerSvc := service.NewTickerService(classroomSvc, cfg.Classroom.TickInterval, logr)
	go tickerSvc.Run(ctx)

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		reportSvc, queue, err := buildReports(ctx, cfg, classroomSvc, validate, metricsSvc, logr)
		if err != nil {
			return err
		}
		defer queue.Stop()
		reportHandler = handler.NewReportHandler(reportSvc)
	} else {
		reportHandler = handler.NewReportHandler(nil)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(secureHeaders(cfg))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.APIPrefix+"/noise/stream"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, docs)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		classroom: handler.NewClassroomHandler(classroomSvc),
		settings:  handler.NewSettingsHandler(classroomSvc),
		noise:     handler.NewNoiseHandler(noiseSvc, originPatterns(cfg.CORS.AllowedOrigins), logr),
		reports:   reportHandler,
		metrics:   metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", docs.Driver()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	// Releasing subscribers first closes the hijacked websocket streams.
	noiseSvc.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routeHandlers struct {
	classroom *handler.ClassroomHandler
	settings  *handler.SettingsHandler
	noise     *handler.NoiseHandler
	reports   *handler.ReportHandler
	metrics   *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	api.GET("/system/metrics", h.metrics.Snapshot)

	classes := api.Group("/classes")
	classes.GET("", h.classroom.List)
	classes.GET("/:classID", h.classroom.Get)
	classes.PUT("/:classID", h.classroom.Rename)
	classes.PUT("/:classID/filters", h.classroom.SetFilters)
	classes.POST("/:classID/reset", h.classroom.Reset)
	classes.POST("/:classID/students", h.classroom.AddStudent)
	classes.PUT("/:classID/students/:id", h.classroom.RenameStudent)
	classes.DELETE("/:classID/students/:id", h.classroom.DeleteStudent)
	classes.POST("/:classID/students/:id/negative", h.classroom.Negative)
	classes.POST("/:classID/students/:id/positive", h.classroom.Positive)
	classes.POST("/:classID/import", h.classroom.Import)
	classes.POST("/:classID/reports", h.reports.Generate)

	api.GET("/reports/download", h.reports.Download)
	api.GET("/reports/:jobID", h.reports.Status)

	api.GET("/clock", h.settings.Clock)
	api.POST("/clock/start", h.settings.StartClock)
	api.POST("/clock/pause", h.settings.PauseClock)

	settings := api.Group("/settings")
	settings.GET("/decay", h.settings.Decay)
	settings.PUT("/decay", h.settings.SetDecay)
	settings.GET("/work-mode", h.settings.WorkMode)
	settings.PUT("/work-mode", h.settings.SetWorkMode)

	api.GET("/backup", h.settings.ExportBackup)
	api.POST("/backup", h.settings.ImportBackup)

	noise := api.Group("/noise")
	noise.GET("", h.noise.Status)
	noise.PUT("/thresholds", h.noise.SetThreshold)
	noise.PUT("/gain", h.noise.SetGain)
	noise.PUT("/colors", h.noise.SetColors)
	noise.POST("/calibrate/silence", h.noise.CalibrateSilence)
	noise.POST("/calibrate/talk", h.noise.CalibrateTalk)
	noise.POST("/samples", h.noise.Sample)
	noise.POST("/enable", h.noise.EnableMic)
	noise.POST("/disable", h.noise.DisableMic)
	noise.GET("/stream", h.noise.Stream)
}

// openStore selects the document store driver. The returned func releases connections.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (kvstore.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logr.Warn("memory store selected; documents are lost on restart")
		return kvstore.NewMemoryStore(), noop, nil
	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return kvstore.NewRedisStore(client, cfg.Store.RedisPrefix), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store := kvstore.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("migrate documents table: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	case config.StoreFile, "":
		store, err := kvstore.NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildReports(ctx context.Context, cfg *config.Config, classes *service.ClassroomService, validate *validator.Validate, metrics *service.MetricsService, logr *zap.Logger) (*service.ReportService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(classes, files, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr, nil, nil)
	repo := repository.NewReportRepository()

	worker := service.NewReportWorker(repo, exporter, cfg.Reports.WorkerRetries, metrics, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(repo, classes, queue, exporter, validate, metrics, logr,
		service.ReportServiceConfig{ResultTTL: cfg.Reports.SignedURLTTL, CleanupInterval: cfg.Reports.CleanupInterval})
	reportSvc.StartCleanup(ctx)
	return reportSvc, queue, nil
}

func secureHeaders(cfg *config.Config) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      cfg.Env != config.EnvProduction,
	})
	return func(c *gin.Context) {
		if err := mw.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}

// originPatterns turns CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
