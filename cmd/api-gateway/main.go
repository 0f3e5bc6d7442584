package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/creche-api/api/swagger"
	"github.com/noah-isme/creche-api/internal/handler"
	"github.com/noah-isme/creche-api/internal/middleware"
	"github.com/noah-isme/creche-api/internal/repository"
	"github.com/noah-isme/creche-api/internal/service"
	"github.com/noah-isme/creche-api/internal/store"
	"github.com/noah-isme/creche-api/pkg/cache"
	"github.com/noah-isme/creche-api/pkg/config"
	"github.com/noah-isme/creche-api/pkg/database"
	"github.com/noah-isme/creche-api/pkg/jobs"
	"github.com/noah-isme/creche-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/creche-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/creche-api/pkg/middleware/requestid"
	"github.com/noah-isme/creche-api/pkg/observability"
	"github.com/noah-isme/creche-api/pkg/storage"
)

// @title Creche API
// @version 1.0.0
// @description Role-based data access for a crèche: children, attendance, events, payments, media and notifications.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		observability.CaptureErr(err)
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metricsSvc := service.NewMetricsService()
	readiness := map[string]handler.Pinger{}

	base, db, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close() //nolint:errcheck
		readiness["database"] = db
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving uncached", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, cfg.Cache.Prefix, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			readiness["redis"] = handler.PingFunc(repo.Ping)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	st := store.WithSingleflight(store.WithCache(store.WithMetrics(base, metricsSvc), cacheSvc, cfg.Cache.TTL))

	userRepo := repository.NewUserRepository(st)
	staffRepo := repository.NewStaffRepository(st)
	childRepo := repository.NewChildRepository(st)
	attendanceRepo := repository.NewAttendanceRepository(st)
	eventRepo := repository.NewEventRepository(st)
	announcementRepo := repository.NewAnnouncementRepository(st)
	paymentRepo := repository.NewPaymentRepository(st)
	consentRepo := repository.NewConsentRepository(st)
	mediaRepo := repository.NewMediaRepository(st)
	notificationRepo := repository.NewNotificationRepository(st)

	files, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		return fmt.Errorf("media storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)
	go files.SweepUploads(ctx, cfg.Media.SweepEvery, cfg.Media.UploadTTL, logr)

	validate := service.NewValidator()

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, metricsSvc, logr)
	queue := jobs.NewQueue("notifications", notificationSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	notificationSvc.UseQueue(queue)
	metricsSvc.TrackQueue("notifications", queue)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, validate, logr)
	childSvc := service.NewChildService(childRepo, userRepo, staffRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, childRepo, notificationSvc, userRepo, validate, logr)
	eventSvc := service.NewEventService(eventRepo, notificationSvc, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, notificationSvc, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, childRepo, userRepo, cfg.Payments.DefaultCurrency, validate, logr)
	webhookSvc := service.NewWebhookService(paymentRepo, service.WebhookConfig{
		Secret:    cfg.Payments.WebhookSecret,
		Tolerance: cfg.Payments.WebhookTolerance,
	}, metricsSvc, logr)
	consentSvc := service.NewConsentService(consentRepo, childRepo, userRepo, validate, logr)
	mediaSvc := service.NewMediaService(mediaRepo, childRepo, consentSvc, files, signer, userRepo, metricsSvc, service.MediaConfig{
		MaxFileSize:      cfg.Media.MaxFileSizeBytes,
		AllowedMIMETypes: cfg.Media.AllowedMIMEs,
		DownloadPath:     cfg.APIPrefix + "/media/file",
	}, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Children:      childRepo,
		ChildDir:      childRepo,
		Staff:         staffRepo,
		Parents:       userRepo,
		Attendance:    attendanceRepo,
		Payments:      paymentRepo,
		ParentPayment: paymentSvc,
		Events:        eventSvc,
		Notifications: notificationSvc,
		Cache:         cacheSvc,
		Logger:        logr,
	})
	exportSvc := service.NewExportService(attendanceRepo, paymentRepo, childRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(observability.GinMiddleware())
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Staff:         handler.NewStaffHandler(staffSvc),
		Children:      handler.NewChildHandler(childSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Events:        handler.NewEventHandler(eventSvc, announcementSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Webhooks:      handler.NewWebhookHandler(webhookSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Consents:      handler.NewConsentHandler(consentSvc),
		Media:         handler.NewMediaHandler(mediaSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Exports:       handler.NewExportHandler(exportSvc),
		Metrics:       metricsHandler,
	}.Register(r.Group(cfg.APIPrefix), authSvc, userRepo, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		logr.Warn("notification queue did not drain", zap.Error(err))
	}
	return nil
}

// openStore builds the configured table store. The database handle is nil for
// the REST driver.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (store.Store, *sqlx.DB, error) {
	if cfg.Store.Driver == config.StoreDriverPostgREST {
		logr.Info("using REST table store", zap.String("url", cfg.Store.PostgRESTURL))
		return store.NewPostgRESTStore(store.PostgRESTOptions{
			BaseURL:    cfg.Store.PostgRESTURL,
			APIKey:     cfg.Store.APIKey,
			Timeout:    cfg.Store.Timeout,
			RetryCount: cfg.Store.RetryCount,
		}), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logr.Info("migrations applied")
	}
	return store.NewPostgresStore(db), db, nil
}
