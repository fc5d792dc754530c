package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-api/api/swagger"
	"github.com/noah-isme/uni-api/internal/handler"
	"github.com/noah-isme/uni-api/internal/middleware"
	"github.com/noah-isme/uni-api/internal/repository"
	"github.com/noah-isme/uni-api/internal/service"
	"github.com/noah-isme/uni-api/pkg/cache"
	"github.com/noah-isme/uni-api/pkg/config"
	"github.com/noah-isme/uni-api/pkg/database"
	"github.com/noah-isme/uni-api/pkg/export"
	"github.com/noah-isme/uni-api/pkg/gateway"
	"github.com/noah-isme/uni-api/pkg/jobs"
	"github.com/noah-isme/uni-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-api/pkg/storage"
)

// @title University Registrar API
// @version 1.0.0
// @description Course registration, grading and tuition for a university
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Cache.Enabled
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without cache", zap.Error(err))
			cacheEnabled = false
		} else {
			redisRepo := repository.NewCacheRepository(client, "uni")
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.FinalGradeTTL, logr, cacheEnabled)

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Syllabus.SignedURLSecret, cfg.Syllabus.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	gradeRecordRepo := repository.NewGradeRecordRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	semesterSvc := service.NewSemesterService(semesterRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)
	lectureSvc := service.NewLectureService(lectureRepo, courseRepo, semesterRepo, semesterSvc, userRepo, validate, logr, nil)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, lectureRepo, validate, logr)
	paymentSvc := service.NewPaymentService(courseRepo, paymentRepo, userRepo, semesterSvc, gateway.NewSandbox(logr), validate, logr, service.PaymentConfig{
		PerCredit:       cfg.Fees.PerCredit,
		GovernmentGrant: cfg.Fees.GovernmentGrant,
	})
	calculator := service.NewGradeCalculator(gradeRepo, courseRepo, cacheSvc, logr, service.GradeCalculatorConfig{
		FinalGradeTTL: cfg.Cache.FinalGradeTTL,
		GPATTL:        cfg.Cache.GPATTL,
	})
	registrationSvc := service.NewRegistrationService(
		semesterSvc,
		userRepo,
		courseRepo,
		lectureRepo,
		service.NewPrerequisiteChecker(courseRepo),
		registrationRepo,
		paymentSvc,
		calculator,
		metrics,
		logr,
		service.RegistrationConfig{Window: cfg.Registration.Window},
	)

	worker := service.NewGradeRecordWorker(lectureRepo, gradeRepo, calculator, gradeRecordRepo, metrics, logr)
	queue := jobs.NewQueue("grade-records", worker.Handle, jobs.QueueConfig{
		Workers:       cfg.Jobs.Workers,
		BufferSize:    cfg.Jobs.BufferSize,
		MaxRetries:    cfg.Jobs.MaxRetries,
		RetryDelay:    cfg.Jobs.RetryDelay,
		MaxRetryDelay: cfg.Jobs.MaxRetryDelay,
		JobTimeout:    cfg.Jobs.Timeout,
		OnDrop:        worker.Abandon,
		Logger:        logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	gradeSvc := service.NewGradeService(gradeRepo, assignmentRepo, lectureRepo, userRepo, gradeRecordRepo, calculator, queue, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, lectureRepo, validate, logr, nil)
	calendarSvc := service.NewCalendarService(semesterSvc, lectureSvc, service.NewLogCalendarPublisher(logr), logr, service.CalendarConfig{})
	syllabusSvc := service.NewSyllabusService(lectureRepo, semesterRepo, userRepo, export.NewPDFExporter(), store, signer, validate, logr)
	exportSvc := service.NewExportService(lectureRepo, gradeRecordRepo, logr, export.NewCSVExporter(export.WithBOM()), nil)

	if cfg.Cron.Enabled {
		lifecycle := service.NewStudentLifecycleService(userRepo, paymentRepo, gradeRecordRepo, semesterSvc, paymentSvc, metrics, logr, nil)
		scheduler := service.NewScheduler(lifecycle, logr, service.SchedulerConfig{
			DeactivateSchedule: cfg.Cron.DeactivateSchedule,
			GraduateSchedule:   cfg.Cron.GraduateSchedule,
			Timeout:            cfg.Cron.Timeout,
		})
		if err := scheduler.Start(); err != nil {
			logr.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	ops := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Semesters:    handler.NewSemesterHandler(semesterSvc),
		Courses:      handler.NewCourseHandler(courseSvc, lectureSvc),
		Registration: handler.NewRegistrationHandler(registrationSvc),
		Grades:       handler.NewGradeHandler(gradeSvc, assignmentSvc, exportSvc),
		Payments:     handler.NewPaymentHandler(paymentSvc),
		Attendance:   handler.NewAttendanceHandler(attendanceSvc),
		Documents:    handler.NewDocumentHandler(calendarSvc, syllabusSvc),
	}, authSvc, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
