package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/thutoworks/thuto-api/api/swagger"
	"github.com/thutoworks/thuto-api/internal/authz"
	"github.com/thutoworks/thuto-api/internal/handler"
	"github.com/thutoworks/thuto-api/internal/middleware"
	"github.com/thutoworks/thuto-api/internal/models"
	"github.com/thutoworks/thuto-api/internal/repository"
	"github.com/thutoworks/thuto-api/internal/service"
	"github.com/thutoworks/thuto-api/pkg/cache"
	"github.com/thutoworks/thuto-api/pkg/config"
	"github.com/thutoworks/thuto-api/pkg/database"
	"github.com/thutoworks/thuto-api/pkg/jobs"
	"github.com/thutoworks/thuto-api/pkg/logger"
	corsmiddleware "github.com/thutoworks/thuto-api/pkg/middleware/cors"
	reqidmiddleware "github.com/thutoworks/thuto-api/pkg/middleware/requestid"
)

// @title Thuto API
// @version 1.0.0
// @description School management core: relationship-aware authorization and the assessment lifecycle
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var contexts cache.Cache = cache.Noop{}
	if cfg.Resolver.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		contexts = cache.NewRedisCache(redisClient)
	}

	// Repositories.
	accounts := repository.NewAccountRepository(db)
	relationships := repository.NewRelationshipRepository(db)
	classrooms := repository.NewClassroomRepository(db)
	assessments := repository.NewAssessmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	transcripts := repository.NewTranscriptRepository(db)
	activities := repository.NewActivityRepository(db)
	timetables := repository.NewTimetableRepository(db)
	audits := repository.NewAuditRepository(db)

	// Services.
	metricsService := service.NewMetricsService()
	auditService := service.NewAuditService(audits, logr)
	engine := authz.New(relationships, logr, metricsService.ObserveDecision)
	resolverService := service.NewResolverService(accounts, contexts, cfg.Resolver.CacheTTL, logr)
	authService := service.NewAuthService(accounts, nil, logr, auditService, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	accountService := service.NewAccountService(accounts, resolverService, engine, auditService, nil, logr)
	classroomService := service.NewClassroomService(classrooms, engine, auditService, logr)
	activityService := service.NewActivityService(activities, engine, auditService, nil, logr)
	timetableService := service.NewTimetableService(timetables, engine, auditService, logr)
	submissionService := service.NewSubmissionService(submissions, assessments, accounts, classrooms, auditService, nil, logr)
	transcriptService := service.NewTranscriptService(transcripts, submissions, assessments, assessments, accounts, auditService, nil, logr)

	var assessmentService *service.AssessmentService
	releaseQueue := jobs.New("grades-release", func(ctx context.Context, job jobs.Job[service.ReleaseGradesPayload]) error {
		return assessmentService.HandleReleaseJob(ctx, job)
	}, jobs.Config[service.ReleaseGradesPayload]{
		Workers:    cfg.Grades.ReleaseWorkers,
		BufferSize: cfg.Grades.ReleaseBufferSize,
		MaxRetries: cfg.Grades.ReleaseRetries,
		RetryDelay: cfg.Grades.ReleaseRetryDelay,
		OnDiscard: func(job jobs.Job[service.ReleaseGradesPayload], err error) {
			logr.Sugar().Errorw("grades release abandoned",
				"assessment_id", job.Payload.AssessmentID, "error", err)
		},
		Logger: logr,
	})
	assessmentService = service.NewAssessmentService(assessments, submissions, transcripts, classrooms, releaseQueue, auditService, nil, logr)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	releaseQueue.Start(queueCtx)
	defer releaseQueue.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	accountHandler := handler.NewAccountHandler(accountService)
	classroomHandler := handler.NewClassroomHandler(classroomService)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService)
	submissionHandler := handler.NewSubmissionHandler(submissionService)
	transcriptHandler := handler.NewTranscriptHandler(transcriptService)
	activityHandler := handler.NewActivityHandler(activityService)
	timetableHandler := handler.NewTimetableHandler(timetableService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService), middleware.ActorContext(resolverService))
	{
		protected.GET("/accounts/:id", accountHandler.Get)
		protected.PUT("/accounts/:id",
			middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin),
			accountHandler.Update)
		protected.GET("/accounts/:id/can-message", accountHandler.CanMessage)

		protected.GET("/classrooms/:id", classroomHandler.Get)
		protected.GET("/classrooms/:id/students", classroomHandler.Roster)

		staffOnly := middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin, models.RoleTeacher)
		protected.POST("/assessments", staffOnly, assessmentHandler.Create)
		protected.GET("/assessments/:id", staffOnly, assessmentHandler.Get)
		protected.POST("/assessments/:id/collect", staffOnly, assessmentHandler.Collect)
		protected.POST("/assessments/:id/release-grades", staffOnly, assessmentHandler.ReleaseGrades)
		protected.GET("/assessments/:id/submissions", staffOnly, submissionHandler.ListByAssessment)

		protected.POST("/submissions", staffOnly, submissionHandler.Create)
		protected.POST("/submissions/:id/excuse", staffOnly, submissionHandler.Excuse)

		protected.POST("/transcripts/grade", staffOnly, transcriptHandler.Grade)
		protected.GET("/students/:studentId/terms/:termId/report-card", transcriptHandler.ReportCard)
		protected.GET("/students/:studentId/terms/:termId/report-card/export", transcriptHandler.ExportReportCard)

		protected.POST("/activities", staffOnly, activityHandler.Log)
		protected.GET("/activities/:id", activityHandler.Get)

		protected.GET("/timetables/:id", timetableHandler.Get)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
