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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/casa-azul-api/api/swagger"
	"github.com/noah-isme/casa-azul-api/internal/handler"
	"github.com/noah-isme/casa-azul-api/internal/middleware"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/cache"
	"github.com/noah-isme/casa-azul-api/pkg/config"
	"github.com/noah-isme/casa-azul-api/pkg/database"
	"github.com/noah-isme/casa-azul-api/pkg/events"
	"github.com/noah-isme/casa-azul-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/casa-azul-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/casa-azul-api/pkg/middleware/requestid"
)

// @title Casa Azul API
// @version 1.0.0
// @description Enrollment, grade and attendance ledgers with dashboards and reports
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

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	publisher, err := events.New(cfg.Events, logr)
	if err != nil {
		logr.Warn("nats unavailable, events disabled", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()
	policy := service.PolicyFromConfig(cfg.Academic)

	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && cacheRepo.Enabled())
	accessSvc := service.NewAccessService(catalogRepo, cacheSvc, cfg.Permissions.CacheTTL, logr)
	notifier := service.NewChangeNotifier(publisher, cacheSvc, metricsSvc, logr)

	userSvc := service.NewUserService(userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, accessSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	aggregateSvc := service.NewAggregationService(enrollmentRepo, gradeRepo, attendanceRepo, accessSvc, policy)
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, accessSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, offeringRepo, accessSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, validate, logr)
	offeringSvc := service.NewOfferingService(offeringRepo, accessSvc, notifier, validate, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, periodSvc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, offeringRepo, accessSvc, notifier, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, offeringRepo, aggregateSvc, accessSvc, notifier, metricsSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, offeringRepo, accessSvc, notifier, metricsSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:    dashboardRepo,
		Periods: periodRepo,
		Access:  accessSvc,
		Cache:   cacheSvc,
		Logger:  logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:               cfg.Dashboard.CacheTTL,
			RecentEnrollmentsLimit: cfg.Dashboard.RecentEnrollmentsLimit,
		},
	})
	reportSvc := service.NewReportService(reportRepo, dashboardRepo, offeringRepo, attendanceRepo, accessSvc, policy, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingFunc(cacheRepo.Ping),
	})
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, gradeSvc, attendanceSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	offeringHandler := handler.NewOfferingHandler(offeringSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, aggregateSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	perm := func(slug string) gin.HandlerFunc { return middleware.RequirePermission(accessSvc, slug) }
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	auth := secured.Group("/auth")
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", authHandler.Me)
	auth.POST("/change-password", authHandler.ChangePassword)

	secured.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)

	users := secured.Group("/users", adminOnly)
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Deactivate)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/admin", perm(models.PermDashboardAdminView), dashboardHandler.Admin)
	dashboard.GET("/teacher", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), perm(models.PermOfferingsView), dashboardHandler.Teacher)

	catalog := secured.Group("/catalog")
	catalog.GET("/roles", adminOnly, catalogHandler.Roles)
	catalog.GET("/permissions", adminOnly, catalogHandler.Permissions)
	catalog.GET("/periods", catalogHandler.Periods)

	students := secured.Group("/students")
	students.GET("", perm(models.PermStudentsView), studentHandler.List)
	students.POST("", perm(models.PermStudentsManage), studentHandler.Create)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id", perm(models.PermStudentsManage), studentHandler.Update)
	students.PATCH("/:id/status", perm(models.PermStudentsManage), studentHandler.UpdateStatus)
	students.DELETE("/:id", perm(models.PermStudentsManage), studentHandler.Delete)
	students.GET("/:id/grades", perm(models.PermGradesView), studentHandler.Grades)
	students.GET("/:id/attendance", perm(models.PermAttendanceView), studentHandler.Attendance)
	students.GET("/:id/history", studentHandler.History)
	students.GET("/:id/offerings/:offeringId/grades", perm(models.PermGradesView), gradeHandler.ByStudentOffering)

	teachers := secured.Group("/teachers")
	teachers.GET("", perm(models.PermTeachersView), teacherHandler.List)
	teachers.POST("", perm(models.PermTeachersManage), teacherHandler.Create)
	teachers.GET("/:id", perm(models.PermTeachersView), teacherHandler.Get)
	teachers.PUT("/:id", perm(models.PermTeachersManage), teacherHandler.Update)
	teachers.DELETE("/:id", perm(models.PermTeachersManage), teacherHandler.Delete)
	teachers.GET("/:id/offerings", perm(models.PermOfferingsView), teacherHandler.Offerings)

	courses := secured.Group("/courses")
	courses.GET("", perm(models.PermCoursesView), courseHandler.List)
	courses.POST("", perm(models.PermCoursesManage), courseHandler.Create)
	courses.GET("/:id", perm(models.PermCoursesView), courseHandler.Get)
	courses.PUT("/:id", perm(models.PermCoursesManage), courseHandler.Update)
	courses.DELETE("/:id", perm(models.PermCoursesManage), courseHandler.Delete)

	periods := secured.Group("/periods")
	periods.GET("", periodHandler.List)
	periods.GET("/active", periodHandler.Active)
	periods.GET("/:id", periodHandler.Get)
	periods.POST("", perm(models.PermPeriodsManage), periodHandler.Create)
	periods.PUT("/:id", perm(models.PermPeriodsManage), periodHandler.Update)

	offerings := secured.Group("/offerings")
	offerings.GET("", perm(models.PermOfferingsView), offeringHandler.List)
	offerings.GET("/available", perm(models.PermEnrollmentsManage), offeringHandler.Available)
	offerings.POST("", perm(models.PermOfferingsManage), offeringHandler.Create)
	offerings.GET("/:id", perm(models.PermOfferingsView), offeringHandler.Get)
	offerings.PATCH("/:id", perm(models.PermOfferingsManage), offeringHandler.Update)
	offerings.PUT("/:id/teacher", perm(models.PermOfferingsManage), offeringHandler.AssignTeacher)
	offerings.DELETE("/:id", perm(models.PermOfferingsManage), offeringHandler.Delete)
	offerings.GET("/:id/students", perm(models.PermOfferingsView), offeringHandler.Students)
	offerings.GET("/:id/grades", perm(models.PermGradesView), gradeHandler.ByOffering)
	offerings.GET("/:id/attendance", perm(models.PermAttendanceView), attendanceHandler.ByOffering)
	offerings.DELETE("/:id/attendance", perm(models.PermAttendanceDelete), attendanceHandler.DeleteByDate)
	offerings.GET("/:id/attendance/roster", perm(models.PermAttendanceTake), attendanceHandler.Roster)
	offerings.GET("/:id/attendance/statistics", perm(models.PermAttendanceView), attendanceHandler.Statistics)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", perm(models.PermEnrollmentsView), enrollmentHandler.List)
	enrollments.POST("", perm(models.PermEnrollmentsManage), enrollmentHandler.Enroll)
	enrollments.POST("/course", perm(models.PermEnrollmentsManage), enrollmentHandler.EnrollInCourse)
	enrollments.POST("/withdraw-course", perm(models.PermEnrollmentsManage), enrollmentHandler.WithdrawCourse)
	enrollments.GET("/:id", perm(models.PermEnrollmentsView), enrollmentHandler.Get)
	enrollments.PATCH("/:id/status", perm(models.PermEnrollmentsManage), enrollmentHandler.UpdateStatus)
	enrollments.DELETE("/:id", perm(models.PermEnrollmentsManage), enrollmentHandler.Withdraw)
	enrollments.GET("/:id/average", perm(models.PermGradesView), gradeHandler.Average)
	enrollments.GET("/:id/academic-status", perm(models.PermGradesView), gradeHandler.Status)
	enrollments.GET("/:id/attendance", perm(models.PermAttendanceView), attendanceHandler.Percentage)

	grades := secured.Group("/grades")
	grades.GET("", perm(models.PermGradesView), gradeHandler.List)
	grades.POST("", perm(models.PermGradesRecord), gradeHandler.Add)
	grades.POST("/bulk", perm(models.PermGradesRecord), gradeHandler.Bulk)
	grades.GET("/:id", perm(models.PermGradesView), gradeHandler.Get)
	grades.PUT("/:id", perm(models.PermGradesEdit), gradeHandler.Update)
	grades.DELETE("/:id", perm(models.PermGradesDelete), gradeHandler.Delete)

	attendance := secured.Group("/attendance")
	attendance.GET("", perm(models.PermAttendanceView), attendanceHandler.List)
	attendance.POST("", perm(models.PermAttendanceTake), attendanceHandler.Take)
	attendance.POST("/bulk", perm(models.PermAttendanceTake), attendanceHandler.Bulk)
	attendance.GET("/:id", perm(models.PermAttendanceView), attendanceHandler.Get)
	attendance.PUT("/:id", perm(models.PermAttendanceEdit), attendanceHandler.Update)

	reports := secured.Group("/reports")
	reports.Use(perm(models.PermReportsView))
	reports.GET("/general", adminOnly, reportHandler.General)
	reports.GET("/grades", reportHandler.Grades)
	reports.GET("/offerings/:id/grades", reportHandler.OfferingGrades)
	reports.GET("/offerings/:id/attendance", reportHandler.OfferingAttendance)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
