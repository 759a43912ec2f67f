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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Mahad-Ghauri/School-Backend/api/swagger"
	"github.com/Mahad-Ghauri/School-Backend/internal/handler"
	"github.com/Mahad-Ghauri/School-Backend/internal/middleware"
	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/repository"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	"github.com/Mahad-Ghauri/School-Backend/pkg/cache"
	"github.com/Mahad-Ghauri/School-Backend/pkg/config"
	"github.com/Mahad-Ghauri/School-Backend/pkg/database"
	"github.com/Mahad-Ghauri/School-Backend/pkg/logger"
	corsmiddleware "github.com/Mahad-Ghauri/School-Backend/pkg/middleware/cors"
	reqidmiddleware "github.com/Mahad-Ghauri/School-Backend/pkg/middleware/requestid"
	"github.com/Mahad-Ghauri/School-Backend/pkg/storage"
)

// @title School Administration API
// @version 1.0.0
// @description Back-end for student, fee and payroll administration
// @BasePath /api
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: report caching and login lockout degrade to
	// no-ops when it is unreachable.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	classRepo := repository.NewClassRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	feePaymentRepo := repository.NewFeePaymentRepository(db)
	salaryVoucherRepo := repository.NewSalaryVoucherRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authSvc := service.NewAuthService(userRepo, cacheRepo, service.AuthConfig{
		Secret:          cfg.JWT.Secret,
		AccessExpiry:    cfg.JWT.Expiration,
		RefreshExpiry:   cfg.JWT.RefreshExpiration,
		LockoutAttempts: cfg.Lockout.MaxAttempts,
		LockoutWindow:   cfg.Lockout.Window,
	}, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, classRepo, guardianRepo, validate, logr)
	guardianSvc := service.NewGuardianService(guardianRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	facultySvc := service.NewFacultyService(facultyRepo, validate, logr)
	discountSvc := service.NewDiscountService(discountRepo, studentRepo, classRepo, validate, logr)
	voucherSvc := service.NewVoucherService(voucherRepo, studentRepo, enrollmentRepo, classRepo, discountRepo, cacheRepo, cfg.Vouchers.DueDay, validate, logr)
	feePaymentSvc := service.NewFeePaymentService(feePaymentRepo, voucherRepo, cacheRepo, validate, logr)
	salarySvc := service.NewSalaryService(salaryVoucherRepo, facultyRepo, cacheRepo, validate, logr)
	expenseSvc := service.NewExpenseService(expenseRepo, cacheRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, cacheRepo, cfg.Reports.CacheTTL, store, signer, logr)
	auditSvc := service.NewAuditService(auditRepo, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)
	metricsSvc := service.NewMetricsService()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	// Expired exports are reproducible, so a periodic sweep is enough.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := store.CleanupOlderThan(cfg.Reports.Retention); err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if removed > 0 {
					logr.Sugar().Infow("expired exports removed", "count", removed)
				}
			}
		}
	}()

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	guardianHandler := handler.NewGuardianHandler(guardianSvc)
	classHandler := handler.NewClassHandler(classSvc)
	facultyHandler := handler.NewFacultyHandler(facultySvc)
	discountHandler := handler.NewDiscountHandler(discountSvc)
	voucherHandler := handler.NewVoucherHandler(voucherSvc, metricsSvc)
	feePaymentHandler := handler.NewFeePaymentHandler(feePaymentSvc, metricsSvc)
	salaryHandler := handler.NewSalaryHandler(salarySvc, metricsSvc)
	expenseHandler := handler.NewExpenseHandler(expenseSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	// Export downloads carry their own signed, expiring token.
	api.GET("/reports/exports/:token", reportHandler.Download)

	auth := api.Group("", middleware.JWT(authSvc))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	finance := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(auditSvc, action, resource)
	}

	auth.POST("/auth/logout", authHandler.Logout)
	auth.GET("/auth/me", authHandler.Me)

	users := auth.Group("/users", adminOnly)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", audit("create", "user"), userHandler.Create)
		users.PUT("/:id", audit("update", "user"), userHandler.Update)
	}

	students := auth.Group("/students")
	{
		students.GET("", studentHandler.List)
		students.GET("/:id", studentHandler.Get)
		students.GET("/:id/history", studentHandler.History)
		students.GET("/:id/guardians", studentHandler.Guardians)
		students.GET("/:id/vouchers", voucherHandler.StudentHistory)
		students.GET("/:id/due", reportHandler.StudentDue)

		students.POST("", adminOnly, audit("create", "student"), studentHandler.Create)
		students.PUT("/:id", adminOnly, audit("update", "student"), studentHandler.Update)
		students.DELETE("/:id", adminOnly, audit("deactivate", "student"), studentHandler.Deactivate)
		students.POST("/:id/activate", adminOnly, audit("activate", "student"), studentHandler.Activate)
		students.POST("/:id/enroll", adminOnly, audit("enroll", "student"), studentHandler.Enroll)
		students.POST("/:id/withdraw", adminOnly, audit("withdraw", "student"), studentHandler.Withdraw)
		students.POST("/:id/transfer", adminOnly, audit("transfer", "student"), studentHandler.Transfer)
		students.POST("/:id/promote", adminOnly, audit("promote", "student"), studentHandler.Promote)
		students.POST("/:id/expel", adminOnly, audit("expel", "student"), studentHandler.Expel)
		students.POST("/:id/clear-expulsion", adminOnly, audit("clear-expulsion", "student"), studentHandler.ClearExpulsion)
		students.POST("/:id/guardians", adminOnly, audit("link-guardian", "student"), studentHandler.LinkGuardian)
		students.DELETE("/:id/guardians/:guardianId", adminOnly, audit("unlink-guardian", "student"), studentHandler.UnlinkGuardian)
	}

	guardians := auth.Group("/guardians")
	{
		guardians.GET("", guardianHandler.List)
		guardians.GET("/:id", guardianHandler.Get)
		guardians.GET("/:id/students", guardianHandler.Students)

		guardians.POST("", adminOnly, audit("create", "guardian"), guardianHandler.Create)
		guardians.PUT("/:id", adminOnly, audit("update", "guardian"), guardianHandler.Update)
		guardians.DELETE("/:id", adminOnly, audit("delete", "guardian"), guardianHandler.Delete)
	}

	classes := auth.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/sections", classHandler.Sections)
		classes.GET("/:id/fee-structures", classHandler.FeeStructures)

		classes.POST("", adminOnly, audit("create", "class"), classHandler.Create)
		classes.PUT("/:id", adminOnly, audit("update", "class"), classHandler.Update)
		classes.DELETE("/:id", adminOnly, audit("deactivate", "class"), classHandler.Deactivate)
		classes.POST("/:id/sections", adminOnly, audit("add-section", "class"), classHandler.AddSection)
		classes.DELETE("/:id/sections/:sectionId", adminOnly, audit("delete-section", "class"), classHandler.DeleteSection)
		classes.POST("/:id/fee-structures", adminOnly, audit("add-fee-structure", "class"), classHandler.AddFeeStructure)
	}

	faculty := auth.Group("/faculty")
	{
		faculty.GET("", facultyHandler.List)
		faculty.GET("/:id", facultyHandler.Get)
		faculty.GET("/:id/salary-structures", facultyHandler.SalaryStructures)

		faculty.POST("", adminOnly, audit("create", "faculty"), facultyHandler.Create)
		faculty.PUT("/:id", adminOnly, audit("update", "faculty"), facultyHandler.Update)
		faculty.DELETE("/:id", adminOnly, audit("deactivate", "faculty"), facultyHandler.Deactivate)
		faculty.POST("/:id/activate", adminOnly, audit("activate", "faculty"), facultyHandler.Activate)
		faculty.POST("/:id/salary-structures", adminOnly, audit("add-salary-structure", "faculty"), facultyHandler.AddSalaryStructure)
	}

	discounts := auth.Group("/discounts", finance)
	{
		discounts.GET("", discountHandler.List)
		discounts.POST("", audit("set", "discount"), discountHandler.Set)
		discounts.DELETE("/:id", audit("remove", "discount"), discountHandler.Remove)
	}

	vouchers := auth.Group("/vouchers")
	{
		vouchers.GET("", voucherHandler.List)
		vouchers.GET("/:id", voucherHandler.Get)
		vouchers.GET("/:id/pdf", voucherHandler.DownloadPDF)
		vouchers.GET("/:id/payments", feePaymentHandler.ListByVoucher)

		vouchers.POST("/generate", finance, audit("generate", "voucher"), voucherHandler.Generate)
		vouchers.POST("/generate-bulk", finance, audit("generate-bulk", "voucher"), voucherHandler.GenerateBulk)
		vouchers.POST("/:id/items", finance, audit("append-items", "voucher"), voucherHandler.AppendItems)
		vouchers.POST("/:id/payments", finance, audit("record-payment", "voucher"), feePaymentHandler.Record)
		vouchers.DELETE("/:id", adminOnly, audit("delete", "voucher"), voucherHandler.Delete)
	}

	auth.GET("/payments", feePaymentHandler.List)
	auth.GET("/payments/:id/receipt", feePaymentHandler.Receipt)
	auth.DELETE("/payments/:id", adminOnly, audit("delete", "payment"), feePaymentHandler.Delete)

	salaries := auth.Group("/salaries", finance)
	{
		salaries.GET("", salaryHandler.List)
		salaries.GET("/:id", salaryHandler.Get)
		salaries.GET("/:id/pdf", salaryHandler.DownloadPDF)

		salaries.POST("/generate", audit("generate", "salary-voucher"), salaryHandler.Generate)
		salaries.POST("/generate-bulk", audit("generate-bulk", "salary-voucher"), salaryHandler.GenerateBulk)
		salaries.POST("/:id/adjustments", audit("add-adjustment", "salary-voucher"), salaryHandler.AddAdjustment)
		salaries.POST("/:id/payments", audit("record-payment", "salary-voucher"), salaryHandler.RecordPayment)
		salaries.DELETE("/:id", adminOnly, audit("delete", "salary-voucher"), salaryHandler.Delete)
	}

	expenses := auth.Group("/expenses", finance)
	{
		expenses.GET("", expenseHandler.List)
		expenses.GET("/summary", expenseHandler.Summary)
		expenses.GET("/:id", expenseHandler.Get)

		expenses.POST("", audit("create", "expense"), expenseHandler.Create)
		expenses.PUT("/:id", audit("update", "expense"), expenseHandler.Update)
		expenses.DELETE("/:id", audit("delete", "expense"), expenseHandler.Delete)
	}

	reports := auth.Group("/reports", finance)
	{
		reports.GET("/defaulters", reportHandler.Defaulters)
		reports.GET("/defaulters/export", reportHandler.ExportDefaulters)
		reports.GET("/fees", reportHandler.FeeSummary)
		reports.GET("/salaries", reportHandler.SalarySummary)
		reports.GET("/classes", reportHandler.ClassCollection)
		reports.GET("/finance", reportHandler.MonthlyFinance)
		reports.GET("/finance/export", reportHandler.ExportMonthlyFinance)
	}

	auth.GET("/audit-logs", adminOnly, auditHandler.List)

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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
