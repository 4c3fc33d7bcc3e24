package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-results-api/api/swagger"
	"github.com/noah-isme/school-results-api/internal/handler"
	"github.com/noah-isme/school-results-api/internal/middleware"
	"github.com/noah-isme/school-results-api/internal/models"
	"github.com/noah-isme/school-results-api/internal/service"
	"github.com/noah-isme/school-results-api/pkg/config"
	"github.com/noah-isme/school-results-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-results-api/pkg/middleware/requestid"
)

// routeHandlers groups the HTTP handlers mounted by newRouter. dashboard and
// reports are nil when their feature flag is off.
type routeHandlers struct {
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	students   *handler.StudentHandler
	results    *handler.ResultHandler
	transfer   *handler.TransferHandler
	attendance *handler.AttendanceHandler
	homework   *handler.HomeworkHandler
	school     *handler.SchoolHandler
	dashboard  *handler.DashboardHandler
	reports    *handler.ReportHandler
	metrics    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/metrics", h.metrics.Prometheus)
	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(middleware.StaffRoles...)
	admins := middleware.RequireRoles(middleware.AdminRoles...)
	anyone := middleware.RequireRoles(append(middleware.StaffRoles, models.RoleStudent)...)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/student-login", h.auth.StudentLogin)
	if h.reports != nil {
		api.GET("/reports/download/:token", h.reports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.GET("/auth/me", anyone, h.auth.Me)
	secured.POST("/auth/change-password", anyone, h.auth.ChangePassword)

	users := secured.Group("/users", admins)
	users.GET("", h.users.List)
	users.POST("", h.users.Create)
	users.GET("/:id", h.users.Get)
	users.PUT("/:id", h.users.Update)
	users.DELETE("/:id", h.users.Delete)
	users.GET("/:id/assignments", h.users.Assignments)
	users.PUT("/:id/assignments", h.users.ReplaceAssignments)

	students := secured.Group("/students")
	students.GET("", staff, h.students.List)
	students.POST("", admins, h.students.Create)
	students.GET("/:id", staff, h.students.Get)
	students.PUT("/:id", admins, h.students.Update)
	students.DELETE("/:id", admins, h.students.Delete)
	students.PUT("/:id/marks", staff, h.students.UpdateMarks)
	students.PUT("/:id/manual-total", admins, h.students.SetManualTotal)
	students.PUT("/:id/password", admins, h.students.SetPassword)
	students.GET("/:id/result", middleware.RequireRolesOrSelf(middleware.StaffRoles...), h.results.StudentResult)

	classes := secured.Group("/classes/:class", staff)
	classes.GET("/results", h.results.ClassResults)
	classes.GET("/results/export", h.transfer.ExportResults)
	classes.GET("/bands", h.results.Bands)
	classes.GET("/subject-stats", h.results.SubjectStats)
	classes.POST("/marks/import", h.transfer.ImportMarks)
	classes.GET("/attendance/summary", h.attendance.Summary)
	if h.dashboard != nil {
		classes.GET("/dashboard", h.dashboard.Class)
	}
	secured.GET("/results/comparative", staff, h.results.Comparative)

	secured.POST("/attendance", staff, h.attendance.Mark)
	secured.GET("/attendance", anyone, h.attendance.List)

	homework := secured.Group("/homework")
	homework.GET("", anyone, h.homework.List)
	homework.GET("/:id", anyone, h.homework.Get)
	homework.POST("", staff, h.homework.Create)
	homework.PUT("/:id", staff, h.homework.Update)
	homework.DELETE("/:id", staff, h.homework.Delete)
	homework.GET("/:id/submissions", staff, h.homework.ListSubmissions)
	homework.PUT("/:id/submissions", staff, h.homework.SetSubmission)

	secured.GET("/school", anyone, h.school.Get)
	secured.PUT("/school", admins, h.school.Update)
	secured.GET("/system/metrics", admins, h.metrics.Snapshot)

	if h.reports != nil {
		reports := secured.Group("/reports", staff)
		reports.POST("", h.reports.Create)
		reports.GET("/:id", h.reports.Status)
	}

	return r
}
