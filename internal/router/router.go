package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-attendance-api/internal/handler"
	"github.com/noah-isme/classroom-attendance-api/internal/middleware"
	"github.com/noah-isme/classroom-attendance-api/internal/models"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
	"github.com/noah-isme/classroom-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-attendance-api/pkg/middleware/requestid"
)

// Deps holds everything the HTTP surface is built from.
type Deps struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	EnableDocs     bool

	Tokens     *service.TokenService
	Auth       *service.AuthService
	Classes    *service.ClassService
	Attendance *service.AttendanceService
	Metrics    *service.MetricsService

	// Dependencies are pinged by /ready.
	Dependencies map[string]handler.Pinger
}

// New builds the gin engine with the authorization pipeline in front of every
// protected route: identity, then role, then per-class ownership inside the services.
func New(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.AuditContext())

	metricsHandler := handler.NewMetricsHandler(deps.Metrics, deps.Dependencies)
	authHandler := handler.NewAuthHandler(deps.Auth)
	classHandler := handler.NewClassHandler(deps.Classes)
	attendanceHandler := handler.NewAttendanceHandler(deps.Attendance)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authn := middleware.JWT(deps.Tokens)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/me", authn, authHandler.Me)
		auth.GET("/me", authn, authHandler.Me)
	}

	class := r.Group("/class", authn)
	{
		class.POST("", teacher, classHandler.Create)
		class.POST("/:id/add-student", teacher, classHandler.AddStudent)
		class.GET("/:id", classHandler.Get)
		class.GET("/:id/my-attendance", student, attendanceHandler.MyAttendance)
		class.GET("/:id/my-attendence", student, attendanceHandler.MyAttendance)
		class.GET("/:id/attendance/export", teacher, attendanceHandler.Export)
	}

	r.GET("/students", authn, teacher, classHandler.ListStudents)

	attendance := r.Group("/attendance", authn, teacher)
	{
		attendance.POST("/start", attendanceHandler.Start)
		attendance.POST("/mark", attendanceHandler.Mark)
		attendance.POST("/done", attendanceHandler.Done)
		attendance.GET("/:classId/session", attendanceHandler.Session)
	}

	return r
}
