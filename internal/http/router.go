package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	httpH "github.com/yungbote/neurobridge-tutor/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-tutor/internal/http/middleware"
	"github.com/yungbote/neurobridge-tutor/internal/observability"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	AuthHandler     *httpH.AuthHandler
	ChildHandler    *httpH.ChildHandler
	SessionHandler  *httpH.SessionHandler
	LearnHandler    *httpH.LearnHandler
	ProgressHandler *httpH.ProgressHandler
	AdminHandler    *httpH.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/healthz", cfg.HealthHandler.HealthCheck)
		}
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/register", cfg.AuthHandler.Register)
			api.POST("/auth/login", cfg.AuthHandler.Login)
			api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.GET("/auth/me", cfg.AuthHandler.Me)
		}

		// Children
		if cfg.ChildHandler != nil {
			protected.POST("/children", cfg.ChildHandler.Create)
			protected.GET("/children", cfg.ChildHandler.List)
			protected.GET("/children/:id", cfg.ChildHandler.Get)
			protected.PUT("/children/:id/neuro", cfg.ChildHandler.UpsertNeuro)
			protected.POST("/children/:id/disabilities", cfg.ChildHandler.AddDisability)
			protected.DELETE("/children/:id/disabilities/:type", cfg.ChildHandler.RemoveDisability)
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions/start", cfg.SessionHandler.Start)
			protected.POST("/sessions/:id/end", cfg.SessionHandler.End)
			protected.GET("/sessions/:id", cfg.SessionHandler.Get)
		}

		// Learning
		if cfg.LearnHandler != nil {
			protected.POST("/learn/ask", cfg.LearnHandler.Ask)
			protected.POST("/learn/signal", cfg.LearnHandler.Signal)
			protected.POST("/learn/feedback", cfg.LearnHandler.Feedback)
			protected.GET("/learn/usage", cfg.LearnHandler.Usage)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			protected.GET("/progress/:child_id", cfg.ProgressHandler.Dashboard)
			protected.GET("/progress/:child_id/mastery", cfg.ProgressHandler.Mastery)
			protected.GET("/progress/:child_id/timeline", cfg.ProgressHandler.Timeline)
			protected.GET("/progress/:child_id/report", cfg.ProgressHandler.Report)
			protected.GET("/progress/:child_id/review-queue", cfg.ProgressHandler.ReviewQueue)
		}

		// Admin
		if cfg.AdminHandler != nil && cfg.AuthMiddleware != nil {
			admin := protected.Group("/admin", cfg.AuthMiddleware.RequireRole(domain.RoleAdmin))
			admin.POST("/ingest", cfg.AdminHandler.Ingest)
			admin.POST("/reindex", cfg.AdminHandler.Reindex)
		}
	}

	return r
}
