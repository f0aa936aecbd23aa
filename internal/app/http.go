package app

import (
	apphttp "github.com/yungbote/neurobridge-tutor/internal/http"
	httpH "github.com/yungbote/neurobridge-tutor/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-tutor/internal/http/middleware"
	"github.com/yungbote/neurobridge-tutor/internal/observability"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	Child    *httpH.ChildHandler
	Session  *httpH.SessionHandler
	Learn    *httpH.LearnHandler
	Progress *httpH.ProgressHandler
	Admin    *httpH.AdminHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, services Services, pingers map[string]httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(pingers),
		Auth:     httpH.NewAuthHandler(services.Auth),
		Child:    httpH.NewChildHandler(services.Child),
		Session:  httpH.NewSessionHandler(services.Session),
		Learn:    httpH.NewLearnHandler(services.Learning, services.Usage),
		Progress: httpH.NewProgressHandler(services.Progress),
		Admin:    httpH.NewAdminHandler(services.Ingest),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		ChildHandler:    handlers.Child,
		SessionHandler:  handlers.Session,
		LearnHandler:    handlers.Learn,
		ProgressHandler: handlers.Progress,
		AdminHandler:    handlers.Admin,
	})
}
