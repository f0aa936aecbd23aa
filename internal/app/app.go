package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-tutor/internal/adaptive/tuning"
	"github.com/yungbote/neurobridge-tutor/internal/data/db"
	apphttp "github.com/yungbote/neurobridge-tutor/internal/http"
	httpH "github.com/yungbote/neurobridge-tutor/internal/http/handlers"
	"github.com/yungbote/neurobridge-tutor/internal/observability"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Tuning   tuning.Tuning
	Metrics  *observability.Metrics
	Repos    Repos
	Clients  Clients
	Services Services
	Server   *apphttp.Server

	store         *db.Service
	shutdownTrace func(context.Context) error
	cancel        context.CancelFunc
}

// New builds the whole object graph from cfg. The CLI uses it as well as
// the server, so nothing here starts listening.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	tn, err := tuning.Load(cfg.TuningFile)
	if err != nil {
		return nil, err
	}

	metrics := observability.Init(log)
	shutdownTrace := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	store, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrateAll(store.DB()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	theDB := store.DB()
	if sqlDB, err := theDB.DB(); err == nil {
		metrics.RegisterDB(store.Driver(), sqlDB)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	clients, err := wireClients(runCtx, log, cfg, tn, metrics)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(ctx, log, theDB, cfg, tn, reposet, clients, metrics)
	if err != nil {
		cancel()
		clients.Close()
		_ = store.Close()
		return nil, err
	}

	pingers := map[string]httpH.Pinger{"database": store}
	if clients.Redis != nil {
		pingers["redis"] = clients.Redis
	}
	handlerset := wireHandlers(log, serviceset, pingers)
	middleware := wireMiddleware(log, serviceset)

	return &App{
		Log:           log,
		DB:            theDB,
		Cfg:           cfg,
		Tuning:        tn,
		Metrics:       metrics,
		Repos:         reposet,
		Clients:       clients,
		Services:      serviceset,
		Server:        wireServer(log, cfg, metrics, handlerset, middleware),
		store:         store,
		shutdownTrace: shutdownTrace,
		cancel:        cancel,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if strings.TrimSpace(a.Cfg.Auth.SecretKey) == "" {
		return errors.New("JWT_SECRET_KEY is required to serve")
	}
	if a.Services.Retrieval.Backend == RetrievalBackendMemory {
		go warmMemoryIndex(a.Log, a.Repos, a.Services.Index)
	}
	a.Log.Info("Serving", "addr", a.Cfg.HTTPAddr, "retrieval_backend", a.Services.Retrieval.Backend)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(context.Background()); err != nil {
			a.Log.Warn("trace shutdown failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	a.Log.Sync()
}
