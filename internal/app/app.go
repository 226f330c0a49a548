package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/db"
	apphttp "github.com/yungbote/huddle-backend/internal/http"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *apphttp.Server
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := db.EnsureAssistantIndexes(theDB); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres indexes: %w", err)
	}

	reposet := wireRepos(theDB, log)
	clientset, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	serviceset := wireServices(theDB, log, cfg, reposet, clientset, metrics)
	handlerset := wireHandlers(log, cfg, theDB, reposet, serviceset)
	server := wireServer(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start connects the room bus to the local hub so events published by any
// replica reach subscribers on this one.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Clients.Bus.StartForwarder(ctx, a.Services.Hub.Broadcast); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("start room bus forwarder: %w", err)
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Listening", "addr", addr)
	return a.Server.Run(addr)
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		errs = append(errs, a.Server.Shutdown(ctx))
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Clients.Bus != nil {
		errs = append(errs, a.Clients.Bus.Close())
	}
	if a.Clients.Scheduler != nil {
		a.Clients.Scheduler.Close()
	}
	if a.pg != nil {
		errs = append(errs, a.pg.Close())
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(ctx))
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
