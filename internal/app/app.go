package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/config"
	apphttp "github.com/yungbote/lms-progress/internal/http"
	httpH "github.com/yungbote/lms-progress/internal/http/handlers"
	"github.com/yungbote/lms-progress/internal/observability"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      config.Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	shutdownOtel func(context.Context) error
}

// New loads config and wires everything except the HTTP server and runner,
// which Run starts.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := NewWithConfig(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func NewWithConfig(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	metrics := observability.Init(log)

	clients, err := wireClients(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	theDB := clients.Gorm()
	reposet := wireRepos(theDB, clients.Redis, cfg, log)
	serviceset, err := wireServices(ctx, theDB, clients.Redis, cfg, reposet, log)
	if err != nil {
		clients.Close()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Server builds the HTTP server over the wired services.
func (a *App) Server() (*apphttp.Server, error) {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		ServiceName:      a.Cfg.ServiceName,
		CORSOrigins:      a.Cfg.CORSOrigins,
		Log:              a.Log,
		Metrics:          a.Metrics,
		MigrationHandler: httpH.NewMigrationHandler(a.Services.Scheduler, a.Services.Verifier),
		ActionHandler:    httpH.NewActionHandler(a.Services.Queue),
		HealthHandler:    httpH.NewHealthHandler(sqlDB),
	}), nil
}

// Run serves HTTP and runs the action runner until ctx is done or either
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.DB == nil {
		return fmt.Errorf("app not initialized")
	}
	srv, err := a.Server()
	if err != nil {
		return err
	}
	runner, closeRunner, err := wireRunner(ctx, a.Cfg, a.Services.Queue, a.Log)
	if err != nil {
		return err
	}
	defer closeRunner()

	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	a.Metrics.StartActionQueueCollector(ctx, a.Log, a.DB)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, a.Cfg.HTTPAddr) })
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return a.Services.Events.StartForwarder(gctx, a.logEvent) })
	return g.Wait()
}

func (a *App) logEvent(ev bus.Event) {
	a.Log.Info("Event", "name", ev.Name, "props", ev.Props)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Events != nil {
		_ = a.Services.Events.Close()
	}
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(context.Background())
	}
	a.Clients.Close()
	if a.Log != nil {
		a.Log.Sync()
	}
}
