package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userdesk/internal/api"
	"userdesk/internal/app/service"
	"userdesk/internal/domain/repository"
	"userdesk/internal/platform/cache"
	"userdesk/internal/platform/config"
	"userdesk/internal/platform/database"
	"userdesk/internal/platform/logging"
	"userdesk/internal/view"
	"userdesk/internal/ws"
)

const startupTimeout = 30 * time.Second

// Application holds the long-lived resources of the server process.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	accessor    *database.Accessor
	userCache   cache.UserCache
	userService *service.UserService
	wsRegistry  *ws.Registry

	server *http.Server
}

// New connects to the database, makes sure the table and the administrator
// row exist, and builds the HTTP server. Nothing is served until Run.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: logging.New(logging.Config{
			Service: "userdesk",
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	app.accessor = database.NewAccessor(cfg, app.logger, seed(cfg))
	db, err := app.accessor.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initCache(ctx); err != nil {
		_ = app.accessor.Close()
		return nil, err
	}

	userRepo := repository.NewPgUserRepository(db, cfg.DBTable)
	app.userService = service.NewUserService(userRepo, app.userCache, cfg.AdminUsername, app.logger)
	// The seed may have changed the admin password.
	app.userService.Forget(ctx, cfg.AdminUsername)

	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}
	return app, nil
}

// seed creates the table and upserts the administrator on the pool's
// first connection.
func seed(cfg *config.Config) database.InitFunc {
	return func(ctx context.Context, conn *sql.Conn) error {
		if err := repository.EnsureSchema(ctx, conn, cfg.DBTable); err != nil {
			return err
		}
		return repository.UpsertPassword(ctx, conn, cfg.DBTable, cfg.AdminUsername, cfg.AdminPassword)
	}
}

func (app *Application) initCache(ctx context.Context) error {
	if app.cfg.RedisAddr == "" {
		app.logger.Info("REDIS_ADDR not set, user cache disabled")
		app.userCache = cache.Noop{}
		return nil
	}

	rdb, err := cache.ConnectRedis(ctx, app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.userCache = cache.NewRedisUserCache(rdb, app.cfg.DBTable, app.cfg.CacheTTL)
	app.logger.Info("redis user cache enabled", "addr", app.cfg.RedisAddr, "ttl", app.cfg.CacheTTL)
	return nil
}

func (app *Application) initHTTP() error {
	renderer, err := view.New()
	if err != nil {
		return err
	}

	app.wsRegistry = ws.NewRegistry()
	wsHandler := ws.NewHandler(ws.Config{
		AllowedOrigins: app.cfg.WSAllowedOrigins,
		MaxMessageSize: app.cfg.WSMaxMessageSize,
	}, app.wsRegistry, app.logger)

	app.server = &http.Server{
		Addr:              app.cfg.ListenAddr(),
		Handler:           api.NewRouter(app.userService, renderer, wsHandler, app.logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.server.Handler
}

// Run serves until SIGINT/SIGTERM or a listener failure.
func (app *Application) Run() error {
	app.logger.Info("server starting", "addr", app.server.Addr)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// grace period, says goodbye to websocket peers and releases the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()

	var errs []error
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		errs = append(errs, err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Hijacked websocket connections are not tracked by the server.
	if n := app.wsRegistry.CloseAll(); n > 0 {
		app.logger.Info("closed websocket sessions", "count", n)
	}

	errs = append(errs, app.closeStores())

	app.logger.Info("server stopped")
	return errors.Join(errs...)
}

func (app *Application) closeStores() error {
	var errs []error
	if err := app.userCache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
		errs = append(errs, err)
	}
	if err := app.accessor.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
