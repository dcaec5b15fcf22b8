package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"userdesk/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"              // embedded driver for local runs and tests
)

// InitFunc prepares a freshly opened pool, using one pinned connection.
type InitFunc func(ctx context.Context, conn *sql.Conn) error

// Accessor owns the process connection pool. The first Acquire opens and
// initializes it; Close releases it so a later Acquire starts over.
type Accessor struct {
	cfg    *config.Config
	logger *slog.Logger
	init   InitFunc

	mu sync.Mutex
	db *sql.DB
}

func NewAccessor(cfg *config.Config, logger *slog.Logger, init InitFunc) *Accessor {
	return &Accessor{cfg: cfg, logger: logger, init: init}
}

func (a *Accessor) Acquire(ctx context.Context) (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return a.db, nil
	}

	db, err := Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}

	if a.init != nil {
		if err := runInit(ctx, db, a.init); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	a.logger.Info("database pool ready", "driver", a.cfg.DBDriver, "table", a.cfg.DBTable)
	a.db = db
	return db, nil
}

// Close releases the pool, if any.
func (a *Accessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.logger.Info("database pool closed")
	return err
}

func runInit(ctx context.Context, db *sql.DB, init InitFunc) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("database: pin connection: %w", err)
	}
	defer conn.Close()

	if err := init(ctx, conn); err != nil {
		return fmt.Errorf("database: initialize: %w", err)
	}
	return nil
}

// Open opens and verifies a pool for the configured driver.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.DBDriver, err)
	}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxOpenConns)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("database: sqlite pragma: %w", err)
		}
	}

	return db, nil
}
