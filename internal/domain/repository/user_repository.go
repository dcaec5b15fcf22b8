package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"userdesk/internal/common"
	"userdesk/internal/domain/model"
)

// DBTX is the subset of *sql.DB, *sql.Conn and *sql.Tx the queries need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	// FindByUsername returns common.ErrNotFound when no row matches.
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// InsertIfAbsent inserts user unless the username exists, then returns
	// the stored row, which may predate the call.
	InsertIfAbsent(ctx context.Context, user model.User) (*model.User, error)
	Ping(ctx context.Context) error
}

type pgUserRepository struct {
	db    *sql.DB
	table string
}

// NewPgUserRepository binds the repository to table. The table name is
// interpolated into SQL, so it must come from validated configuration.
// The statements are plain enough to run unchanged on SQLite.
func NewPgUserRepository(db *sql.DB, table string) UserRepository {
	return &pgUserRepository{db: db, table: table}
}

// EnsureSchema creates the accounts table when it does not exist yet.
func EnsureSchema(ctx context.Context, q DBTX, table string) error {
	query := `CREATE TABLE IF NOT EXISTS ` + table + ` (
	            username varchar(45) NOT NULL,
	            password varchar(45) NOT NULL,
	            rights varchar(1) NOT NULL DEFAULT '1' CHECK (rights IN ('0', '1')),
	            enabled varchar(1) NOT NULL DEFAULT '1' CHECK (enabled IN ('0', '1')),
	            PRIMARY KEY (username)
	          )`
	if _, err := q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("repository.EnsureSchema: %w", err)
	}
	return nil
}

// UpsertPassword inserts username with the column defaults for rights and
// enabled, or overwrites only the password of an existing row.
func UpsertPassword(ctx context.Context, q DBTX, table, username, password string) error {
	query := `INSERT INTO ` + table + ` (username, password)
	          VALUES ($1, $2)
	          ON CONFLICT (username)
	          DO UPDATE SET password = excluded.password`
	if _, err := q.ExecContext(ctx, query, username, password); err != nil {
		return fmt.Errorf("repository.UpsertPassword: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: begin: %w", err)
	}
	defer tx.Rollback()

	user, err := r.selectUser(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: commit: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) InsertIfAbsent(ctx context.Context, user model.User) (*model.User, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.InsertIfAbsent: acquire: %w", err)
	}
	defer conn.Close()

	query := `INSERT INTO ` + r.table + ` (username, password, rights, enabled)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (username)
	          DO NOTHING`
	if _, err := conn.ExecContext(ctx, query, user.Username, user.Password, user.Rights, user.Enabled); err != nil {
		return nil, fmt.Errorf("pgUserRepository.InsertIfAbsent: %w", err)
	}

	return r.selectUser(ctx, conn, user.Username)
}

func (r *pgUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *pgUserRepository) selectUser(ctx context.Context, q DBTX, username string) (*model.User, error) {
	query := `SELECT username, password, rights, enabled
	          FROM ` + r.table + ` WHERE username = $1`
	user := &model.User{}
	err := q.QueryRowContext(ctx, query, username).Scan(
		&user.Username, &user.Password, &user.Rights, &user.Enabled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.selectUser: %w", err)
	}
	return user, nil
}
