package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"userdesk/internal/common"
	"userdesk/internal/domain/model"
	"userdesk/internal/platform/cache"
	"userdesk/internal/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory UserRepository that counts calls.
type memRepo struct {
	mu      sync.Mutex
	rows    map[string]model.User
	finds   int
	inserts int
	pingErr error
}

func newMemRepo(rows ...model.User) *memRepo {
	r := &memRepo{rows: map[string]model.User{}}
	for _, u := range rows {
		r.rows[u.Username] = u
	}
	return r
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	u, ok := r.rows[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) InsertIfAbsent(_ context.Context, user model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if _, ok := r.rows[user.Username]; !ok {
		r.rows[user.Username] = user
	}
	u := r.rows[user.Username]
	return &u, nil
}

func (r *memRepo) Ping(context.Context) error { return r.pingErr }

// brokenCache fails every call.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (*model.User, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) Set(context.Context, model.User) error { return errCacheDown }
func (brokenCache) Delete(context.Context, string) error  { return errCacheDown }
func (brokenCache) Ping(context.Context) error            { return errCacheDown }
func (brokenCache) Close() error                          { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

var admin = model.User{Username: "admin", Password: "some_password", Rights: "1", Enabled: "1"}

func TestAdmin(t *testing.T) {
	t.Parallel()

	svc := NewUserService(newMemRepo(admin), cache.Noop{}, "admin", quietLogger())
	got, err := svc.Admin(context.Background())
	require.NoError(t, err)
	require.Equal(t, admin, *got)
}

func TestGetByUsernameNotFound(t *testing.T) {
	t.Parallel()

	svc := NewUserService(newMemRepo(), cache.Noop{}, "admin", quietLogger())
	_, err := svc.GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.Admin(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateIfAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewUserService(repo, cache.Noop{}, "admin", quietLogger())

	got, err := svc.CreateIfAbsent(ctx, CreateUserRequest{Username: "alice", Password: "pw123", Rights: "1", Enabled: "1"})
	require.NoError(t, err)
	require.Equal(t, model.User{Username: "alice", Password: "pw123", Rights: "1", Enabled: "1"}, *got)

	again, err := svc.CreateIfAbsent(ctx, CreateUserRequest{Username: "alice", Password: "different", Rights: "0", Enabled: "0"})
	require.NoError(t, err)
	require.Equal(t, *got, *again)
}

func TestCreateIfAbsentRejectsWithoutWriting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CreateUserRequest
		wantErr error
		detail  string
	}{
		{"bad rights", CreateUserRequest{Username: "a", Password: "p", Rights: "2", Enabled: "1"}, common.ErrInvalidFlag, "Incorrect `rights` parameter value"},
		{"bad enabled", CreateUserRequest{Username: "a", Password: "p", Rights: "1", Enabled: "yes"}, common.ErrInvalidFlag, "Incorrect `enabled` parameter value"},
		{"empty rights", CreateUserRequest{Username: "a", Password: "p", Enabled: "1"}, common.ErrInvalidFlag, "Incorrect `rights` parameter value"},
		{"missing username", CreateUserRequest{Password: "p", Rights: "0", Enabled: "0"}, common.ErrValidation, "username is required"},
		{"missing password", CreateUserRequest{Username: "a", Rights: "0", Enabled: "0"}, common.ErrValidation, "password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := NewUserService(repo, cache.Noop{}, "admin", quietLogger())

			_, err := svc.CreateIfAbsent(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.detail, common.PublicMessage(err))
			require.Zero(t, repo.inserts)
		})
	}
}

func TestCacheServesRepeatedReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb, err := cache.ConnectRedis(ctx, &config.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	userCache := cache.NewRedisUserCache(rdb, "users", time.Minute)
	t.Cleanup(func() { _ = userCache.Close() })

	repo := newMemRepo(admin)
	svc := NewUserService(repo, userCache, "admin", quietLogger())

	for i := 0; i < 3; i++ {
		got, err := svc.Admin(ctx)
		require.NoError(t, err)
		require.Equal(t, admin, *got)
	}
	require.Equal(t, 1, repo.finds)

	// A created row is cached from its read-back.
	_, err = svc.CreateIfAbsent(ctx, CreateUserRequest{Username: "carol", Password: "pw", Rights: "1", Enabled: "0"})
	require.NoError(t, err)
	_, err = svc.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, 1, repo.finds)

	// Forget forces the next read back to the repository.
	svc.Forget(ctx, "admin")
	_, err = svc.Admin(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.finds)
}

func TestCacheFailuresAreBypassed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newMemRepo(admin)
	svc := NewUserService(repo, brokenCache{}, "admin", quietLogger())

	got, err := svc.Admin(ctx)
	require.NoError(t, err)
	require.Equal(t, admin, *got)

	_, err = svc.CreateIfAbsent(ctx, CreateUserRequest{Username: "dan", Password: "pw", Rights: "0", Enabled: "1"})
	require.NoError(t, err)

	svc.Forget(ctx, "admin")

	dbErr, cacheErr := svc.Ping(ctx)
	require.NoError(t, dbErr)
	require.ErrorIs(t, cacheErr, errCacheDown)
}
