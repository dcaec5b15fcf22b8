package service

import (
	"context"
	"fmt"
	"log/slog"

	"userdesk/internal/domain/model"
	"userdesk/internal/domain/repository"
	"userdesk/internal/platform/cache"
	"userdesk/internal/platform/logging"
)

type UserService struct {
	userRepo      repository.UserRepository
	cache         cache.UserCache
	adminUsername string
	logger        *slog.Logger
}

// NewUserService wires the repository behind an optional cache; pass
// cache.Noop{} to run without one.
func NewUserService(userRepo repository.UserRepository, userCache cache.UserCache, adminUsername string, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo:      userRepo,
		cache:         userCache,
		adminUsername: adminUsername,
		logger:        logger,
	}
}

// CreateUserRequest mirrors the query string of the creation endpoint.
// Callers apply the "0" defaults for omitted flags; an empty flag is invalid.
type CreateUserRequest struct {
	Username string
	Password string
	Rights   string
	Enabled  string
}

func (r CreateUserRequest) toUser() model.User {
	return model.User{Username: r.Username, Password: r.Password, Rights: r.Rights, Enabled: r.Enabled}
}

// Admin returns the configured administrator row.
func (s *UserService) Admin(ctx context.Context) (*model.User, error) {
	return s.GetByUsername(ctx, s.adminUsername)
}

// GetByUsername returns common.ErrNotFound when the account does not exist.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if user, ok := s.cached(ctx, username); ok {
		return user, nil
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("UserService.GetByUsername: %w", err)
	}
	s.remember(ctx, *user)
	return user, nil
}

// CreateIfAbsent validates req, inserts it unless the username is taken and
// returns the row as stored. Invalid input never reaches the database.
func (s *UserService) CreateIfAbsent(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	user := req.toUser()
	if err := user.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.userRepo.InsertIfAbsent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("UserService.CreateIfAbsent: %w", err)
	}
	if *stored != user {
		logging.FromContext(ctx).Debug("username already taken, returning stored row", "username", user.Username)
	}
	s.remember(ctx, *stored)
	return stored, nil
}

// Forget drops username from the cache, used after its row changed.
func (s *UserService) Forget(ctx context.Context, username string) {
	if err := s.cache.Delete(ctx, username); err != nil {
		s.logger.Warn("cache delete failed", "username", username, "error", err)
	}
}

// Ping reports whether the database and cache are reachable.
func (s *UserService) Ping(ctx context.Context) (dbErr, cacheErr error) {
	return s.userRepo.Ping(ctx), s.cache.Ping(ctx)
}

func (s *UserService) cached(ctx context.Context, username string) (*model.User, bool) {
	user, ok, err := s.cache.Get(ctx, username)
	if err != nil {
		logging.FromContext(ctx).Warn("cache read failed, falling back to database", "username", username, "error", err)
		return nil, false
	}
	return user, ok
}

func (s *UserService) remember(ctx context.Context, user model.User) {
	if err := s.cache.Set(ctx, user); err != nil {
		logging.FromContext(ctx).Warn("cache write failed", "username", user.Username, "error", err)
	}
}
