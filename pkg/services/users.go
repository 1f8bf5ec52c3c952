package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/apperrors"
	"github.com/dmforge/encounter-engine/pkg/models"
	"github.com/dmforge/encounter-engine/pkg/repositories"
)

// usernameMaxLen bounds directory usernames; the directory stores them
// as-is otherwise.
const usernameMaxLen = 64

// UserService defines the interface for user directory operations.
// The directory is a flat record store; this service is pass-through
// plus input validation.
type UserService interface {
	Create(ctx context.Context, username, email, displayName string) (*models.User, error)
	Get(ctx context.Context, username string) (*models.User, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, username string, patch models.UserPatch) (*models.User, error)
	Remove(ctx context.Context, username string) error
}

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Create adds a user record to the directory.
func (s *userService) Create(ctx context.Context, username, email, displayName string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get retrieves a single user record.
func (s *userService) Get(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// FindAll retrieves every user record.
func (s *userService) FindAll(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.FindAll(ctx)
}

// Update applies a patch to the mutable user fields.
func (s *userService) Update(ctx context.Context, username string, patch models.UserPatch) (*models.User, error) {
	if patch.Email == nil && patch.DisplayName == nil {
		return nil, fmt.Errorf("empty patch: %w", apperrors.ErrValidation)
	}
	return s.userRepo.Update(ctx, username, patch)
}

// Remove deletes a user record and, by cascade, their encounters.
func (s *userService) Remove(ctx context.Context, username string) error {
	return s.userRepo.Remove(ctx, username)
}

func validateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" || trimmed != username {
		return fmt.Errorf("username must be non-empty without surrounding whitespace: %w", apperrors.ErrValidation)
	}
	if len(username) > usernameMaxLen {
		return fmt.Errorf("username exceeds %d characters: %w", usernameMaxLen, apperrors.ErrValidation)
	}
	return nil
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
