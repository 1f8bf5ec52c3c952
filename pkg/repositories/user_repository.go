package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmforge/encounter-engine/pkg/apperrors"
	"github.com/dmforge/encounter-engine/pkg/database"
	"github.com/dmforge/encounter-engine/pkg/models"
)

// UserRepository defines the interface for the user directory. It is a
// flat record store: no business rules, no relational complexity beyond
// the username primary key.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, username string, patch models.UserPatch) (*models.User, error)
	Remove(ctx context.Context, username string) error
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user record.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (username, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		user.Username,
		user.Email,
		user.DisplayName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateConstraint(err))
	}

	return nil
}

// GetByUsername retrieves a single user record.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT username, email, display_name, created_at, updated_at
		FROM users
		WHERE username = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, username).Scan(
		&user.Username,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Exists reports whether a username is present in the directory.
func (r *userRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// FindAll retrieves every user record in the directory.
func (r *userRepository) FindAll(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT username, email, display_name, created_at, updated_at
		FROM users
		ORDER BY username`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.Username,
			&user.Email,
			&user.DisplayName,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Update applies a patch to the mutable user fields and returns the
// updated record. Nil patch fields are left unchanged.
func (r *userRepository) Update(ctx context.Context, username string, patch models.UserPatch) (*models.User, error) {
	query := `
		UPDATE users
		SET email        = COALESCE($1, email),
		    display_name = COALESCE($2, display_name),
		    updated_at   = $3
		WHERE username = $4
		RETURNING username, email, display_name, created_at, updated_at`

	var user models.User
	err := r.db.QueryRow(ctx, query, patch.Email, patch.DisplayName, time.Now(), username).Scan(
		&user.Username,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}

// Remove deletes a user record. Encounters owned by the user go with it
// via the ON DELETE CASCADE constraint.
func (r *userRepository) Remove(ctx context.Context, username string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
