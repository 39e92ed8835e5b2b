// Package users provides user profile management: fetching and updating
// the authenticated user's profile. Authentication itself lives in the
// auth package; every route here sits behind the session guard.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/fittrack-go/apperror"
	"github.com/user/fittrack-go/auth"
)

// UserService provides user profile operations.
type UserService struct {
	db auth.DB
}

// NewUserService creates a UserService.
func NewUserService(db auth.DB) *UserService {
	return &UserService{db: db}
}

// GetProfile retrieves a user's profile by id.
func (s *UserService) GetProfile(ctx context.Context, userID int) (*ProfileResponse, error) {
	query := `
		SELECT id, username, email, role, bio, created_at
		FROM users
		WHERE id = $1
	`
	var (
		profile ProfileResponse
		bio     sql.NullString
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.Role,
		&bio,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError("User not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user profile", err)
	}
	if bio.Valid {
		profile.Bio = &bio.String
	}
	return &profile, nil
}

// UpdateProfile applies the provided fields to the user's profile and
// returns the updated profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, req *UpdateProfileRequest) (*ProfileResponse, error) {
	var (
		setClauses []string
		args       []interface{}
	)
	argID := 1

	if req.Email != nil && *req.Email != "" {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *req.Email)
		argID++
	}
	if req.Bio != nil {
		setClauses = append(setClauses, fmt.Sprintf("bio = $%d", argID))
		args = append(args, *req.Bio)
		argID++
	}

	if len(setClauses) == 0 {
		return s.GetProfile(ctx, userID)
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argID)

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperror.NewConflictError("Email already in use", nil)
		}
		return nil, apperror.NewDatabaseError("failed to update user profile", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewNotFoundError("User not found", nil)
	}

	return s.GetProfile(ctx, userID)
}
