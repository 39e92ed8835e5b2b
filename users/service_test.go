package users

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fittrack-go/apperror"
)

func newMockService(t *testing.T) (*UserService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock pool")
	t.Cleanup(mock.Close)
	return NewUserService(mock), mock
}

func profileRows(bio any) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "email", "role", "bio", "created_at"}).
		AddRow(7, "alice", "alice@example.com", "user", bio, time.Now())
}

func TestUserService_GetProfile(t *testing.T) {
	t.Run("with bio", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, username, email, role, bio, created_at`).
			WithArgs(7).
			WillReturnRows(profileRows("lifting and running"))

		profile, err := svc.GetProfile(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, 7, profile.ID)
		assert.Equal(t, "alice", profile.Username)
		require.NotNil(t, profile.Bio)
		assert.Equal(t, "lifting and running", *profile.Bio)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without bio", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, username, email, role, bio, created_at`).
			WithArgs(7).
			WillReturnRows(profileRows(nil))

		profile, err := svc.GetProfile(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, profile.Bio)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, username, email, role, bio, created_at`).
			WithArgs(999).
			WillReturnError(pgx.ErrNoRows)

		profile, err := svc.GetProfile(context.Background(), 999)
		assert.Nil(t, profile)
		assert.True(t, apperror.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	email := "New@Example.com"
	bio := "new bio"

	t.Run("updates fields and returns fresh profile", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec(`UPDATE users SET email = \$1, bio = \$2 WHERE id = \$3`).
			WithArgs("New@Example.com", "new bio", 7).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(`SELECT id, username, email, role, bio, created_at`).
			WithArgs(7).
			WillReturnRows(profileRows("new bio"))

		profile, err := svc.UpdateProfile(context.Background(), 7, &UpdateProfileRequest{
			Email: &email,
			Bio:   &bio,
		})
		require.NoError(t, err)
		require.NotNil(t, profile.Bio)
		assert.Equal(t, "new bio", *profile.Bio)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email conflict", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec(`UPDATE users SET email = \$1 WHERE id = \$2`).
			WithArgs("New@Example.com", 7).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		profile, err := svc.UpdateProfile(context.Background(), 7, &UpdateProfileRequest{Email: &email})
		assert.Nil(t, profile)
		assert.True(t, apperror.IsConflictError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec(`UPDATE users SET bio = \$1 WHERE id = \$2`).
			WithArgs("new bio", 999).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		profile, err := svc.UpdateProfile(context.Background(), 999, &UpdateProfileRequest{Bio: &bio})
		assert.Nil(t, profile)
		assert.True(t, apperror.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
