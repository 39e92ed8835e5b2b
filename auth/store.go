package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// ErrDuplicateUser is returned by CreateUser when the username or email is
// already taken.
var ErrDuplicateUser = errors.New("user already exists")

// DB is the subset of pgxpool.Pool the store needs. pgxmock's pool
// interface satisfies it, which keeps the SQL layer testable without a
// live database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the persistence contract consumed by AuthService.
type Store interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id int) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID int, hashedPassword string) error
	CreateResetToken(ctx context.Context, token *PasswordResetToken) error
	// RedeemResetToken atomically burns the reset token and swaps the
	// owning user's password hash. Either both mutations commit or
	// neither does.
	RedeemResetToken(ctx context.Context, token, newHashedPassword string) error
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateUser inserts a new user and returns it with its assigned id and
// creation timestamp. Unique violations on username or email map to
// ErrDuplicateUser.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	query := `INSERT INTO users (username, email, password_hash, role)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at`
	err := s.db.QueryRow(ctx, query, user.Username, user.Email, user.HashedPassword, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, pgErr.ConstraintName)
		}
		return nil, err
	}
	return user, nil
}

const userColumns = `id, username, email, password_hash, role, created_at`

func (s *PostgresStore) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return s.scanUser(s.db.QueryRow(ctx, query, username))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRow(ctx, query, email))
}

// UpdatePassword replaces the stored password hash for a user.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID int, hashedPassword string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hashedPassword, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateResetToken persists a new reset-token row.
func (s *PostgresStore) CreateResetToken(ctx context.Context, token *PasswordResetToken) error {
	query := `INSERT INTO password_reset_tokens (user_id, token, expires_at, used)
	          VALUES ($1, $2, $3, false)
	          RETURNING id`
	return s.db.QueryRow(ctx, query, token.UserID, token.Token, token.ExpiresAt).Scan(&token.ID)
}

// RedeemResetToken burns a one-time reset token and updates the owner's
// password hash in a single transaction. The token row is locked for the
// duration, so two concurrent redemptions of the same token cannot both
// succeed.
func (s *PostgresStore) RedeemResetToken(ctx context.Context, token, newHashedPassword string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var (
		userID    int
		expiresAt time.Time
		used      bool
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, expires_at, used FROM password_reset_tokens WHERE token = $1 FOR UPDATE`,
		token,
	).Scan(&userID, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return err
	}

	if used || time.Now().After(expiresAt) {
		return ErrResetTokenExpiredOrUsed
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, newHashedPassword, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE password_reset_tokens SET used = true WHERE token = $1`, token); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
