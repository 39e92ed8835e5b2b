package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/user/fittrack-go/apperror"
	"github.com/user/fittrack-go/config"
)

// resetTokenBytes is the length of generated reset tokens
// (32 bytes = 64 hex chars).
const resetTokenBytes = 32

// mailDispatchTimeout bounds the background reset-mail send. Delivery is
// best-effort: a reset request reports success regardless of outcome.
const mailDispatchTimeout = 10 * time.Second

// Mailer dispatches password-reset notifications. Implementations live
// outside this package; delivery is an external collaborator's concern.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, resetURL string) error
}

// AuthService implements the authentication operations: registration,
// login, current-user lookup, password change, and the password-reset
// flow.
type AuthService struct {
	store   Store
	hasher  *Hasher
	issuer  *TokenIssuer
	mailer  Mailer
	cfg     config.AuthConfig
	baseURL string
}

// NewAuthService creates an AuthService with its dependencies injected.
func NewAuthService(store Store, hasher *Hasher, issuer *TokenIssuer, mailer Mailer, cfg config.AuthConfig, baseURL string) *AuthService {
	return &AuthService{
		store:   store,
		hasher:  hasher,
		issuer:  issuer,
		mailer:  mailer,
		cfg:     cfg,
		baseURL: baseURL,
	}
}

// Register creates a new user account with the default role.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	// Username and email are stored and matched exactly as given.
	user := &User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           RoleUser,
	}

	created, err := s.store.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, apperror.NewConflictError("User already exists", nil)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return created, nil
}

// Login verifies credentials and mints a session token together with its
// bound CSRF secret. Unknown username and wrong password report the same
// error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewAuthError("Invalid credentials", nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if !s.hasher.Verify(req.Password, user.HashedPassword) {
		return nil, apperror.NewAuthError("Invalid credentials", nil)
	}

	token, csrfToken, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue token", err)
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		CSRFToken:   csrfToken,
		User:        user,
	}, nil
}

// GetUser resolves the authenticated user's record. A valid token whose
// subject no longer exists reports not-found.
func (s *AuthService) GetUser(ctx context.Context, userID int) (*User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewNotFoundError("User not found", nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}
	return user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, req ChangePasswordRequest) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NewNotFoundError("User not found", nil)
		}
		return apperror.NewDatabaseError("failed to get user", err)
	}

	if !s.hasher.Verify(req.OldPassword, user.HashedPassword) {
		return apperror.NewBadRequestError("Current password is incorrect", nil)
	}

	hashedPassword, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	if err := s.store.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NewNotFoundError("User not found", nil)
		}
		return apperror.NewDatabaseError("failed to update password", err)
	}
	return nil
}

// RequestPasswordReset creates a one-time reset token for the account
// behind email and dispatches a reset link. An unknown email succeeds
// silently so the endpoint cannot be used to enumerate registered
// addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return apperror.NewDatabaseError("failed to get user", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return apperror.NewInternalError("failed to generate reset token", err)
	}

	resetToken := &PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.cfg.ResetTokenDuration),
	}
	if err := s.store.CreateResetToken(ctx, resetToken); err != nil {
		return apperror.NewDatabaseError("failed to store reset token", err)
	}

	s.dispatchResetMail(user.Email, token)
	return nil
}

// dispatchResetMail sends the reset link in the background with its own
// timeout. Failures are logged, never surfaced: the reset request already
// succeeded.
func (s *AuthService) dispatchResetMail(email, token string) {
	if s.mailer == nil {
		return
	}
	resetURL := fmt.Sprintf("%s/auth/reset-password?token=%s", s.baseURL, token)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailDispatchTimeout)
		defer cancel()
		if err := s.mailer.SendPasswordReset(ctx, email, resetURL); err != nil {
			log.Printf("failed to send password reset email to %s: %v", email, err)
		}
	}()
}

// ResetPassword redeems a one-time reset token. The store burns the token
// and swaps the password hash atomically; a used, expired, or unknown
// token reports the same client-facing message.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	hashedPassword, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	if err := s.store.RedeemResetToken(ctx, req.Token, hashedPassword); err != nil {
		switch {
		case errors.Is(err, ErrResetTokenInvalid), errors.Is(err, ErrResetTokenExpiredOrUsed):
			return apperror.NewBadRequestError("Token expired or invalid", nil)
		case errors.Is(err, ErrUserNotFound):
			return apperror.NewNotFoundError("User not found", nil)
		default:
			return apperror.NewDatabaseError("failed to reset password", err)
		}
	}
	return nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
