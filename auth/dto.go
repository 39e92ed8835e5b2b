// Package auth provides the authentication and session-security subsystem:
// credential hashing, session token issuance and verification, CSRF
// protection for cookie flows, and the one-time password-reset ledger.
package auth

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=120" example:"newuser"`
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6,max=72" example:"strongpassword123"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"newuser"`
	Password string `json:"password" validate:"required" example:"strongpassword123"`
}

// ChangePasswordRequest is the payload for POST /auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// ForgotPasswordRequest is the payload for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the payload for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	Message string `json:"message" example:"User registered successfully"`
	User    *User  `json:"user"`
}

// LoginResponse is returned on successful login. The access token is also
// set as an HttpOnly cookie; the CSRF token travels only in this body so a
// cross-site page can never read it.
type LoginResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string `json:"token_type" example:"Bearer"`
	ExpiresIn   int64  `json:"expires_in" example:"1800"`
	CSRFToken   string `json:"csrf_token"`
	User        *User  `json:"user"`
}

// UserResponse wraps a user object, as returned by /auth/me.
type UserResponse struct {
	User *User `json:"user"`
}

// CSRFTokenResponse is returned by GET /auth/csrf-token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// MessageResponse is a generic success payload.
type MessageResponse struct {
	Message string `json:"message"`
}
