package auth

import "errors"

// Sentinel errors for token verification and reset-token redemption.
// Handlers and middleware translate these into apperror types at the HTTP
// boundary; internally they stay distinguishable via errors.Is.
var (
	// ErrMissingToken means no session token arrived via cookie or
	// Authorization header.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, malformed payloads, and
	// wrong token-type markers.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the token was valid but its expiry passed.
	ErrExpiredToken = errors.New("token has expired")
	// ErrUserNotFound means the token subject no longer resolves to an
	// existing user (deleted after issuance).
	ErrUserNotFound = errors.New("user not found")

	// ErrResetTokenInvalid means no ledger row matches the presented
	// reset token.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrResetTokenExpiredOrUsed means the row exists but is inert.
	// Used and expired are deliberately not distinguished to the caller.
	ErrResetTokenExpiredOrUsed = errors.New("reset token expired or used")

	// ErrCSRFMissing means a cookie-authenticated mutating request
	// carried no X-CSRF-TOKEN header.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrCSRFMismatch means the header value does not match the secret
	// bound to the session token.
	ErrCSRFMismatch = errors.New("csrf token invalid")
)
