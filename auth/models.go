package auth

import "time"

// RoleUser is the role assigned to newly registered accounts.
const RoleUser = "user"

// User represents an application user. The stored password hash is never
// serialized outward.
type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// PasswordResetToken is a one-time credential for resetting a password.
// Redeemed and expired rows are kept (used=true or past expires_at) rather
// than deleted, so the ledger retains an audit trail; either condition
// makes the token permanently unacceptable.
type PasswordResetToken struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// IsExpired reports whether the token's validity window has passed.
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
