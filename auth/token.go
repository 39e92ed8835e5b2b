package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/fittrack-go/config"
)

const (
	tokenTypeAccess = "access"
	tokenIssuer     = "fittrack"

	// csrfSecretBytes is the length of the random CSRF secret embedded in
	// each session token (32 bytes = 64 hex chars).
	csrfSecretBytes = 32
)

// Claims is the payload of a session token. The CSRF secret is a claim so
// it is signed together with the session and cannot be swapped
// independently of it. Claims are tamper-proof, not confidential: anyone
// holding the token can read them.
type Claims struct {
	UserID    int    `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	CSRF      string `json:"csrf"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed, time-limited session tokens.
// A token's life is issued -> valid -> expired; there is no server-side
// revoked state, so logout only clears client storage and a captured token
// stays technically valid until natural expiry.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenIssuer creates a TokenIssuer from auth configuration.
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(cfg.JWTSecret),
		lifetime: cfg.AccessTokenDuration,
	}
}

// Issue mints an access token for the user, embedding subject, role,
// issuance and expiry times, the access type marker, and a fresh CSRF
// secret. Returns the signed token, its CSRF secret, and the expiry time.
func (ti *TokenIssuer) Issue(userID int, role string) (token, csrfToken string, expiresAt time.Time, err error) {
	csrfToken, err = generateCSRFSecret()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate csrf secret: %w", err)
	}

	now := time.Now()
	expiresAt = now.Add(ti.lifetime)
	claims := &Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenTypeAccess,
		CSRF:      csrfToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(userID),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, csrfToken, expiresAt, nil
}

// Verify checks signature, expiry, and the token-type marker.
// Failures map to ErrExpiredToken or ErrInvalidToken.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.TokenType)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id claim missing", ErrInvalidToken)
	}
	return claims, nil
}

// generateCSRFSecret returns a cryptographically random hex string.
func generateCSRFSecret() (string, error) {
	buf := make([]byte, csrfSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
