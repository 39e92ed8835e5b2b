package auth

import "context"

// contextKey is a private type for context keys to avoid collisions with
// other packages.
type contextKey string

const (
	claimsContextKey    contextKey = "auth_claims"
	transportContextKey contextKey = "auth_transport"
)

// TokenTransport records how the session token reached the server. The
// CSRF guard only applies to cookie transport: a cross-site page can make
// the browser attach a cookie, but it cannot set an Authorization header.
type TokenTransport int

const (
	// TransportNone means no token was presented.
	TransportNone TokenTransport = iota
	// TransportHeader means Authorization: Bearer.
	TransportHeader
	// TransportCookie means the session cookie.
	TransportCookie
)

// NewContextWithClaims returns a child context carrying verified claims
// and the transport they arrived on.
func NewContextWithClaims(ctx context.Context, claims *Claims, transport TokenTransport) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	return context.WithValue(ctx, transportContextKey, transport)
}

// ClaimsFromContext extracts the verified session claims, if present.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// TransportFromContext reports how the session token was presented.
func TransportFromContext(ctx context.Context) TokenTransport {
	transport, ok := ctx.Value(transportContextKey).(TokenTransport)
	if !ok {
		return TransportNone
	}
	return transport
}

// UserIDFromContext is a convenience accessor for the authenticated user's
// id. Returns 0 and false when no session is attached.
func UserIDFromContext(ctx context.Context) (int, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}
