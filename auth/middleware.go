package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	// AccessTokenCookie is the name of the session cookie.
	AccessTokenCookie = "access_token_cookie"
	// CSRFHeader is the request header carrying the CSRF token on
	// cookie-authenticated mutating requests.
	CSRFHeader = "X-CSRF-TOKEN"
)

// extractToken pulls the session token from the request, preferring the
// Authorization header over the cookie, and reports which transport it
// arrived on.
func extractToken(r *http.Request) (string, TokenTransport) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], TransportHeader
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, TransportCookie
	}
	return "", TransportNone
}

// SessionMiddleware is the session guard. It verifies the token from the
// cookie or Authorization header and attaches the claims (and transport)
// to the request context; requests without a valid token are rejected
// with 401 before the handler runs.
func SessionMiddleware(issuer *TokenIssuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, transport := extractToken(r)
			if transport == TransportNone {
				WriteError(w, r, tokenError(ErrMissingToken))
				return
			}

			claims, err := issuer.Verify(tokenString)
			if err != nil {
				WriteError(w, r, tokenError(err))
				return
			}

			ctx := NewContextWithClaims(r.Context(), claims, transport)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFMiddleware is the CSRF guard for state-mutating routes. It must run
// after SessionMiddleware. Header-authenticated requests pass through:
// an Authorization header cannot be attached by a forged cross-site
// request the way a cookie is. Cookie-authenticated requests must present
// the CSRF secret bound to their session token in the X-CSRF-TOKEN header.
func CSRFMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, r, tokenError(ErrMissingToken))
				return
			}

			if TransportFromContext(r.Context()) == TransportHeader {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(CSRFHeader)
			if headerToken == "" {
				WriteError(w, r, csrfError(ErrCSRFMissing))
				return
			}
			if claims.CSRF == "" ||
				subtle.ConstantTimeCompare([]byte(headerToken), []byte(claims.CSRF)) != 1 {
				WriteError(w, r, csrfError(ErrCSRFMismatch))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
