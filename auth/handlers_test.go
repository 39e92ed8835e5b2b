package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter assembles the auth routes with the same guard chain the
// server uses: public endpoints, session-guarded reads, and CSRF-guarded
// mutations.
func newTestRouter(t *testing.T) (*chi.Mux, *memStore) {
	t.Helper()

	cfg := serviceAuthConfig()
	store := newMemStore()
	hasher := NewHasher(cfg.PasswordPepper, cfg.BcryptCost)
	issuer := NewTokenIssuer(cfg)
	service := NewAuthService(store, hasher, issuer, nil, cfg, "http://localhost:8080")
	handlers := NewHandlers(service, cfg)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handlers.HandleRegister())
		r.Post("/login", handlers.HandleLogin())
		r.Post("/forgot-password", handlers.HandleForgotPassword())
		r.Post("/reset-password", handlers.HandleResetPassword())

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(issuer))

			r.Get("/me", handlers.HandleMe())
			r.Get("/csrf-token", handlers.HandleCSRFToken())

			r.Group(func(r chi.Router) {
				r.Use(CSRFMiddleware())
				r.Post("/logout", handlers.HandleLogout())
				r.Post("/change-password", handlers.HandleChangePassword())
			})
		})
	})
	return r, store
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerAlice(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/auth/register", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "register failed: %s", rec.Body.String())
}

func loginAlice(t *testing.T, router http.Handler) (*httptest.ResponseRecorder, LoginResponse) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{
		Username: "alice",
		Password: "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, "login failed: %s", rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == AccessTokenCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegister(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/auth/register", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "User registered successfully", body["message"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegister_Duplicate(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)

	rec := doRequest(t, router, http.MethodPost, "/auth/register", RegisterRequest{
		Username: "alice",
		Email:    "alice2@example.com",
		Password: "password123",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decodeBody(t, rec)["error"])
}

func TestRegister_ValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/auth/register", RegisterRequest{
		Username: "al",
		Email:    "not-an-email",
		Password: "pw",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid input", body["error"])
	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLogin(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)

	rec, resp := loginAlice(t, router)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.CSRFToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.Username)

	cookie := sessionCookie(t, rec)
	assert.Equal(t, resp.AccessToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
}

func TestLogin_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{Username: "alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing username or password", decodeBody(t, rec)["error"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)

	rec := doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{
		Username: "alice",
		Password: "wrongpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])
}

func TestMe_BearerTransport(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	_, login := loginAlice(t, router)

	rec := doRequest(t, router, http.MethodGet, "/auth/me", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
}

func TestMe_CookieTransport(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	loginRec, _ := loginAlice(t, router)
	cookie := sessionCookie(t, loginRec)

	rec := doRequest(t, router, http.MethodGet, "/auth/me", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe_Unauthorized(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("no token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/auth/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Authorization token is missing", decodeBody(t, rec)["error"])
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/auth/me", nil, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer notatoken")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
	})
}

func TestCSRFToken_MatchesLoginResponse(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	_, login := loginAlice(t, router)

	rec := doRequest(t, router, http.MethodGet, "/auth/csrf-token", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, login.CSRFToken, decodeBody(t, rec)["csrf_token"])
}

func TestCSRFGuard_CookieTransport(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	loginRec, login := loginAlice(t, router)
	cookie := sessionCookie(t, loginRec)

	t.Run("missing header is rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/auth/logout", nil, func(req *http.Request) {
			req.AddCookie(cookie)
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "CSRF token missing", decodeBody(t, rec)["error"])
	})

	t.Run("wrong header is rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/auth/logout", nil, func(req *http.Request) {
			req.AddCookie(cookie)
			req.Header.Set(CSRFHeader, "not-the-csrf-secret")
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "CSRF token invalid", decodeBody(t, rec)["error"])
	})

	t.Run("matching header passes", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/auth/logout", nil, func(req *http.Request) {
			req.AddCookie(cookie)
			req.Header.Set(CSRFHeader, login.CSRFToken)
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Logged out successfully", decodeBody(t, rec)["message"])

		cleared := sessionCookie(t, rec)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)
	})
}

func TestCSRFGuard_HeaderTransportPassesThrough(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	_, login := loginAlice(t, router)

	// An Authorization header cannot be attached by a forged cross-site
	// request, so bearer calls skip the CSRF check entirely.
	rec := doRequest(t, router, http.MethodPost, "/auth/change-password", ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password updated successfully", decodeBody(t, rec)["message"])

	// The old password no longer logs in, the new one does.
	rec = doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{
		Username: "alice",
		Password: "password123",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{
		Username: "alice",
		Password: "newpassword456",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)
	_, login := loginAlice(t, router)

	rec := doRequest(t, router, http.MethodPost, "/auth/change-password", ChangePasswordRequest{
		OldPassword: "notmypassword",
		NewPassword: "newpassword456",
	}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", decodeBody(t, rec)["error"])
}

func TestForgotPassword_IndistinguishableResponses(t *testing.T) {
	router, _ := newTestRouter(t)
	registerAlice(t, router)

	known := doRequest(t, router, http.MethodPost, "/auth/forgot-password",
		ForgotPasswordRequest{Email: "alice@example.com"}, nil)
	unknown := doRequest(t, router, http.MethodPost, "/auth/forgot-password",
		ForgotPasswordRequest{Email: "stranger@example.com"}, nil)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Contains(t, known.Body.String(), "If the email exists, a reset link has been sent")
}

func TestForgotPassword_EmailRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/auth/forgot-password",
		ForgotPasswordRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required", decodeBody(t, rec)["error"])
}

func TestResetPassword_EndToEnd(t *testing.T) {
	router, store := newTestRouter(t)
	registerAlice(t, router)

	rec := doRequest(t, router, http.MethodPost, "/auth/forgot-password",
		ForgotPasswordRequest{Email: "alice@example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.tokens, 1)
	var token string
	for tok := range store.tokens {
		token = tok
	}

	rec = doRequest(t, router, http.MethodPost, "/auth/reset-password", ResetPasswordRequest{
		Token:       token,
		NewPassword: "resetpassword789",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password has been reset successfully", decodeBody(t, rec)["message"])

	// The token is burned; a second redemption fails.
	rec = doRequest(t, router, http.MethodPost, "/auth/reset-password", ResetPasswordRequest{
		Token:       token,
		NewPassword: "anotherpassword",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token expired or invalid", decodeBody(t, rec)["error"])

	rec = doRequest(t, router, http.MethodPost, "/auth/login", LoginRequest{
		Username: "alice",
		Password: "resetpassword789",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResetPassword_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/auth/reset-password",
		ResetPasswordRequest{Token: "sometoken"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token and new password are required", decodeBody(t, rec)["error"])
}
