package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/user/fittrack-go/apperror"
	"github.com/user/fittrack-go/config"
)

// validate checks request DTOs against their struct tags. Field names in
// error reports use the json tag so clients see the names they sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest runs struct validation and shapes failures into a
// field-keyed error map. Other handler packages share it so every DTO
// reports validation errors in the same format.
func ValidateRequest(req interface{}) *apperror.AppError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe))
		}
	}
	return apperror.NewValidationError("Invalid input", fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Handlers wraps AuthService with the HTTP endpoints of the auth module.
type Handlers struct {
	service *AuthService
	cfg     config.AuthConfig
}

// NewHandlers creates a Handlers instance.
func NewHandlers(service *AuthService, cfg config.AuthConfig) *Handlers {
	return &Handlers{service: service, cfg: cfg}
}

// HandleRegister godoc
// @Summary Register a new user
// @Description Creates a new account with the default role.
// @Tags Auth
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "Registration details"
// @Success 201 {object} auth.RegisterResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid input or user already exists"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /auth/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("Invalid request body", err))
			return
		}
		defer r.Body.Close()

		if appErr := ValidateRequest(req); appErr != nil {
			WriteError(w, r, appErr)
			return
		}

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusCreated, RegisterResponse{
			Message: "User registered successfully",
			User:    user,
		})
	}
}

// HandleLogin godoc
// @Summary Log in
// @Description Verifies credentials, sets the session cookie, and returns the access and CSRF tokens.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "Login credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} apperror.ErrorResponse "Missing username or password"
// @Failure 401 {object} apperror.ErrorResponse "Invalid credentials"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("Invalid request body", err))
			return
		}
		defer r.Body.Close()

		if req.Username == "" || req.Password == "" {
			WriteError(w, r, apperror.NewBadRequestError("Missing username or password", nil))
			return
		}

		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		h.setSessionCookie(w, resp.AccessToken, resp.ExpiresIn)
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleMe godoc
// @Summary Current user
// @Description Returns the authenticated user's record.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.UserResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "User no longer exists"
// @Router /auth/me [get]
func (h *Handlers) HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperror.NewAuthError("Not authenticated", nil))
			return
		}

		user, err := h.service.GetUser(r.Context(), userID)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusOK, UserResponse{User: user})
	}
}

// HandleCSRFToken godoc
// @Summary Fetch the CSRF token bound to the session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.CSRFTokenResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /auth/csrf-token [get]
func (h *Handlers) HandleCSRFToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperror.NewAuthError("Not authenticated", nil))
			return
		}
		WriteJSON(w, http.StatusOK, CSRFTokenResponse{CSRFToken: claims.CSRF})
	}
}

// HandleLogout godoc
// @Summary Log out
// @Description Clears the session cookie. The server keeps no revocation list; a token presented via header stays valid until expiry.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.MessageResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse "CSRF check failed"
// @Router /auth/logout [post]
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.clearSessionCookie(w)
		WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
	}
}

// HandleChangePassword godoc
// @Summary Change password
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param changeBody body auth.ChangePasswordRequest true "Old and new passwords"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse "Current password is incorrect"
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse "CSRF check failed"
// @Router /auth/change-password [post]
func (h *Handlers) HandleChangePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperror.NewAuthError("Not authenticated", nil))
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("Invalid request body", err))
			return
		}
		defer r.Body.Close()

		if appErr := ValidateRequest(req); appErr != nil {
			WriteError(w, r, appErr)
			return
		}

		if err := h.service.ChangePassword(r.Context(), userID, req); err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
	}
}

// HandleForgotPassword godoc
// @Summary Request a password reset
// @Description Always reports success with the same generic message, whether or not the email is registered.
// @Tags Auth
// @Accept json
// @Produce json
// @Param forgotBody body auth.ForgotPasswordRequest true "Account email"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse "Email is required"
// @Router /auth/forgot-password [post]
func (h *Handlers) HandleForgotPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("Invalid request body", err))
			return
		}
		defer r.Body.Close()

		if req.Email == "" {
			WriteError(w, r, apperror.NewBadRequestError("Email is required", nil))
			return
		}

		if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
			WriteError(w, r, err)
			return
		}

		// Identical body for known and unknown emails.
		WriteJSON(w, http.StatusOK, MessageResponse{
			Message: "If the email exists, a reset link has been sent",
		})
	}
}

// HandleResetPassword godoc
// @Summary Redeem a password reset token
// @Tags Auth
// @Accept json
// @Produce json
// @Param resetBody body auth.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse "Token expired or invalid"
// @Failure 404 {object} apperror.ErrorResponse "User no longer exists"
// @Router /auth/reset-password [post]
func (h *Handlers) HandleResetPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("Invalid request body", err))
			return
		}
		defer r.Body.Close()

		if req.Token == "" || req.NewPassword == "" {
			WriteError(w, r, apperror.NewBadRequestError("Token and new password are required", nil))
			return
		}

		if err := h.service.ResetPassword(r.Context(), req); err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully"})
	}
}

// setSessionCookie attaches the access token as an HttpOnly, SameSite=Lax
// cookie. The Secure flag follows deployment configuration.
func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, expiresIn int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiresIn),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie client-side.
func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// tokenError maps token verification failures onto the error taxonomy.
func tokenError(err error) *apperror.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingToken):
		return apperror.NewAuthError("Authorization token is missing", err)
	case errors.Is(err, ErrExpiredToken):
		return apperror.NewAuthError("Token has expired", err)
	default:
		return apperror.NewAuthError("Invalid token", err)
	}
}

// csrfError maps CSRF guard failures to 403 responses.
func csrfError(err error) *apperror.AppError {
	if errors.Is(err, ErrCSRFMissing) {
		return apperror.NewForbiddenError("CSRF token missing", err)
	}
	return apperror.NewForbiddenError("CSRF token invalid", err)
}

// WriteJSON serializes data to the response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// WriteError converts any error into a standardized JSON error response.
// Non-AppError values are wrapped as internal errors so nothing leaks raw.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("An unexpected error occurred", err)
	}
	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
