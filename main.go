// FitTrack API server entry point. Wires configuration, the database
// pool, migrations, services and HTTP routing, then serves until it
// receives a shutdown signal.
//
// @title FitTrack API
// @version 1.0
// @description API for FitTrack, a personal fitness tracking application.
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/fittrack-go/apperror"
	"github.com/user/fittrack-go/auth"
	"github.com/user/fittrack-go/config"
	"github.com/user/fittrack-go/db"
	_ "github.com/user/fittrack-go/docs" // Generated Swagger docs
	"github.com/user/fittrack-go/mail"
	"github.com/user/fittrack-go/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pool, err := db.NewPool(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.DB, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Manual dependency injection, wired bottom-up.
	store := auth.NewPostgresStore(pool)
	hasher := auth.NewHasher(cfg.Auth.PasswordPepper, cfg.Auth.BcryptCost)
	issuer := auth.NewTokenIssuer(*cfg.Auth)
	mailer := mail.NewMailer(cfg.Mail)

	authService := auth.NewAuthService(store, hasher, issuer, mailer, *cfg.Auth, cfg.Server.BaseURL)
	authHandlers := auth.NewHandlers(authService, *cfg.Auth)

	userService := users.NewUserService(pool)
	userHandlers := users.NewUserHandlers(userService)

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Panic recovery that answers in the application's JSON error shape.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Printf("Panic: %+v", rvr)
					writeError(ww, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/auth", func(r chi.Router) {
		// Public endpoints.
		r.Post("/register", authHandlers.HandleRegister())
		r.Post("/login", authHandlers.HandleLogin())
		r.Post("/forgot-password", authHandlers.HandleForgotPassword())
		r.Post("/reset-password", authHandlers.HandleResetPassword())

		// Session-guarded endpoints. Reads need only a valid session;
		// state-mutating routes additionally pass the CSRF guard, which
		// lets header-authenticated requests through and checks the
		// X-CSRF-TOKEN header for cookie-authenticated ones.
		r.Group(func(r chi.Router) {
			r.Use(auth.SessionMiddleware(issuer))

			r.Get("/me", authHandlers.HandleMe())
			r.Get("/csrf-token", authHandlers.HandleCSRFToken())

			r.Group(func(r chi.Router) {
				r.Use(auth.CSRFMiddleware())
				r.Post("/logout", authHandlers.HandleLogout())
				r.Post("/change-password", authHandlers.HandleChangePassword())
			})
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(auth.SessionMiddleware(issuer))

		r.Get("/me", userHandlers.HandleGetProfile())

		r.Group(func(r chi.Router) {
			r.Use(auth.CSRFMiddleware())
			r.Put("/me", userHandlers.HandleUpdateProfile())
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// writeError is a local helper for the panic recovery middleware.
func writeError(w http.ResponseWriter, appErr *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	if err := json.NewEncoder(w).Encode(appErr.ToResponse()); err != nil {
		http.Error(w, `{"error":"Failed to encode error response"}`, http.StatusInternalServerError)
	}
}
