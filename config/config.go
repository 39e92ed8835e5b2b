// Package config loads and validates application configuration from
// environment variables. Loading collects every problem it finds and
// reports them together, so a misconfigured deployment fails fast with a
// complete list instead of one error at a time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PoolConfig holds settings for the PostgreSQL connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// AuthConfig holds the secrets and knobs consumed by the auth core.
// Everything here is deployment configuration, not owned by auth logic.
type AuthConfig struct {
	// JWTSecret signs session tokens (HS256).
	JWTSecret string
	// PasswordPepper is appended to every password before hashing. It is
	// a deployment secret, never stored in the database, so a DB-only
	// breach cannot offline-crack hashes.
	PasswordPepper string
	// BcryptCost bounds the hashing work factor so a single request stays
	// within the latency budget.
	BcryptCost          int
	AccessTokenDuration time.Duration
	ResetTokenDuration  time.Duration
	// CookieSecure sets the Secure flag on the session cookie. Off by
	// default for local development, on in production.
	CookieSecure bool
}

// MailConfig holds SMTP settings for outbound mail (password reset links).
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	// BaseURL is the externally visible origin, used to build reset links.
	BaseURL string
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	DB     *PoolConfig
	Auth   *AuthConfig
	Mail   *MailConfig
	Server *ServerConfig
}

func getRequiredEnv(key string, errs *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		*errs = append(*errs, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getOptionalEnvInt(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

func getOptionalEnvBool(key string, defaultValue bool, errs *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected boolean, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected duration string, got %q: %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size within sane bounds.
func clampPoolSize(size int, varName string, errs *[]string) int {
	if size < 5 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is less than minimum 5, clamping to 5", varName, size))
		return 5
	}
	if size > 100 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100, clamping to 100", varName, size))
		return 100
	}
	return size
}

// LoadConfig reads and validates all configuration from the environment.
// It returns a single aggregated error listing everything that was wrong.
func LoadConfig() (*AppConfig, error) {
	var errs []string

	// Database
	dbUser := getRequiredEnv("DB_USER", &errs)
	dbPassword := getRequiredEnv("DB_PASSWORD", &errs)
	dbName := getRequiredEnv("DB_NAME", &errs)
	dbHost := getOptionalEnv("DB_HOST", "localhost")
	dbPort := getOptionalEnvInt("DB_PORT", 5432, &errs)
	poolSize := clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errs), "DB_POOL_SIZE", &errs)

	dbConfig := &PoolConfig{
		Host:     dbHost,
		Port:     dbPort,
		User:     dbUser,
		Password: dbPassword,
		DBName:   dbName,
		MaxSize:  poolSize,
	}

	// Auth
	jwtSecret := getRequiredEnv("JWT_SECRET", &errs)
	pepper := getRequiredEnv("PASSWORD_PEPPER", &errs)
	bcryptCost := getOptionalEnvInt("BCRYPT_COST", 0, &errs) // 0 means bcrypt default
	if bcryptCost != 0 && (bcryptCost < 4 || bcryptCost > 17) {
		errs = append(errs, fmt.Sprintf("BCRYPT_COST (%d) out of range [4,17]", bcryptCost))
		bcryptCost = 0
	}
	accessTokenDuration := getOptionalEnvDuration("JWT_ACCESS_TOKEN_DURATION", 30*time.Minute, &errs)
	resetTokenDuration := getOptionalEnvDuration("PASSWORD_RESET_TOKEN_DURATION", time.Hour, &errs)
	cookieSecure := getOptionalEnvBool("COOKIE_SECURE", false, &errs)

	authConfig := &AuthConfig{
		JWTSecret:           jwtSecret,
		PasswordPepper:      pepper,
		BcryptCost:          bcryptCost,
		AccessTokenDuration: accessTokenDuration,
		ResetTokenDuration:  resetTokenDuration,
		CookieSecure:        cookieSecure,
	}

	// Mail. All optional: with an empty host the mailer logs and skips
	// sending, which keeps local development working without SMTP.
	mailConfig := &MailConfig{
		Host:     getOptionalEnv("MAIL_HOST", ""),
		Port:     getOptionalEnvInt("MAIL_PORT", 587, &errs),
		Username: getOptionalEnv("MAIL_USERNAME", ""),
		Password: getOptionalEnv("MAIL_PASSWORD", ""),
		From:     getOptionalEnv("MAIL_FROM", getOptionalEnv("MAIL_USERNAME", "")),
	}

	// Server
	serverConfig := &ServerConfig{
		Port:    getOptionalEnv("PORT", "8080"),
		BaseURL: getOptionalEnv("APP_BASE_URL", "http://localhost:8080"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return &AppConfig{
		DB:     dbConfig,
		Auth:   authConfig,
		Mail:   mailConfig,
		Server: serverConfig,
	}, nil
}
