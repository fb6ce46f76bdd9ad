package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP      HTTPConfig
	MySQLDSN  string
	JWT       JWTConfig
	Refresh   RefreshConfig
	Tokens    TokenConfig
	Password  PasswordConfig
	Cookies   CookieConfig
	OAuth     OAuthConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	Frontend  FrontendConfig
	LogLevel  string
}

type HTTPConfig struct {
	Host string
	Port string
}

type JWTConfig struct {
	Secret string
	// AccessTTL is the default access token lifetime; ExtendedTTL applies
	// when a login opts into remember-me.
	AccessTTL   time.Duration
	ExtendedTTL time.Duration
}

type RefreshConfig struct {
	TTL         time.Duration
	ExtendedTTL time.Duration
}

type TokenConfig struct {
	VerifyTTL time.Duration
	ResetTTL  time.Duration
	StateTTL  time.Duration
}

type PasswordConfig struct {
	Policy PasswordPolicy
}

type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("password must be at most %d characters long", p.MaxLength)
	}
	return nil
}

type CookieConfig struct {
	Domain string
	Secure bool
}

type OAuthConfig struct {
	Google GoogleOAuthConfig
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether the Google flow is configured; the /auth/google
// routes reject when it is not.
func (g GoogleOAuthConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type RateLimitConfig struct {
	// Requests allowed per Window for each client address on the guarded
	// endpoints (login, forgot-password).
	Requests int
	Window   time.Duration
}

type FrontendConfig struct {
	// BaseURL is where verification/reset links and OAuth redirects point.
	BaseURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", ""),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQLDSN: mysqlDSN,
		JWT: JWTConfig{
			Secret:      jwtSecret,
			AccessTTL:   getDurationEnv("JWT_ACCESS_TTL", 15*time.Minute),
			ExtendedTTL: getDurationEnv("JWT_ACCESS_EXTENDED_TTL", 7*24*time.Hour),
		},
		Refresh: RefreshConfig{
			TTL:         getDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			ExtendedTTL: getDurationEnv("REFRESH_TOKEN_EXTENDED_TTL", 30*24*time.Hour),
		},
		Tokens: TokenConfig{
			VerifyTTL: getDurationEnv("VERIFY_TOKEN_TTL", 24*time.Hour),
			ResetTTL:  getDurationEnv("RESET_TOKEN_TTL", time.Hour),
			StateTTL:  getDurationEnv("OAUTH_STATE_TTL", 10*time.Minute),
		},
		Password: PasswordConfig{
			Policy: PasswordPolicy{
				MinLength: getIntEnv("PASSWORD_MIN_LENGTH", 6),
				MaxLength: getIntEnv("PASSWORD_MAX_LENGTH", 20),
			},
		},
		Cookies: CookieConfig{
			Domain: getEnv("COOKIE_DOMAIN", ""),
			Secure: getBoolEnv("COOKIE_SECURE", true),
		},
		OAuth: OAuthConfig{
			Google: GoogleOAuthConfig{
				ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
			},
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getIntEnv("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@linkloop.app"),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 10),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
