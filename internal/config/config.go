package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "fallback-secret-key-for-dev-only"

// ErrMissingJWTSecret is returned by Load in production when JWT_SECRET is
// unset, since the development fallback would let anyone mint sessions.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when ENV=production")

// Config holds application configuration
type Config struct {
	// Server
	Env          string
	Port         string
	AppURL       string
	CookieSecure bool

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Sessions and credentials
	JWTSecret            string
	JWTExpirationDur     time.Duration
	BcryptCost           int
	VerificationTokenTTL time.Duration

	// Two-factor
	TOTPIssuer string
	TOTPSkew   uint

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	// Rate limiting (memory limiter when RedisAddr is empty)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// Chat advisor
	AdvisorAPIURL string
	AdvisorAPIKey string
	AdvisorModel  string

	// Admin endpoints
	AdminAPIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:          getEnv("ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		AppURL:       getEnv("APP_URL", "http://localhost:3000"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "moneyminder"),
		DBPassword: getEnv("DB_PASSWORD", "moneyminder"),
		DBName:     getEnv("DB_NAME", "moneyminder"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:            getEnv("JWT_SECRET", devJWTSecret),
		JWTExpirationDur:     getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		BcryptCost:           getEnvInt("BCRYPT_COST", 10),
		VerificationTokenTTL: getEnvDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),

		TOTPIssuer: getEnv("TOTP_ISSUER", "MoneyMinder"),
		TOTPSkew:   getEnvUint("TOTP_SKEW", 1),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "MoneyMinder <noreply@moneyminder.com>"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", time.Minute),

		AdvisorAPIURL: getEnv("ADVISOR_API_URL", "https://api.openai.com/v1"),
		AdvisorAPIKey: getEnv("ADVISOR_API_KEY", ""),
		AdvisorModel:  getEnv("ADVISOR_MODEL", "gpt-4o"),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	if config.Env == "production" && config.JWTSecret == devJWTSecret {
		return nil, ErrMissingJWTSecret
	}

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvUint(key string, defaultValue uint) uint {
	v := getEnvInt(key, int(defaultValue))
	if v < 0 {
		log.Printf("Warning: invalid %s value '%d', falling back to %d\n", key, v, defaultValue)
		return defaultValue
	}
	return uint(v)
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}
