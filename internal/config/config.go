package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store modes select how the credential store builds queries. The flag is
// read once at store construction, never per call.
const (
	StoreModeSecure     = "secure"
	StoreModeVulnerable = "vulnerable"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Email    EmailConfig
	Store    StoreConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	CleanupInterval   time.Duration
}

// SecurityConfig holds the password policy and lockout parameters.
// Immutable for the process lifetime after Load.
type SecurityConfig struct {
	MinLength        int
	RequireUpper     bool
	RequireLower     bool
	RequireDigit     bool
	RequireSymbol    bool
	HistoryCount     int
	LockoutThreshold int
	LockoutWindow    time.Duration
	ResetTokenTTL    time.Duration
	DictionaryPath   string
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

// StoreConfig selects the persistence backend and query-construction mode.
type StoreConfig struct {
	Backend string // "postgres" or "memory"
	Mode    string // "secure" or "vulnerable"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "credcore"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
			// Empty by default: forwarding headers are never trusted
			// unless proxies are listed explicitly.
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			CleanupInterval:   getEnvAsDuration("RESET_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Security: SecurityConfig{
			MinLength:        getEnvAsInt("PASSWORD_MIN_LENGTH", 10),
			RequireUpper:     getEnvAsBool("PASSWORD_REQUIRE_UPPER", true),
			RequireLower:     getEnvAsBool("PASSWORD_REQUIRE_LOWER", true),
			RequireDigit:     getEnvAsBool("PASSWORD_REQUIRE_DIGIT", true),
			RequireSymbol:    getEnvAsBool("PASSWORD_REQUIRE_SYMBOL", true),
			HistoryCount:     getEnvAsInt("PASSWORD_HISTORY_COUNT", 3),
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 3),
			LockoutWindow:    getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			ResetTokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", 15*time.Minute),
			DictionaryPath:   getEnv("DICTIONARY_PATH", "config/dictionary.txt"),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM", "no-reply@comunication-ltd.com"),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:8080"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", StoreBackendPostgres),
			Mode:    getEnv("STORE_MODE", StoreModeSecure),
		},
	}

	if cfg.Store.Backend == StoreBackendPostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateStoreConfig(&cfg.Store, env); err != nil {
		return nil, err
	}

	if err := validateSecurityConfig(&cfg.Security); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateStoreConfig(store *StoreConfig, env string) error {
	switch store.Backend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q (got %q)",
			StoreBackendPostgres, StoreBackendMemory, store.Backend)
	}

	switch store.Mode {
	case StoreModeSecure:
	case StoreModeVulnerable:
		// The vulnerable strategy exists only to demonstrate injection
		// exposure. Refuse to run it where real data could live.
		if env == "production" {
			return fmt.Errorf("STORE_MODE=%s is not allowed in production", StoreModeVulnerable)
		}
	default:
		return fmt.Errorf("STORE_MODE must be %q or %q (got %q)",
			StoreModeSecure, StoreModeVulnerable, store.Mode)
	}

	return nil
}

func validateSecurityConfig(sec *SecurityConfig) error {
	if sec.MinLength < 1 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be positive (got %d)", sec.MinLength)
	}
	if sec.HistoryCount < 0 {
		return fmt.Errorf("PASSWORD_HISTORY_COUNT cannot be negative (got %d)", sec.HistoryCount)
	}
	if sec.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive (got %d)", sec.LockoutThreshold)
	}
	if sec.LockoutWindow <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW must be positive")
	}
	if sec.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
