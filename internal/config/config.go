package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Env                string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	LogLevel           string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTAccessSecret      string
	JWTRefreshSecret     string
	JWTIssuer            string
	JWTAudience          string
	JWTAccessTTL         time.Duration
	JWTRefreshTTL        time.Duration
	RefreshTokenStoreTTL time.Duration
	PasswordResetTTL     time.Duration
	BcryptCost           int
	HashConcurrency      int

	CORSOrigins        []string
	WSAllowedOrigins   []string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	IdentityRateLimit  int
	IdentityRateWindow time.Duration
	RedisURL           string

	TokenCleanupSchedule string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTAccessSecret:      strings.TrimSpace(os.Getenv("JWT_ACCESS_SECRET")),
		JWTRefreshSecret:     strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTIssuer:            getEnv("JWT_ISSUER", "freelance-api"),
		JWTAudience:          getEnv("JWT_AUDIENCE", "freelance-clients"),
		JWTAccessTTL:         getDuration("JWT_ACCESS_TTL", time.Hour),
		JWTRefreshTTL:        getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		RefreshTokenStoreTTL: getDuration("REFRESH_TOKEN_STORE_TTL", 168*time.Hour),
		PasswordResetTTL:     getDuration("PASSWORD_RESET_TTL", time.Hour),
		BcryptCost:           getInt("BCRYPT_COST", 12),
		HashConcurrency:      getInt("HASH_CONCURRENCY", runtime.GOMAXPROCS(0)),

		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		WSAllowedOrigins:   splitCSV(os.Getenv("WS_ALLOWED_ORIGINS")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		IdentityRateLimit:  getInt("IDENTITY_RATE_LIMIT", 300),
		IdentityRateWindow: getDuration("IDENTITY_RATE_WINDOW", 15*time.Minute),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),

		TokenCleanupSchedule: getEnv("TOKEN_CLEANUP_SCHEDULE", "@every 1h"),
	}

	defaultLevel := "debug"
	if cfg.IsProduction() {
		defaultLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", defaultLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// UsesMemoryStore reports whether the API runs without PostgreSQL. Only
// allowed outside production.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == "" && !c.IsProduction()
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV must be one of development, production, test")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS must satisfy 0 <= min <= max, max > 0")
	}

	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_ACCESS_SECRET")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 || c.RefreshTokenStoreTTL <= 0 || c.PasswordResetTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL, JWT_REFRESH_TTL, REFRESH_TOKEN_STORE_TTL and PASSWORD_RESET_TTL must be positive")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.IdentityRateLimit <= 0 || c.IdentityRateWindow <= 0 {
		return fmt.Errorf("IDENTITY_RATE_LIMIT and IDENTITY_RATE_WINDOW must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
