package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Leaderboard LeaderboardConfig
	Ledger      LedgerConfig
	Sentry      SentryConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LeaderboardConfig governs leaderboard caching.
type LeaderboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// LedgerConfig tunes score validation, read retries and background reconciliation.
type LedgerConfig struct {
	MaxScore          int
	ReadRetries       int
	ReadRetryDelay    time.Duration
	ReconcileInterval time.Duration
	ReconcileWorkers  int
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN     string
	Release string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Leaderboard = LeaderboardConfig{
		CacheEnabled: v.GetBool("LEADERBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
	}

	maxScore := v.GetInt("LEDGER_MAX_SCORE")
	if maxScore <= 0 {
		maxScore = 100
	}
	cfg.Ledger = LedgerConfig{
		MaxScore:          maxScore,
		ReadRetries:       v.GetInt("LEDGER_READ_RETRIES"),
		ReadRetryDelay:    parseDuration(v.GetString("LEDGER_READ_RETRY_DELAY"), 50*time.Millisecond),
		ReconcileInterval: parseDuration(v.GetString("LEDGER_RECONCILE_INTERVAL"), time.Hour),
		ReconcileWorkers:  v.GetInt("LEDGER_RECONCILE_WORKERS"),
	}

	cfg.Sentry = SentryConfig{
		DSN:     v.GetString("SENTRY_DSN"),
		Release: v.GetString("SENTRY_RELEASE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms_points")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MIGRATIONS_DIR", ".")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "lms-points-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEADERBOARD_CACHE_ENABLED", false)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")

	v.SetDefault("LEDGER_MAX_SCORE", 100)
	v.SetDefault("LEDGER_READ_RETRIES", 3)
	v.SetDefault("LEDGER_READ_RETRY_DELAY", "50ms")
	v.SetDefault("LEDGER_RECONCILE_INTERVAL", "1h")
	v.SetDefault("LEDGER_RECONCILE_WORKERS", 2)

	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_RELEASE", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// viper reports a missing explicit config file as a *fs.PathError rather than
// ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
