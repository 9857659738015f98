package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Replan   ReplanConfig
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
	RunMigrations bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig validates access tokens issued by the accounts service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReplanConfig tunes the rescheduling engine and the runs around it.
type ReplanConfig struct {
	Timezone              string
	Location              *time.Location
	MaxPerSubjectPerDay   int
	PreferredWindowDays   int
	DefaultSessionMinutes int
	RunTimeout            time.Duration
	LockTTL               time.Duration
	OverdueCacheTTL       time.Duration
	HistoryWorkers        int
	HistoryRetries        int
	HistoryRetryDelay     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		RunMigrations: v.GetBool("RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	timezone := v.GetString("REPLAN_TIMEZONE")
	cfg.Replan = ReplanConfig{
		Timezone:              timezone,
		Location:              loadLocation(timezone),
		MaxPerSubjectPerDay:   positiveInt(v.GetInt("REPLAN_MAX_PER_SUBJECT_PER_DAY"), 2),
		PreferredWindowDays:   positiveInt(v.GetInt("REPLAN_PREFERRED_WINDOW_DAYS"), 7),
		DefaultSessionMinutes: positiveInt(v.GetInt("REPLAN_DEFAULT_SESSION_MINUTES"), 50),
		RunTimeout:            parseDuration(v.GetString("REPLAN_RUN_TIMEOUT"), 10*time.Second),
		LockTTL:               parseDuration(v.GetString("REPLAN_LOCK_TTL"), 30*time.Second),
		OverdueCacheTTL:       parseDuration(v.GetString("REPLAN_OVERDUE_CACHE_TTL"), time.Minute),
		HistoryWorkers:        positiveInt(v.GetInt("REPLAN_HISTORY_WORKERS"), 1),
		HistoryRetries:        v.GetInt("REPLAN_HISTORY_RETRIES"),
		HistoryRetryDelay:     parseDuration(v.GetString("REPLAN_HISTORY_RETRY_DELAY"), 2*time.Second),
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
	v.SetDefault("DB_NAME", "study_planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("RUN_MIGRATIONS", false)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REPLAN_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("REPLAN_MAX_PER_SUBJECT_PER_DAY", 2)
	v.SetDefault("REPLAN_PREFERRED_WINDOW_DAYS", 7)
	v.SetDefault("REPLAN_DEFAULT_SESSION_MINUTES", 50)
	v.SetDefault("REPLAN_RUN_TIMEOUT", "10s")
	v.SetDefault("REPLAN_LOCK_TTL", "30s")
	v.SetDefault("REPLAN_OVERDUE_CACHE_TTL", "1m")
	v.SetDefault("REPLAN_HISTORY_WORKERS", 1)
	v.SetDefault("REPLAN_HISTORY_RETRIES", 3)
	v.SetDefault("REPLAN_HISTORY_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// loadLocation falls back to UTC when the zone database lacks name.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
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
