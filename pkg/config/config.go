package config

import (
	"errors"
	"io/fs"
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
	Env  string
	Port int

	Mongo      MongoConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Cache      CacheConfig
	Attendance AttendanceConfig
	Audit      AuditConfig
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures token issuance. A zero Expiration issues tokens without an exp claim.
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

// CacheConfig toggles Redis caching for read-heavy listings.
type CacheConfig struct {
	Enabled     bool
	StudentsTTL time.Duration
}

// AttendanceConfig governs live attendance sessions.
type AttendanceConfig struct {
	SessionTTL time.Duration
}

// AuditConfig enables the Postgres-backed audit trail.
type AuditConfig struct {
	Enabled  bool
	Workers  int
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	// JWT_SECRETKEY is the variable name older deployments export.
	_ = v.BindEnv("JWT_SECRET", "JWT_SECRET", "JWT_SECRETKEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Mongo = MongoConfig{
		URI:      v.GetString("MONGO_URI"),
		Database: v.GetString("MONGO_DATABASE"),
		Timeout:  parseDuration(v.GetString("MONGO_TIMEOUT"), 10*time.Second),
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
	if cfg.JWT.Secret == "" {
		if cfg.Env == EnvProduction {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWT.Secret = "dev_secret"
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:     v.GetBool("ENABLE_CACHE"),
		StudentsTTL: parseDuration(v.GetString("STUDENTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Attendance = AttendanceConfig{
		SessionTTL: parseDuration(v.GetString("ATTENDANCE_SESSION_TTL"), 2*time.Hour),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT"),
		Workers: v.GetInt("AUDIT_WORKERS"),
		Database: DatabaseConfig{
			Host:         v.GetString("AUDIT_DB_HOST"),
			Port:         v.GetInt("AUDIT_DB_PORT"),
			User:         v.GetString("AUDIT_DB_USER"),
			Password:     v.GetString("AUDIT_DB_PASSWORD"),
			Name:         v.GetString("AUDIT_DB_NAME"),
			SSLMode:      v.GetString("AUDIT_DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("AUDIT_DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("AUDIT_DB_MAX_IDLE_CONNS"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "classroom")
	v.SetDefault("MONGO_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "classroom-attendance-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("STUDENTS_CACHE_TTL", "5m")
	v.SetDefault("ATTENDANCE_SESSION_TTL", "2h")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_DB_HOST", "localhost")
	v.SetDefault("AUDIT_DB_PORT", 5432)
	v.SetDefault("AUDIT_DB_USER", "postgres")
	v.SetDefault("AUDIT_DB_PASSWORD", "postgres")
	v.SetDefault("AUDIT_DB_NAME", "classroom_audit")
	v.SetDefault("AUDIT_DB_SSL_MODE", "disable")
	v.SetDefault("AUDIT_DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("AUDIT_DB_MAX_IDLE_CONNS", 2)
}

// parseDuration accepts "0" to explicitly disable a duration.
func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if raw == "0" {
		return 0
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
