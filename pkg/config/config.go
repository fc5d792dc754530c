package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	devJWTSecret      = "dev_secret"
	devSyllabusSecret = "dev_syllabus_secret"
)

// Storage drivers supported by the syllabus store.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Cache        CacheConfig
	Registration RegistrationConfig
	Fees         FeeConfig
	Jobs         JobsConfig
	Cron         CronConfig
	Storage      StorageConfig
	Syllabus     SyllabusConfig
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

// CacheConfig governs Redis-backed caching of grade aggregates.
type CacheConfig struct {
	Enabled       bool
	FinalGradeTTL time.Duration
	GPATTL        time.Duration
}

// RegistrationConfig controls the self-service registration window.
type RegistrationConfig struct {
	Window time.Duration
}

// FeeConfig holds the tuition constants used by the fee calculator.
type FeeConfig struct {
	PerCredit       float64
	GovernmentGrant float64
}

// JobsConfig sizes the grade-record worker queue.
type JobsConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Timeout       time.Duration
}

// CronConfig holds schedules for the periodic student lifecycle jobs.
type CronConfig struct {
	Enabled            bool
	DeactivateSchedule string
	GraduateSchedule   string
	Timeout            time.Duration
}

// StorageConfig selects where generated documents live.
type StorageConfig struct {
	Driver   string
	LocalDir string
	S3       S3Config
}

// S3Config describes an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// SyllabusConfig signs syllabus download links.
type SyllabusConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
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

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the API cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret {
			problems = append(problems, "JWT_SECRET must be set in production")
		}
		if c.Syllabus.SignedURLSecret == "" || c.Syllabus.SignedURLSecret == devSyllabusSecret {
			problems = append(problems, "SYLLABUS_SIGNED_URL_SECRET must be set in production")
		}
	}
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			problems = append(problems, "STORAGE_LOCAL_DIR is required for the local driver")
		}
	case StorageDriverS3:
		if c.Storage.S3.Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.Fees.PerCredit < 0 || c.Fees.GovernmentGrant < 0 {
		problems = append(problems, "fee constants must not be negative")
	}
	if c.Registration.Window <= 0 {
		problems = append(problems, "REGISTRATION_WINDOW must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
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

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("ENABLE_CACHE"),
		FinalGradeTTL: parseDuration(v.GetString("CACHE_FINAL_GRADE_TTL"), 10*time.Minute),
		GPATTL:        parseDuration(v.GetString("CACHE_GPA_TTL"), time.Hour),
	}

	cfg.Registration = RegistrationConfig{
		Window: parseDuration(v.GetString("REGISTRATION_WINDOW"), 14*24*time.Hour),
	}

	cfg.Fees = FeeConfig{
		PerCredit:       v.GetFloat64("FEE_PER_CREDIT"),
		GovernmentGrant: v.GetFloat64("GOVERNMENT_GRANT"),
	}

	cfg.Jobs = JobsConfig{
		Workers:       v.GetInt("JOBS_WORKERS"),
		BufferSize:    v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries:    v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
		MaxRetryDelay: parseDuration(v.GetString("JOBS_MAX_RETRY_DELAY"), 5*time.Minute),
		Timeout:       parseDuration(v.GetString("JOBS_TIMEOUT"), 30*time.Second),
	}

	cfg.Cron = CronConfig{
		Enabled:            v.GetBool("ENABLE_CRON"),
		DeactivateSchedule: v.GetString("CRON_DEACTIVATE_SCHEDULE"),
		GraduateSchedule:   v.GetString("CRON_GRADUATE_SCHEDULE"),
		Timeout:            parseDuration(v.GetString("CRON_TIMEOUT"), 10*time.Minute),
	}

	cfg.Storage = StorageConfig{
		Driver:   strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir: v.GetString("STORAGE_LOCAL_DIR"),
		S3: S3Config{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			Region:    v.GetString("S3_REGION"),
			Bucket:    v.GetString("S3_BUCKET"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
	}

	cfg.Syllabus = SyllabusConfig{
		SignedURLSecret: v.GetString("SYLLABUS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("SYLLABUS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "uni_backend")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "uni-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_FINAL_GRADE_TTL", "10m")
	v.SetDefault("CACHE_GPA_TTL", "1h")

	v.SetDefault("REGISTRATION_WINDOW", "336h")
	v.SetDefault("FEE_PER_CREDIT", 37.5)
	v.SetDefault("GOVERNMENT_GRANT", 2250)

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 64)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")
	v.SetDefault("JOBS_MAX_RETRY_DELAY", "5m")
	v.SetDefault("JOBS_TIMEOUT", "30s")

	// Seconds-precision schedules: Jan 1 and Jun 1 at midnight, and Jan 1 at midnight.
	v.SetDefault("ENABLE_CRON", false)
	v.SetDefault("CRON_DEACTIVATE_SCHEDULE", "0 0 0 1 1,6 *")
	v.SetDefault("CRON_GRADUATE_SCHEDULE", "0 0 0 1 1 *")
	v.SetDefault("CRON_TIMEOUT", "10m")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploaded_syllabus")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)

	v.SetDefault("SYLLABUS_SIGNED_URL_SECRET", devSyllabusSecret)
	v.SetDefault("SYLLABUS_SIGNED_URL_TTL", "24h")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
