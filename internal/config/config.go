package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache drivers accepted by SESSION_CACHE_DRIVER.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	OpTimeout time.Duration
}

// CacheConfig selects the session cache backend.
type CacheConfig struct {
	Driver     string
	MaxEntries int64
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines session credential parameters. It is read once at
// startup and handed to the token service by value.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	DeviceIDTTL        time.Duration

	AccessCookieName  string
	RefreshCookieName string
	DeviceCookieName  string

	AccessKeyPrefix  string
	RefreshKeyPrefix string

	// TokenPrefix is the literal scheme tag carried before every token on the wire.
	TokenPrefix  string
	TokenPurpose string

	BcryptCost int
}

// Load reads configuration from environment variables, applying defaults where possible.
// Signing secrets have no defaults and Load fails when they are absent.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	redisTimeout, err := getEnvAsDuration("REDIS_OP_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}

	authCfg, err := loadAuth()
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "board-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			OpTimeout: redisTimeout,
		},
		Cache: CacheConfig{
			Driver:     strings.ToLower(getEnv("SESSION_CACHE_DRIVER", CacheDriverRedis)),
			MaxEntries: int64(getEnvAsInt("SESSION_CACHE_MAX_ENTRIES", 100000)),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: authCfg,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAuth() (AuthConfig, error) {
	accessTTL, err := getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return AuthConfig{}, err
	}
	refreshTTL, err := getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 14*24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	deviceTTL, err := getEnvAsDuration("AUTH_DEVICE_ID_TTL", 365*24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		AccessTokenSecret:  os.Getenv("AUTH_ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("AUTH_REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		DeviceIDTTL:        deviceTTL,
		AccessCookieName:   getEnv("AUTH_ACCESS_COOKIE", "access_token"),
		RefreshCookieName:  getEnv("AUTH_REFRESH_COOKIE", "refresh_token"),
		DeviceCookieName:   getEnv("AUTH_DEVICE_COOKIE", "ino"),
		AccessKeyPrefix:    getEnv("AUTH_ACCESS_KEY_PREFIX", "access:"),
		RefreshKeyPrefix:   getEnv("AUTH_REFRESH_KEY_PREFIX", "refresh:"),
		TokenPrefix:        getEnv("AUTH_TOKEN_PREFIX", "Bearer:"),
		TokenPurpose:       getEnv("AUTH_TOKEN_PURPOSE", "auth"),
		BcryptCost:         getEnvAsInt("AUTH_BCRYPT_COST", 12),
	}, nil
}

// Validate checks that every value the session core depends on is present.
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("invalid SESSION_CACHE_DRIVER %q", c.Cache.Driver)
	}
	return nil
}

// Validate reports missing or inconsistent auth settings.
func (a AuthConfig) Validate() error {
	var errs []error
	if a.AccessTokenSecret == "" {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_SECRET is required"))
	}
	if a.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_SECRET is required"))
	}
	if a.AccessTokenSecret != "" && a.AccessTokenSecret == a.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0 || a.DeviceIDTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if a.AccessCookieName == "" || a.RefreshCookieName == "" || a.DeviceCookieName == "" {
		errs = append(errs, errors.New("cookie names must not be empty"))
	}
	if a.AccessKeyPrefix == "" || a.RefreshKeyPrefix == "" {
		errs = append(errs, errors.New("cache key prefixes must not be empty"))
	}
	if a.AccessKeyPrefix == a.RefreshKeyPrefix {
		errs = append(errs, errors.New("cache key prefixes must differ"))
	}
	if a.TokenPrefix == "" {
		errs = append(errs, errors.New("AUTH_TOKEN_PREFIX must not be empty"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration is strict: a malformed duration is a startup error.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
