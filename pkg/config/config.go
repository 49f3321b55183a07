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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Payments  PaymentsConfig
	Resources ResourcesConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaymentsConfig tunes the cross-college unlock flow.
type PaymentsConfig struct {
	FlatAmount      float64
	Currency        string
	SessionTTL      time.Duration
	ProviderTimeout time.Duration
	ProviderDelay   time.Duration
	RatePerSecond   float64
	RateBurst       int
}

// ResourcesConfig governs hierarchy caching and signed download links.
type ResourcesConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	amount := v.GetFloat64("PAYMENTS_FLAT_AMOUNT")
	if amount <= 0 {
		amount = 10.00
	}
	cfg.Payments = PaymentsConfig{
		FlatAmount:      amount,
		Currency:        strings.ToUpper(v.GetString("PAYMENTS_CURRENCY")),
		SessionTTL:      parseDuration(v.GetString("PAYMENTS_SESSION_TTL"), time.Hour),
		ProviderTimeout: parseDuration(v.GetString("PAYMENTS_PROVIDER_TIMEOUT"), 5*time.Second),
		ProviderDelay:   parseDuration(v.GetString("PAYMENTS_PROVIDER_DELAY"), 500*time.Millisecond),
		RatePerSecond:   v.GetFloat64("PAYMENTS_RATE_PER_SECOND"),
		RateBurst:       v.GetInt("PAYMENTS_RATE_BURST"),
	}

	cfg.Resources = ResourcesConfig{
		CacheEnabled:    v.GetBool("RESOURCES_CACHE_ENABLED"),
		CacheTTL:        parseDuration(v.GetString("RESOURCES_CACHE_TTL"), 5*time.Minute),
		SignedURLSecret: v.GetString("RESOURCES_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RESOURCES_SIGNED_URL_TTL"), 15*time.Minute),
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
	v.SetDefault("DB_NAME", "collegehub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "collegehub-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PAYMENTS_FLAT_AMOUNT", 10.00)
	v.SetDefault("PAYMENTS_CURRENCY", "USD")
	v.SetDefault("PAYMENTS_SESSION_TTL", "1h")
	v.SetDefault("PAYMENTS_PROVIDER_TIMEOUT", "5s")
	v.SetDefault("PAYMENTS_PROVIDER_DELAY", "500ms")
	v.SetDefault("PAYMENTS_RATE_PER_SECOND", 1)
	v.SetDefault("PAYMENTS_RATE_BURST", 5)

	v.SetDefault("RESOURCES_CACHE_ENABLED", false)
	v.SetDefault("RESOURCES_CACHE_TTL", "5m")
	v.SetDefault("RESOURCES_SIGNED_URL_SECRET", "dev_resources_secret")
	v.SetDefault("RESOURCES_SIGNED_URL_TTL", "15m")
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
