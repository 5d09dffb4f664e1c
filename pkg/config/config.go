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
	Token     TokenConfig
	Password  PasswordConfig
	OAuth     OAuthConfig
	Bootstrap BootstrapConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
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

// TokenConfig holds the token issuance knobs. Access tokens are short-lived,
// refresh tokens long-lived; both TTLs are supplied externally.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	RSAKeyBits int
}

// PasswordConfig holds the password hashing cost factor.
type PasswordConfig struct {
	BcryptCost int
}

// OAuthConfig points at the identity provider verification endpoints.
type OAuthConfig struct {
	GoogleTokenInfoURL string
	FacebookGraphURL   string
	RequestTimeout     time.Duration
}

// BootstrapConfig tunes the fire-and-forget account bootstrap workers.
type BootstrapConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// SessionConfig tunes the session key verification cache.
type SessionConfig struct {
	CacheTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Token = TokenConfig{
		AccessTTL:  parseDuration(v.GetString("ACCESS_TOKEN_TTL"), 15*time.Minute),
		RefreshTTL: parseDuration(v.GetString("REFRESH_TOKEN_TTL"), 7*24*time.Hour),
		Issuer:     v.GetString("TOKEN_ISSUER"),
		RSAKeyBits: v.GetInt("RSA_KEY_BITS"),
	}

	cfg.Password = PasswordConfig{
		BcryptCost: v.GetInt("BCRYPT_COST"),
	}

	cfg.OAuth = OAuthConfig{
		GoogleTokenInfoURL: v.GetString("OAUTH_GOOGLE_TOKENINFO_URL"),
		FacebookGraphURL:   v.GetString("OAUTH_FACEBOOK_GRAPH_URL"),
		RequestTimeout:     parseDuration(v.GetString("OAUTH_REQUEST_TIMEOUT"), 5*time.Second),
	}

	cfg.Bootstrap = BootstrapConfig{
		Workers:    v.GetInt("BOOTSTRAP_WORKERS"),
		MaxRetries: v.GetInt("BOOTSTRAP_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("BOOTSTRAP_RETRY_DELAY"), time.Second),
	}

	cfg.Session = SessionConfig{
		CacheTTL: parseDuration(v.GetString("SESSION_CACHE_TTL"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
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
	v.SetDefault("DB_NAME", "wavechat_auth")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("TOKEN_ISSUER", "wavechat-auth")
	v.SetDefault("RSA_KEY_BITS", 2048)

	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("OAUTH_GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo")
	v.SetDefault("OAUTH_FACEBOOK_GRAPH_URL", "https://graph.facebook.com")
	v.SetDefault("OAUTH_REQUEST_TIMEOUT", "5s")

	v.SetDefault("BOOTSTRAP_WORKERS", 2)
	v.SetDefault("BOOTSTRAP_MAX_RETRIES", 3)
	v.SetDefault("BOOTSTRAP_RETRY_DELAY", "1s")

	v.SetDefault("SESSION_CACHE_TTL", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
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
