package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/BartugKaan/developer-match/pkg/config"
)

// Development-only placeholders; Load rejects them outside development.
const (
	devAccessSecretPlaceholder  = "change-this-access-secret"
	devRefreshSecretPlaceholder = "change-this-refresh-secret"
)

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"devmatch"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"devmatch_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"devmatch_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (OAuth state store)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT. The two halves of the token pair are signed with distinct secrets
	// so one can never be presented in place of the other.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET" envDefault:"change-this-access-secret"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"change-this-refresh-secret"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// GitHub OAuth
	GithubClientID     string `env:"GITHUB_CLIENT_ID" envDefault:""`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET" envDefault:""`
	GithubCallbackURL  string `env:"GITHUB_CALLBACK_URL" envDefault:"http://localhost:8080/api/v1/auth/github/callback"`

	// FrontendURL receives the browser after a completed OAuth login. Empty
	// means the callback answers with JSON.
	FrontendURL string `env:"FRONTEND_URL" envDefault:""`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	OTELEnabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate   float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	OTELInsecureMode bool    `env:"OTEL_INSECURE" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// Non-development environments require explicitly set, strong secrets.
	if cfg.Environment != "development" {
		secrets := []struct {
			name        string
			value       string
			placeholder string
		}{
			{"JWT_ACCESS_SECRET", cfg.JWTAccessSecret, devAccessSecretPlaceholder},
			{"JWT_REFRESH_SECRET", cfg.JWTRefreshSecret, devRefreshSecretPlaceholder},
		}
		for _, s := range secrets {
			if s.value == s.placeholder {
				return nil, fmt.Errorf("%s must be explicitly set via environment variable in %q mode", s.name, cfg.Environment)
			}
			if len(s.value) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", s.name, len(s.value))
			}
		}

		if cfg.GithubClientID == "" || cfg.GithubClientSecret == "" {
			return nil, fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}
