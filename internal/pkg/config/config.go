package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"

	minProductionSecretLength = 32
)

// Values that have shipped as defaults somewhere and must never sign real tokens.
var placeholderSecrets = map[string]struct{}{
	"secret":                      {},
	"changeme":                    {},
	"change-me":                   {},
	"taxflow_jwt_secret_key_2024": {},
}

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS, default=*"`

	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	TwoFactor TwoFactorConfig
	Payments  PaymentsConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=taxflow"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type RateLimitConfig struct {
	Backend     string        `env:"RATE_LIMIT_BACKEND,      default=memory"`
	Window      time.Duration `env:"RATE_LIMIT_WINDOW,       default=15m"`
	MaxAttempts int           `env:"RATE_LIMIT_MAX_ATTEMPTS, default=5"`
}

type TwoFactorConfig struct {
	Issuer     string        `env:"TWO_FACTOR_ISSUER,      default=TaxFlow"`
	PendingTTL time.Duration `env:"TWO_FACTOR_PENDING_TTL, default=5m"`
	Skew       int           `env:"TWO_FACTOR_SKEW,        default=1"`
}

type PaymentsConfig struct {
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q",
			RateLimitBackendMemory, RateLimitBackendRedis, c.RateLimit.Backend))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_ATTEMPTS must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.TwoFactor.PendingTTL <= 0 {
		errs = append(errs, errors.New("TWO_FACTOR_PENDING_TTL must be positive"))
	}
	if c.TwoFactor.Skew < 0 {
		errs = append(errs, errors.New("TWO_FACTOR_SKEW must not be negative"))
	}

	if c.IsProduction() {
		if _, bad := placeholderSecrets[strings.ToLower(c.JWTSecret)]; bad {
			errs = append(errs, errors.New("JWT_SECRET is a placeholder value"))
		} else if c.JWTSecret != "" && len(c.JWTSecret) < minProductionSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLength))
		}
		if c.Payments.WebhookSecret == "" {
			errs = append(errs, errors.New("PAYMENT_WEBHOOK_SECRET is required in production"))
		}
	}

	return errors.Join(errs...)
}
