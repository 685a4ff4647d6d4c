package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dtroode/identity-server/internal/token"
)

// DevJWTSecret is the signing secret used when JWT_SECRET is unset. It is public.
const DevJWTSecret = "dev-only-secret-change-me-0123456789"

// Config contains server configuration parameters.
type Config struct {
	LogLevel int      `env:"LOG_LEVEL" envDefault:"0"`
	HTTP     HTTP     `envPrefix:"HTTP_"`
	GRPC     GRPC     `envPrefix:"GRPC_"`
	Database Database `envPrefix:"DATABASE_"`
	JWT      JWT      `envPrefix:"JWT_"`
	Cleanup  Cleanup  `envPrefix:"CLEANUP_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Throttle Throttle `envPrefix:"THROTTLE_"`
	Seed     Seed     `envPrefix:"SEED_"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

// GRPC contains gRPC server parameters.
type GRPC struct {
	Port               string `env:"PORT" envDefault:"50051"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
}

// Database contains database connection parameters.
// An empty DSN selects the in-memory stores.
type Database struct {
	DSN     string        `env:"DSN"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret     string        `env:"SECRET" envDefault:"dev-only-secret-change-me-0123456789"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// Cleanup contains the refresh token retention sweep parameters.
type Cleanup struct {
	Retention    time.Duration `env:"RETENTION" envDefault:"720h"`
	Interval     time.Duration `env:"INTERVAL" envDefault:"24h"`
	InitialDelay time.Duration `env:"INITIAL_DELAY" envDefault:"1m"`
}

// Redis contains connection parameters for the login throttle.
// An empty address disables throttling.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Throttle contains login throttle limits.
type Throttle struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Window      time.Duration `env:"WINDOW" envDefault:"15m"`
}

// Seed describes an optional administrator created on startup.
type Seed struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// NewConfig loads configuration from environment variables and validates it.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// UsesDevSecret reports whether tokens would be signed with DevJWTSecret.
func (c *Config) UsesDevSecret() bool {
	return c.JWT.Secret == DevJWTSecret
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.Secret) < token.MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", token.MinSecretLength))
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be positive"))
	}
	if c.Database.Timeout <= 0 {
		errs = append(errs, errors.New("DATABASE_TIMEOUT must be positive"))
	}
	if c.Cleanup.Retention < 0 {
		errs = append(errs, errors.New("CLEANUP_RETENTION must not be negative"))
	}
	if c.Cleanup.Interval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive"))
	}
	if c.Redis.Addr != "" && (c.Throttle.MaxAttempts <= 0 || c.Throttle.Window <= 0) {
		errs = append(errs, errors.New("THROTTLE_MAX_ATTEMPTS and THROTTLE_WINDOW must be positive"))
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		errs = append(errs, errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}
