package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Env  string `env:"ENV" env-default:"local"`
	Port string `env:"PORT" env-default:"8080"`

	HTTP     HTTPServer
	Database Database
	Auth     Auth
	Mail     Mail
	TextGen  TextGen

	StaleBookingSchedule string `env:"STALE_BOOKING_SCHEDULE" env-default:"@hourly"`
	// EnforceGroupSize rejects bookings whose participants exceed the tour's max group size.
	EnforceGroupSize bool `env:"ENFORCE_GROUP_SIZE" env-default:"false"`
}

type HTTPServer struct {
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

type Database struct {
	URL             string        `env:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" env-default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" env-default:"2"`
	MaxConnIdle     time.Duration `env:"DB_MAX_CONN_IDLE" env-default:"5m"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`
	ConnTimeout     time.Duration `env:"DB_CONN_TIMEOUT" env-default:"10s"`
	StatementCache  int           `env:"DB_STATEMENT_CACHE_CAPACITY" env-default:"256"`
	// OpTimeout bounds every store operation; exceeding it surfaces as ErrUnavailable.
	OpTimeout time.Duration `env:"STORE_OP_TIMEOUT" env-default:"3s"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Mail struct {
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	From           string `env:"MAIL_FROM" env-default:"no-reply@tourbook.local"`
	FromName       string `env:"MAIL_FROM_NAME" env-default:"Tourbook"`
}

type TextGen struct {
	URL    string `env:"TEXTGEN_URL"`
	APIKey string `env:"TEXTGEN_API_KEY"`
	// Timeout bounds one explanation, retries included.
	Timeout time.Duration `env:"TEXTGEN_TIMEOUT" env-default:"5s"`
}

// Load reads configuration from environment variables (or from the file named
// by CONFIG_PATH), applying defaults and validation.
func Load() (Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("ENV must be one of %s, %s, %s", EnvLocal, EnvDev, EnvProd)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.Database.MinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.Database.StatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.Database.OpTimeout <= 0 {
		return fmt.Errorf("STORE_OP_TIMEOUT must be positive")
	}
	if cfg.TextGen.Timeout <= 0 {
		return fmt.Errorf("TEXTGEN_TIMEOUT must be positive")
	}
	return nil
}
