package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application configuration.
type Config struct {
	AppPort        string
	SecretKey      string
	DatabaseDriver string
	DatabaseDSN    string
	RabbitMQURL    string
	LogLevel       string
	SessionTTL     time.Duration
	CookieSecure   bool
	CSRFEnabled    bool
	BcryptCost     int
}

// Load reads configuration from a .env file, an optional config file in the
// working directory and the environment, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		SecretKey:      v.GetString("SECRET_KEY"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		CookieSecure:   v.GetBool("COOKIE_SECURE"),
		CSRFEnabled:    v.GetBool("CSRF_ENABLED"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cfg, nil
}

// SetDefaults registers the default value of every optional key.
// SECRET_KEY and DATABASE_DSN have no default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CSRF_ENABLED", true)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
}
