package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/auth"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Storage
	DataBackend string
	DBPath      string
	BoltPath    string

	// Auth
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// Bootstrap account
	AdminUser     string
	AdminPassword string

	// AMQP events
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DataBackend: getEnv("DATA_BACKEND", "sqlite"),
		DBPath:      getEnv("DB_PATH", "finance.db"),
		BoltPath:    getEnv("BOLT_PATH", "finance.bolt"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		TokenTTL:   getEnvDuration("TOKEN_TTL", time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"sqlite", "bolt"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty when using sqlite backend")
	}
	if c.DataBackend == "bolt" && c.BoltPath == "" {
		errors = append(errors, "BOLT_PATH cannot be empty when using bolt backend")
	}

	if len(c.JWTSecret) < auth.MinSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d bytes", auth.MinSecretLength))
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between %d and %d", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	if (c.AdminUser == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_USER and ADMIN_PASSWORD must be set together")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
