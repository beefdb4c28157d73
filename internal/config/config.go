package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Session      SessionConfig
	TicketingAPI TicketingAPIConfig
	Payment      PaymentConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Env            string
	AllowedOrigins []string
}

type SessionConfig struct {
	Secret string
}

type TicketingAPIConfig struct {
	BaseURL     string
	APIKey      string
	Environment string
	Timeout     time.Duration
}

type PaymentConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "localhost"),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
		},
		TicketingAPI: TicketingAPIConfig{
			BaseURL:     getEnv("TICKETING_API_URL", ""),
			APIKey:      getEnv("TICKETING_API_KEY", ""),
			Environment: getEnv("TICKETING_API_ENVIRONMENT", "sandbox"),
			Timeout:     getEnvAsDuration("TICKETING_API_TIMEOUT", 30*time.Second),
		},
		Payment: PaymentConfig{
			PollInterval:    getEnvAsDuration("PAYMENT_POLL_INTERVAL", 10*time.Second),
			MaxPollAttempts: getEnvAsInt("PAYMENT_MAX_POLL_ATTEMPTS", 30),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
