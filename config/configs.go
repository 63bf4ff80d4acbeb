// Package config provides application configuration loaded from environment
// variables. All configuration is externalized so deployments differ only in
// their environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration. Load it once at startup.
type AppConfig struct {
	// DatabaseDSN is the Postgres connection string.
	DatabaseDSN string

	// ServerPort is the HTTP listen port.
	ServerPort string

	// KafkaBroker is the broker for operator alerts. Empty disables the
	// Kafka channel; alerts then go to the log only.
	KafkaBroker string

	// KafkaAlertTopic is the topic reconciliation events are published to.
	KafkaAlertTopic string

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from the environment, optionally seeded from a
// .env file for local development.
func Load() *AppConfig {
	_ = godotenv.Load() // .env is optional

	return &AppConfig{
		DatabaseDSN:     getDatabaseDSN(),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		KafkaBroker:     getEnv("KAFKA_BROKER", ""),
		KafkaAlertTopic: getEnv("KAFKA_ALERT_TOPIC", "tradedesk_reconciliation"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// NewLogger builds the application logger from the configured level.
func (c *AppConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getDatabaseDSN() string {
	dbUser := getEnv("POSTGRES_USER", "tradedesk")
	dbPassword := getEnv("POSTGRES_PASSWORD", "tradedesk")
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbName := getEnv("POSTGRES_DB", "tradedesk")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbHost, dbPort, dbUser, dbPassword, dbName, sslMode,
	)
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
