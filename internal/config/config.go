package config

import (
	"fmt"
	"os"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBConn        string
	LogLevel      string
	Store         string
	SeedDemo      bool
	AuditSchedule string
	AlertEmail    string
	SenderEmail   string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=plata password=plata dbname=plata sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		Store:         getEnv("STORE", StorePostgres),
		SeedDemo:      getEnv("SEED_DEMO", "false") == "true",
		AuditSchedule: getEnv("AUDIT_SCHEDULE", "@every 5m"),
		AlertEmail:    getEnv("ALERT_EMAIL", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", "ledger@localhost"),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "25"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
	}

	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}
	if cfg.Store == StorePostgres && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
