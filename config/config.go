// Package config loads engine settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process-wide configuration.
type Config struct {
	Environment string `json:"environment"`

	// Probe identity.
	HeloDomain string `json:"helo_domain"`
	MailFrom   string `json:"mail_from"`

	// Submission server for campaign dispatch.
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`

	// SendTimeout bounds each campaign delivery attempt.
	SendTimeout time.Duration `json:"send_timeout"`

	// Engine tuning.
	DNSTimeout     time.Duration `json:"dns_timeout"`
	MXCacheTTL     time.Duration `json:"mx_cache_ttl"`
	ProbeTimeout   time.Duration `json:"probe_timeout"`
	DomainSpacing  time.Duration `json:"domain_spacing"`
	MaxConcurrency int           `json:"max_concurrency"`
	ProbeRetries   int           `json:"probe_retries"`
	WHOISEnabled   bool          `json:"whois_enabled"`

	// Bulk request caps, enforced before any work begins.
	BulkLimitJSON          int `json:"bulk_limit_json"`
	BulkLimitComprehensive int `json:"bulk_limit_comprehensive"`
	BulkLimitFile          int `json:"bulk_limit_file"`
}

// Load reads the configuration. A missing .env file is fine; real env vars
// always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		HeloDomain: getEnv("HELO_DOMAIN", "localhost"),
		MailFrom:   getEnv("PROBE_MAIL_FROM", "probe@example.com"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", ""),
		FromName:     getEnv("FROM_NAME", ""),
		SendTimeout:  getEnvAsDuration("SMTP_SEND_TIMEOUT", 30*time.Second),

		DNSTimeout:     getEnvAsDuration("DNS_TIMEOUT", 5*time.Second),
		MXCacheTTL:     getEnvAsDuration("MX_CACHE_TTL", 10*time.Minute),
		ProbeTimeout:   getEnvAsDuration("PROBE_TIMEOUT", 5*time.Second),
		DomainSpacing:  getEnvAsDuration("DOMAIN_SPACING", 0),
		MaxConcurrency: getEnvAsInt("MAX_CONCURRENCY", 10),
		ProbeRetries:   getEnvAsInt("PROBE_RETRIES", 1),
		WHOISEnabled:   getEnvAsBool("WHOIS_ENABLED", false),

		BulkLimitJSON:          getEnvAsInt("BULK_LIMIT_JSON", 1000),
		BulkLimitComprehensive: getEnvAsInt("BULK_LIMIT_COMPREHENSIVE", 100),
		BulkLimitFile:          getEnvAsInt("BULK_LIMIT_FILE", 10000),
	}

	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENCY must be positive")
	}
	if cfg.Environment == "production" && cfg.HeloDomain == "localhost" {
		return nil, fmt.Errorf("HELO_DOMAIN is required in production; remote servers reject localhost")
	}

	return cfg, nil
}

// NewLogger builds the process logger the way the environment wants it.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvAsBool(key string, fallback bool) bool {
	switch getEnv(key, "") {
	case "1", "true", "TRUE", "True", "yes":
		return true
	case "0", "false", "FALSE", "False", "no":
		return false
	}
	return fallback
}
