// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// CronConfig provides the shared secret required on cron trigger endpoints.
type CronConfig interface {
	GetCronSecret() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailDefaultLocale() string
}

// NotificationConfig provides settings for building public links in emails.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// LifecycleConfig locates the lead lifecycle policy file.
type LifecycleConfig interface {
	GetLifecyclePolicyPath() string
}

// Config holds all application settings loaded from the environment.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	JWTAccessSecret     string
	CronSecret          string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	AppBaseURL          string
	EmailEnabled        bool
	EmailProvider       string
	BrevoAPIKey         string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	EmailDefaultLocale  string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	LifecyclePolicyPath string
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string         { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string     { return c.JWTAccessSecret }
func (c *Config) GetCronSecret() string          { return c.CronSecret }
func (c *Config) GetHTTPAddr() string            { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool          { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string       { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool        { return c.CORSAllowCreds }
func (c *Config) GetAppBaseURL() string          { return c.AppBaseURL }
func (c *Config) GetEmailEnabled() bool          { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string       { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string         { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string            { return c.SMTPHost }
func (c *Config) GetSMTPPort() int               { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string        { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string        { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string       { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string    { return c.EmailFromAddress }
func (c *Config) GetEmailDefaultLocale() string  { return c.EmailDefaultLocale }
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetLifecyclePolicyPath() string { return c.LifecyclePolicyPath }

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := boolEnv("CORS_ALLOW_ALL", false)
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		CronSecret:          getEnv("CRON_SECRET", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      boolEnv("CORS_ALLOW_CREDENTIALS", true),
		AppBaseURL:          strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/"),
		EmailEnabled:        boolEnv("EMAIL_ENABLED", true),
		EmailProvider:       strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
		BrevoAPIKey:         getEnv("BREVO_API_KEY", ""),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            intEnv("SMTP_PORT", 587),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "FleetCRM"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailDefaultLocale:  getEnv("EMAIL_DEFAULT_LOCALE", "en"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    boolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    intEnv("ASYNQ_CONCURRENCY", 10),
		LifecyclePolicyPath: getEnv("LIFECYCLE_POLICY_PATH", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}
	if cfg.EmailEnabled {
		switch cfg.EmailProvider {
		case "brevo":
			if cfg.BrevoAPIKey == "" {
				return nil, fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
			}
		default:
			return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
		}
		if cfg.EmailFromAddress == "" {
			return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
		}
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return strings.EqualFold(raw, "true")
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
