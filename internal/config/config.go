// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/ombudhq/ombud/internal/complaint"
)

type Config struct {
	Port     int
	LogLevel string

	GeminiAPIKey string
	GeminiModel  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	GoogleClientID string

	DatabaseURL string
	NatsURL     string
	NatsToken   string

	// DepartmentEmails maps each routing department to its mailbox. A
	// department with an empty address is known but not dispatchable.
	DepartmentEmails map[string]string
}

func Load() *Config {
	return &Config{
		Port:     envInt("OMBUD_PORT", 5000),
		LogLevel: envStr("LOG_LEVEL", "info"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envStr("GEMINI_MODEL", "gemini-2.5-flash"),

		SMTPHost:     envStr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),

		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		NatsURL:     os.Getenv("NATS_URL"),
		NatsToken:   os.Getenv("NATS_TOKEN"),

		DepartmentEmails: map[string]string{
			"Maintenance": os.Getenv("DEPT_MAINTENANCE_EMAIL"),
			"IT":          os.Getenv("DEPT_IT_EMAIL"),
			"HR":          os.Getenv("DEPT_HR_EMAIL"),
			"Admin":       os.Getenv("DEPT_ADMIN_EMAIL"),
			"Security":    os.Getenv("DEPT_SECURITY_EMAIL"),
			"Facilities":  os.Getenv("DEPT_FACILITIES_EMAIL"),
		},
	}
}

// UnconfiguredDepartments lists routing departments that have no mailbox.
func (c *Config) UnconfiguredDepartments() []string {
	var missing []string
	for _, dept := range complaint.Departments {
		if c.DepartmentEmails[dept] == "" {
			missing = append(missing, dept)
		}
	}
	return missing
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
