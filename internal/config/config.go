package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port      string
	SignInURL string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets activity export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Receipt scanning
	GeminiAPIKey   string
	ReceiptBaseURL string
	ReceiptModel   string

	// Perimeter
	RateLimitPerMinute    int
	TransactionRateLimit  int
	TransactionRateWindow time.Duration
	TrustedProxies        []string

	// Recurring worker
	RecurringInterval time.Duration

	LogLevel string
}

// Load reads a local .env when present and builds the configuration from the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		SignInURL: getEnv("SIGN_IN_URL", "/sign-in"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/welth.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "welth"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Activity"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		ReceiptBaseURL: getEnv("RECEIPT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		ReceiptModel:   getEnv("RECEIPT_MODEL", "gemini-1.5-flash"),

		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TransactionRateLimit:  getEnvInt("TRANSACTION_RATE_LIMIT", 10),
		TransactionRateWindow: getEnvDuration("TRANSACTION_RATE_WINDOW", time.Hour),
		TrustedProxies:        getEnvList("TRUSTED_PROXIES"),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// SheetsEnabled reports whether activity export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SignInURL == "" {
		errors = append(errors, "sign-in URL cannot be empty")
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.TransactionRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid transaction rate limit %d: must be at least 1", c.TransactionRateLimit))
	}
	if c.TransactionRateWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid transaction rate window %v: must be at least 1 second", c.TransactionRateWindow))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	// Return combined errors
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

// getEnvList splits a comma-separated value, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
