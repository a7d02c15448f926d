package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Telegram
	TelegramToken        string
	AdminUserID          int64
	MaxConcurrentUpdates int

	// Storage
	StoreBackend string
	SQLiteDBPath string
	SupabaseURL  string
	SupabaseKey  string

	// Extraction
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// Cycle calendar
	CycleTimezone string

	// AMQP (optional; exports run inline when unset)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

const DefaultGeminiModel = "gemini-1.5-flash"

// LoadConfig reads .env (if present) and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Load(), nil
}

// Load builds a Config from the environment with defaults.
func Load() *Config {
	return &Config{
		TelegramToken:        getEnv("TELEGRAM_TOKEN", ""),
		AdminUserID:          getEnvInt64("ADMIN_USER_ID", 0),
		MaxConcurrentUpdates: getEnvInt("MAX_CONCURRENT_UPDATES", 16),

		StoreBackend: getEnv("STORE_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/jibjib.db"),
		SupabaseURL:  getEnv("SUPABASE_URL", ""),
		SupabaseKey:  getEnv("SUPABASE_KEY", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", DefaultGeminiModel),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),

		CycleTimezone: getEnv("CYCLE_TIMEZONE", "Asia/Tehran"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "jibjib"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_jobs"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the bot configuration and reports every problem at once.
func (c *Config) Validate() error {
	return c.validate(true, false)
}

// ValidateExportWorker checks what the export worker needs: the store, the
// Telegram token for delivery and a broker. Extraction settings are ignored.
func (c *Config) ValidateExportWorker() error {
	return c.validate(false, true)
}

func (c *Config) validate(extraction, broker bool) error {
	var problems []string

	if c.TelegramToken == "" {
		problems = append(problems, "TELEGRAM_TOKEN is required")
	}

	switch c.StoreBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_KEY are required when using supabase backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid store backend '%s': must be one of [sqlite supabase]", c.StoreBackend))
	}

	if extraction {
		if c.GeminiAPIKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required")
		}
		if c.GeminiModel == "" {
			problems = append(problems, "GEMINI_MODEL cannot be empty")
		}
		if c.GeminiBaseURL != "" {
			if _, err := url.ParseRequestURI(c.GeminiBaseURL); err != nil {
				problems = append(problems, fmt.Sprintf("invalid Gemini base URL '%s': %v", c.GeminiBaseURL, err))
			}
		}
	}

	if _, err := time.LoadLocation(c.CycleTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid cycle timezone '%s': %v", c.CycleTimezone, err))
	}

	if c.MaxConcurrentUpdates < 1 {
		problems = append(problems, fmt.Sprintf("invalid max concurrent updates %d: must be at least 1", c.MaxConcurrentUpdates))
	}

	if broker && c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required for the export worker")
	}
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Location resolves CycleTimezone. Call after Validate.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.CycleTimezone)
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
