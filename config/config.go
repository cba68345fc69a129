package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstox app credentials
	UpstoxAPIKey      string
	UpstoxAPISecret   string
	UpstoxRedirectURL string
	UpstoxAccessToken string // static token; the Redis store takes precedence
	UpstoxTOTPSecret  string
	UpstoxBaseURL     string

	// Reference data
	InstrumentsPath string // provider JSON dump, plain or .gz
	SQLitePath      string // empty disables the SQLite instrument store

	// Infrastructure
	RedisAddr     string // empty disables the Redis token store
	RedisPassword string
	MetricsAddr   string // empty disables the metrics server

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	LogLevel    string
	HTTPTimeout time.Duration
	ProfilePath string
}

// LoadDotEnv loads path into the environment if it exists. Variables
// already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		UpstoxAPIKey:      getEnv("UPSTOX_API_KEY", ""),
		UpstoxAPISecret:   getEnv("UPSTOX_API_SECRET", ""),
		UpstoxRedirectURL: getEnv("UPSTOX_REDIRECT_URL", "http://127.0.0.1:5000/callback"),
		UpstoxAccessToken: getEnv("UPSTOX_ACCESS_TOKEN", ""),
		UpstoxTOTPSecret:  getEnv("UPSTOX_TOTP_SECRET", ""),
		UpstoxBaseURL:     getEnv("UPSTOX_BASE_URL", "https://api.upstox.com"),

		InstrumentsPath: getEnv("INSTRUMENTS_PATH", "data/complete.json.gz"),
		SQLitePath:      getEnv("SQLITE_PATH", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPTimeout: getDuration("HTTP_TIMEOUT", 10*time.Second),
		ProfilePath: getEnv("SCAN_PROFILE", ""),
	}
}

// RequireApp checks the credentials needed for the OAuth login flow.
func (c *Config) RequireApp() error {
	return mustEnv(map[string]string{
		"UPSTOX_API_KEY":      c.UpstoxAPIKey,
		"UPSTOX_API_SECRET":   c.UpstoxAPISecret,
		"UPSTOX_REDIRECT_URL": c.UpstoxRedirectURL,
	})
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// mustEnv returns an error naming every empty required variable.
func mustEnv(vals map[string]string) error {
	var missing []string
	for k, v := range vals {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("required env vars not set: %s", strings.Join(missing, ", "))
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration env var, using default",
			slog.String("key", key), slog.String("value", v), slog.Duration("default", fallback))
		return fallback
	}
	return d
}
