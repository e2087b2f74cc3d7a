package config

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	// Server configuration
	Port string

	// Telegram alerting channel
	TelegramBotToken string
	TelegramChatID   string

	// External video token provider
	TokenProviderURL string
	TokenProviderKey string

	// Session lifecycle
	SessionRetention time.Duration
	SweepInterval    time.Duration

	// Notification batching
	NotifyMinInterval time.Duration
}

func LoadConfig() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		TokenProviderURL:  getEnv("TOKEN_PROVIDER_URL", ""),
		TokenProviderKey:  getEnv("TOKEN_PROVIDER_KEY", ""),
		SessionRetention:  getDuration("SESSION_RETENTION", 30*time.Minute),
		SweepInterval:     getDuration("SWEEP_INTERVAL", time.Minute),
		NotifyMinInterval: getDuration("NOTIFY_MIN_INTERVAL", 10*time.Second),
	}

	if cfg.TelegramBotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN not set, alert delivery disabled")
	}
	if cfg.TokenProviderURL == "" {
		slog.Warn("TOKEN_PROVIDER_URL not set, token issuance will fail")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}
