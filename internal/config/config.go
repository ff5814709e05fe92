package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the engine.
type Config struct {
	DatabaseURL         string
	OverdueScanInterval time.Duration
	RegenerateInterval  time.Duration
	JobTimeout          time.Duration
	TenantBatchSize     int
	TelegramToken       string
	TelegramChatID      int64
	LogLevel            string
}

// Load reads configuration from environment variables with sane defaults.
// The telegram settings are optional; without a token the overdue digest
// notifier stays disabled.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OverdueScanInterval: parseDuration(os.Getenv("OVERDUE_SCAN_INTERVAL")),
		RegenerateInterval:  parseDuration(os.Getenv("REGENERATE_INTERVAL")),
		JobTimeout:          parseDuration(os.Getenv("JOB_TIMEOUT")),
		TenantBatchSize:     parseInt(os.Getenv("TENANT_BATCH_SIZE")),
		TelegramToken:       strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		LogLevel:            strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "crm_engine.db"
	}
	if cfg.OverdueScanInterval == 0 {
		cfg.OverdueScanInterval = 5 * time.Minute
	}
	if cfg.RegenerateInterval == 0 {
		cfg.RegenerateInterval = time.Hour
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.TenantBatchSize == 0 {
		cfg.TenantBatchSize = 100
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = chatID
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return cfg, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func parseDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
