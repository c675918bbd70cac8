package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	DataDir         string `json:"data_dir"`
	LogLevel        string `json:"log_level"`
	DBPath          string `json:"db_path"`
	Listen          string `json:"listen"`
	PublicURL       string `json:"public_url"`
	BotAPIKey       string `json:"bot_api_key"`
	MaxConcurrent   int    `json:"max_concurrent"`
	SessionTTLHours int    `json:"session_ttl_hours"`
	Telegram        struct {
		Token        string `json:"token"`
		AllowedUsers string `json:"allowed_users"` // comma-separated sender IDs; empty permits all
	} `json:"telegram"`
}

// AllowedUserIDs splits the comma-separated allow-list into trimmed IDs.
// An empty list means the bot is open to all private chats.
func (c *Config) AllowedUserIDs() []string {
	if strings.TrimSpace(c.Telegram.AllowedUsers) == "" {
		return nil
	}
	parts := strings.Split(c.Telegram.AllowedUsers, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:         filepath.Join(os.Getenv("HOME"), ".workbase"),
		LogLevel:        "info",
		Listen:          ":8090",
		MaxConcurrent:   4,
		SessionTTLHours: 12,
	}

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "workbase.db")
	}

	// Override from env (highest precedence)
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if users := os.Getenv("TELEGRAM_ALLOWED_USERS"); users != "" {
		cfg.Telegram.AllowedUsers = users
	}
	if key := os.Getenv("BOT_API_KEY"); key != "" {
		cfg.BotAPIKey = key
	}
	if url := os.Getenv("WORKBASE_URL"); url != "" {
		cfg.PublicURL = url
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}

	return cfg, nil
}

// Save writes the config atomically (temp file + rename), creating the
// parent directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
