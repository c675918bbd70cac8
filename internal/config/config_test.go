package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:         "/tmp/test-data",
		LogLevel:        "debug",
		DBPath:          "/tmp/test-data/workbase.db",
		Listen:          ":9999",
		PublicURL:       "https://crm.example.com",
		BotAPIKey:       "shared-secret-123",
		MaxConcurrent:   8,
		SessionTTLHours: 6,
	}
	original.Telegram.Token = "bot-token-456"
	original.Telegram.AllowedUsers = "111, 222,333"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: %v != %v", loaded.LogLevel, original.LogLevel)
	}
	if loaded.Listen != original.Listen {
		t.Errorf("Listen mismatch: %v != %v", loaded.Listen, original.Listen)
	}
	if loaded.BotAPIKey != original.BotAPIKey {
		t.Errorf("BotAPIKey mismatch: %v != %v", loaded.BotAPIKey, original.BotAPIKey)
	}
	if loaded.Telegram.Token != original.Telegram.Token {
		t.Errorf("Telegram.Token mismatch: %v != %v", loaded.Telegram.Token, original.Telegram.Token)
	}
	if loaded.SessionTTLHours != original.SessionTTLHours {
		t.Errorf("SessionTTLHours mismatch: %v != %v", loaded.SessionTTLHours, original.SessionTTLHours)
	}
}

func TestLoad_DefaultsOnMissingFile(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level=info, got %v", cfg.LogLevel)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("expected default listen=:8090, got %v", cfg.Listen)
	}
	if cfg.DBPath == "" {
		t.Error("expected DBPath to default under DataDir")
	}

	// Defaults should have been written out
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist after first Load: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info", BotAPIKey: "from-file"}
	cfg.Telegram.Token = "file-token"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("BOT_API_KEY", "env-secret")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "42,43")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Telegram.Token != "env-token" {
		t.Errorf("expected env token to win, got %v", loaded.Telegram.Token)
	}
	if loaded.BotAPIKey != "env-secret" {
		t.Errorf("expected env bot key to win, got %v", loaded.BotAPIKey)
	}
	if loaded.Telegram.AllowedUsers != "42,43" {
		t.Errorf("expected env allow-list to win, got %v", loaded.Telegram.AllowedUsers)
	}
}

func TestAllowedUserIDs(t *testing.T) {
	var cfg Config
	if ids := cfg.AllowedUserIDs(); ids != nil {
		t.Errorf("expected nil for empty allow-list, got %v", ids)
	}

	cfg.Telegram.AllowedUsers = " 111, 222 ,,333 "
	ids := cfg.AllowedUserIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d: %v", len(ids), ids)
	}
	if ids[0] != "111" || ids[1] != "222" || ids[2] != "333" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify no temp file left behind
	tmpPath := path + ".tmp"
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	// Verify the file is valid JSON
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.json")

	cfg := &Config{LogLevel: "warn"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}
