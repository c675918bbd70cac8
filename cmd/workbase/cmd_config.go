package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/workbase/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Fprintf(os.Stdout, "data_dir = %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stdout, "db_path = %s\n", cfg.DBPath)
		fmt.Fprintf(os.Stdout, "log_level = %s\n", cfg.LogLevel)
		fmt.Fprintf(os.Stdout, "listen = %s\n", cfg.Listen)
		fmt.Fprintf(os.Stdout, "public_url = %s\n", cfg.PublicURL)
		fmt.Fprintf(os.Stdout, "bot_api_key = %s\n", mask(cfg.BotAPIKey))
		fmt.Fprintf(os.Stdout, "max_concurrent = %d\n", cfg.MaxConcurrent)
		fmt.Fprintf(os.Stdout, "session_ttl_hours = %d\n", cfg.SessionTTLHours)
		fmt.Fprintf(os.Stdout, "telegram.token = %s\n", mask(cfg.Telegram.Token))
		fmt.Fprintf(os.Stdout, "telegram.allowed_users = %s\n", cfg.Telegram.AllowedUsers)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		key, value := args[0], args[1]
		switch key {
		case "data_dir":
			cfg.DataDir = value
		case "db_path":
			cfg.DBPath = value
		case "log_level":
			cfg.LogLevel = value
		case "listen":
			cfg.Listen = value
		case "public_url":
			cfg.PublicURL = value
		case "bot_api_key":
			cfg.BotAPIKey = value
		case "max_concurrent":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("max_concurrent must be an integer")
			}
			cfg.MaxConcurrent = n
		case "session_ttl_hours":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("session_ttl_hours must be an integer")
			}
			cfg.SessionTTLHours = n
		case "telegram.token":
			cfg.Telegram.Token = value
		case "telegram.allowed_users":
			cfg.Telegram.AllowedUsers = value
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
		display := value
		if key == "telegram.token" || key == "bot_api_key" {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, display)
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
