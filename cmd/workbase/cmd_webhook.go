package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/workbase/internal/telegram"
)

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookSetCmd)
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Point the bot's webhook at this deployment",
	Long: `Registers the webhook with Telegram. With no argument the URL is built
from public_url in the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		if cfg.Telegram.Token == "" {
			return fmt.Errorf("no telegram token configured")
		}

		url := ""
		if len(args) == 1 {
			url = args[0]
		} else if cfg.PublicURL != "" {
			url = cfg.PublicURL + "/telegram/webhook"
		}
		if url == "" {
			return fmt.Errorf("no URL given and public_url is not configured")
		}

		adapter, err := telegram.New(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		if err := adapter.RegisterWebhook(url); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Webhook set to %s\n", url)
		return nil
	},
}
