package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/workbase/internal/bot"
	"github.com/user/workbase/internal/dispatch"
	"github.com/user/workbase/internal/scheduler"
	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/telegram"
	"github.com/user/workbase/internal/types"
	"github.com/user/workbase/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workbase daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "workbase.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// logSender stands in for the chat platform when no bot token is configured,
// so the HTTP API still works on its own.
type logSender struct{}

func (logSender) Send(_ context.Context, chatID int64, reply types.Reply) {
	slog.Info("reply dropped (no telegram token)", "chat_id", chatID, "text", reply.Text)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var sender types.Sender = logSender{}
	var registrar bot.Registrar
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		sender = adapter
		registrar = adapter
	} else {
		slog.Warn("telegram delivery disabled (no token)")
	}

	exec := bot.NewExecutor(st, sender)
	router := bot.New(st, sender, exec, bot.Config{
		AllowedUsers: cfg.AllowedUserIDs(),
		SessionTTL:   time.Duration(cfg.SessionTTLHours) * time.Hour,
		PublicURL:    cfg.PublicURL,
	}, registrar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := dispatch.NewQueue(int64(cfg.MaxConcurrent), router.Handle)
	queue.Start(ctx)
	defer queue.Stop()

	sched := scheduler.New(st, sender)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	if registrar != nil && cfg.PublicURL != "" {
		url := cfg.PublicURL + "/telegram/webhook"
		if err := registrar.RegisterWebhook(url); err != nil {
			slog.Error("webhook registration failed", "url", url, "error", err)
		} else {
			slog.Info("webhook registered", "url", url)
		}
	}

	webhookSrv := webhook.NewServer(st, queue.Enqueue, cfg.BotAPIKey)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: webhookSrv,
	}
	go func() {
		slog.Info("http server started", "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	slog.Info("workbase started",
		"data_dir", cfg.DataDir,
		"db_path", cfg.DBPath,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"session_ttl_hours", cfg.SessionTTLHours,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
