// Package scheduler delivers due reminders. A cron job sweeps the store
// once a minute, claims everything due, and pushes each reminder to its
// chat.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/types"
)

// Scheduler runs the minutely reminder sweep.
type Scheduler struct {
	store *store.Store
	send  types.Sender
	cron  *cron.Cron
	now   func() time.Time
}

// New creates a Scheduler over the given store and sender.
func New(st *store.Store, sender types.Sender) *Scheduler {
	return &Scheduler{
		store: st,
		send:  sender,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("* * * * *", func() {
		if err := s.Sweep(ctx); err != nil {
			slog.Error("reminder sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register reminder sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep claims every due reminder and delivers it. Claiming marks the
// reminder notified inside the store transaction, so a reminder fires at
// most once even if delivery is lost.
func (s *Scheduler) Sweep(ctx context.Context) error {
	due, err := s.store.ClaimDueReminders(ctx, s.now())
	if err != nil {
		return fmt.Errorf("claim due reminders: %w", err)
	}
	for _, rem := range due {
		s.send.Send(ctx, rem.ChatID, types.Reply{
			Text: fmt.Sprintf("⏰ *Reminder*\n%s", rem.Title),
		})
		slog.Info("reminder delivered", "reminder_id", rem.ID, "chat_id", rem.ChatID)
	}
	return nil
}
