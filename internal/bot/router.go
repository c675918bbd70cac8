// Package bot routes inbound chat events: callback payloads resolve
// directly, group messages are archived as knowledge, private chats pass
// the allow-list, in-progress dialogs consume their next message, and the
// rest dispatches through commands, the natural-language trigger table, or
// the help fallback.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/types"
)

// Registrar registers this deployment's webhook URL with the chat platform.
type Registrar interface {
	RegisterWebhook(url string) error
}

// Config carries the injected routing policy. No ambient globals; tests
// substitute freely.
type Config struct {
	// AllowedUsers is the private-chat sender allow-list. Empty permits all.
	AllowedUsers []string
	// SessionTTL expires dialogs left mid-flow; the next message routes as
	// if idle. Zero disables expiry.
	SessionTTL time.Duration
	// PublicURL is the externally reachable base URL for webhook
	// registration.
	PublicURL string
}

// Router classifies inbound events and drives them to a response.
type Router struct {
	store     *store.Store
	send      types.Sender
	exec      *Executor
	cfg       Config
	registrar Registrar
	now       func() time.Time
}

// New creates a Router. registrar may be nil when webhook self-registration
// is unavailable.
func New(st *store.Store, sender types.Sender, exec *Executor, cfg Config, registrar Registrar) *Router {
	return &Router{
		store:     st,
		send:      sender,
		exec:      exec,
		cfg:       cfg,
		registrar: registrar,
		now:       time.Now,
	}
}

// Handle processes one inbound event to completion. Decision order is
// fixed; the first matching rule wins.
func (r *Router) Handle(ctx context.Context, ev *types.InboundEvent) error {
	// 1. Button presses bypass dialog state entirely.
	if ev.Callback != nil {
		return r.exec.HandleCallback(ctx, ev.ChatID, ev.Callback)
	}

	text := strings.TrimSpace(ev.Text)
	slash := strings.HasPrefix(text, "/")

	// 2. Group chats: absorb plain messages as knowledge, react only to
	// explicit commands.
	if ev.Group() {
		if text != "" && !slash {
			if err := r.store.ArchiveGroupMessage(ctx, &types.GroupMessage{
				ChatID:    strconv.FormatInt(ev.ChatID, 10),
				ChatTitle: ev.ChatTitle,
				Speaker:   ev.Sender,
				Message:   text,
			}); err != nil {
				return fmt.Errorf("archive group message: %w", err)
			}
			return nil
		}
		if !slash {
			return nil
		}
	}

	// 3. Private chats honor the allow-list before anything can mutate.
	if ev.ChatKind == "private" && !r.allowed(ev.SenderID) {
		r.reply(ctx, ev.ChatID, "⛔ You are not authorised to use this bot.")
		return nil
	}

	// 4. An in-progress dialog consumes any non-command message.
	sess, err := r.store.GetSession(ctx, strconv.FormatInt(ev.ChatID, 10))
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if r.expired(sess) {
		slog.Debug("dialog expired", "chat_id", sess.ChatID, "state", sess.State)
		sess.State = types.StateIdle
		sess.Fields = map[string]string{}
	}
	if sess.State != types.StateIdle && !slash {
		return r.continueDialog(ctx, ev, sess)
	}

	// 5. Commands, slash or verbose synonym form.
	if cmd, rest, ok := resolveCommand(text); ok {
		handled, err := r.dispatchCommand(ctx, ev, cmd, rest)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
		// Unrecognized slash commands fall through to the trigger table.
	}

	// 6. Natural-language triggers.
	if kind, payload, ok := MatchTrigger(text); ok {
		return r.exec.Execute(ctx, &types.PendingAction{
			Kind:   kind,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: map[string]string{"text": payload, fieldTitle: payload},
		})
	}

	// 7. Fallback.
	r.send.Send(ctx, ev.ChatID, types.Reply{
		Text:     "🤔 I didn't catch that.\n\nTry:\n• `add task Design new logo`\n• `note: meeting at 3pm`\n• `remind me standup at 9am`\n• /help for all commands",
		Keyboard: mainKeyboard(),
	})
	return nil
}

func (r *Router) allowed(senderID int64) bool {
	if len(r.cfg.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(r.cfg.AllowedUsers, strconv.FormatInt(senderID, 10))
}

// expired reports whether a non-idle session has outlived the dialog TTL.
func (r *Router) expired(sess *types.Session) bool {
	if r.cfg.SessionTTL <= 0 || sess.State == types.StateIdle || sess.LastSeen.IsZero() {
		return false
	}
	return r.now().Sub(sess.LastSeen) > r.cfg.SessionTTL
}

// putSession persists the chat's dialog state, replacing all prior fields.
func (r *Router) putSession(ctx context.Context, ev *types.InboundEvent, state types.DialogState, fields map[string]string) error {
	if err := r.store.PutSession(ctx, &types.Session{
		ChatID:   strconv.FormatInt(ev.ChatID, 10),
		Username: ev.Sender,
		State:    state,
		Fields:   fields,
	}); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// reply sends a plain text response with no keyboard.
func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	r.send.Send(ctx, chatID, types.Reply{Text: text})
}
