// Package telegram owns the Telegram side of the system: webhook update
// normalization into inbound events, outbound message delivery, and webhook
// registration.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/workbase/internal/bot"
	"github.com/user/workbase/internal/types"
)

const maxTelegramMessage = 4096

// sendTimeout bounds each outbound API call. Delivery is fire-and-forget;
// a slow platform must not hold up webhook processing.
const sendTimeout = 5 * time.Second

// Adapter wraps the Telegram Bot API client. It implements types.Sender and
// bot.Registrar.
type Adapter struct {
	bot   *tgbotapi.BotAPI
	retry *RetryPolicy
}

// New creates an Adapter with a bounded-timeout HTTP client.
func New(token string) (*Adapter, error) {
	client := &http.Client{Timeout: sendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{bot: api, retry: DefaultRetryPolicy()}, nil
}

// Send delivers a reply to a chat. Failures are logged and swallowed: by
// the time a reply exists, its triggering mutation has already committed
// and must not be rolled back for a lost confirmation.
func (a *Adapter) Send(_ context.Context, chatID int64, reply types.Reply) {
	parts := splitMessage(reply.Text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if i == len(parts)-1 {
			msg.ReplyMarkup = keyboardMarkup(reply)
		}
		if err := a.sendOne(msg); err != nil {
			slog.Error("send message failed", "chat_id", chatID, "error", err)
		}
	}
}

// sendOne sends a single message, retrying transient failures and falling
// back to plain text when markdown parsing is rejected.
func (a *Adapter) sendOne(msg tgbotapi.MessageConfig) error {
	err := a.retry.Execute(func() error {
		_, err := a.bot.Send(msg)
		return err
	})
	if err == nil {
		return nil
	}
	// Badly escaped user content breaks markdown; deliver it plain.
	msg.ParseMode = ""
	_, err = a.bot.Send(msg)
	return err
}

// RegisterWebhook points the bot's webhook at url.
func (a *Adapter) RegisterWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// keyboardMarkup converts a Reply's keyboard into the platform's inline or
// persistent reply markup. Returns nil when there are no buttons.
func keyboardMarkup(reply types.Reply) any {
	if len(reply.Keyboard) == 0 {
		return nil
	}
	if reply.Inline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
	for _, row := range reply.Keyboard {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Text))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// Normalize converts a webhook update into the platform-independent inbound
// event. Edited messages are treated as new messages. Returns nil for
// updates the system does not react to (joins, stickers, malformed
// callbacks).
func Normalize(update tgbotapi.Update) *types.InboundEvent {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil {
			return nil
		}
		parsed, ok := bot.ParseCallback(cb.Data)
		if !ok {
			return nil
		}
		ev := &types.InboundEvent{
			ChatID:   cb.Message.Chat.ID,
			ChatKind: cb.Message.Chat.Type,
			Callback: parsed,
		}
		if cb.From != nil {
			ev.SenderID = cb.From.ID
			ev.Sender = cb.From.UserName
		}
		return ev
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return nil
	}
	ev := &types.InboundEvent{
		ChatID:    msg.Chat.ID,
		ChatKind:  msg.Chat.Type,
		ChatTitle: msg.Chat.Title,
		Text:      msg.Text,
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.Sender = msg.From.UserName
	}
	return ev
}

// splitMessage chunks text to the platform's message size limit.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
