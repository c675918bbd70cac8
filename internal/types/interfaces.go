package types

import "context"

// Button is one labeled button. Data is the opaque callback payload for
// inline keyboards and empty for reply keyboards, whose buttons re-submit
// their label as plain text.
type Button struct {
	Text string
	Data string
}

// Reply is one outbound message: markdown-flavored text plus an optional
// keyboard. Inline selects between an inline keyboard (callback data) and a
// persistent reply keyboard.
type Reply struct {
	Text     string
	Keyboard [][]Button
	Inline   bool
}

// Sender delivers a reply to a chat. Delivery is fire-and-forget: failures
// are logged by the implementation and never propagated, since the mutation
// that triggered the reply has already committed.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply)
}
