// Package bot wires the conversation engine, session manager and notifier to
// the Telegram transport: commands, text fallback and the outbound path.
package bot

import (
	"context"
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	tgsender "github.com/couponmaster/couponbot/core/telegram/sender"
)

// ErrNotBound is returned when a send is attempted before the bot starts.
var ErrNotBound = errors.New("bot: outbox not bound")

// Outbox sends plain text to a chat. The bot instance only exists once the
// runtime starts, so it is bound late through an atomic pointer; the notifier
// and engine hold the Outbox from construction time.
type Outbox struct {
	bot        atomic.Pointer[tele.Bot]
	dispatcher *tgsender.Dispatcher
}

// NewOutbox creates an unbound outbox. dispatcher may be nil, sends then run
// inline on the caller's goroutine.
func NewOutbox(dispatcher *tgsender.Dispatcher) *Outbox {
	return &Outbox{dispatcher: dispatcher}
}

// Bind attaches the live bot. Called from the runtime's OnStart hook.
func (o *Outbox) Bind(b *tele.Bot) {
	o.bot.Store(b)
}

// Send delivers text to chatID, through the async dispatcher when one is
// configured. A saturated queue falls back to an inline send rather than
// dropping the message.
func (o *Outbox) Send(ctx context.Context, chatID int64, text string) error {
	b := o.bot.Load()
	if b == nil {
		return ErrNotBound
	}
	run := func() error {
		_, err := b.Send(tele.ChatID(chatID), text)
		return err
	}
	if o.dispatcher != nil {
		if err := o.dispatcher.Enqueue(ctx, "send.text", "sendMessage", run); err == nil {
			return nil
		}
	}
	return run()
}
