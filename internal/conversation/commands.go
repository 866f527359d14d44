package conversation

import (
	"context"
	"errors"

	"github.com/couponmaster/couponbot/internal/domain"
	"github.com/couponmaster/couponbot/internal/session"
)

// Command entry points for the slash commands. Each validates the session
// first, exactly like inbound text, and holds the chat lock so a command
// never races a message in the same chat.

// Start greets the chat: linked chats get the menu, anything else gets the
// token prompt. Any conversation underway is discarded.
func (e *Engine) Start(ctx context.Context, chatID int64) error {
	unlock := e.convs.Lock(chatID)
	defer unlock()

	sess, err := e.requireSession(ctx, chatID)
	if sess == nil {
		return err
	}
	e.convs.Clear(chatID)
	e.reply(ctx, chatID, menuText)
	return nil
}

// Coupons lists the chat owner's active coupons.
func (e *Engine) Coupons(ctx context.Context, chatID int64) error {
	unlock := e.convs.Lock(chatID)
	defer unlock()

	sess, err := e.requireSession(ctx, chatID)
	if sess == nil {
		return err
	}
	return e.showCoupons(ctx, sess.UserID, chatID)
}

// Disconnect unlinks the chat and drops any conversation.
func (e *Engine) Disconnect(ctx context.Context, chatID int64) error {
	unlock := e.convs.Lock(chatID)
	defer unlock()

	sess, err := e.requireSession(ctx, chatID)
	if sess == nil {
		return err
	}
	e.convs.Clear(chatID)
	if err := e.sessions.Disconnect(ctx, chatID); err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	e.reply(ctx, chatID, msgDisconnected)
	return nil
}

// requireSession validates and replies with the right prompt when the chat
// is not linked. An expired or missing session is an expected condition: the
// user was already told what to do, so no error surfaces.
func (e *Engine) requireSession(ctx context.Context, chatID int64) (*session.Session, error) {
	sess, err := e.sessions.Validate(ctx, chatID)
	if err == nil {
		return sess, nil
	}
	e.convs.Clear(chatID)
	var expired *domain.SessionExpiredError
	if errors.As(err, &expired) {
		e.reply(ctx, chatID, msgSessionExpired)
		return nil, nil
	}
	var auth *domain.AuthenticationError
	if errors.As(err, &auth) {
		e.reply(ctx, chatID, msgAskToken)
		return nil, nil
	}
	e.reply(ctx, chatID, msgGenericFailure)
	return nil, err
}
