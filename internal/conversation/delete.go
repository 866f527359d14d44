package conversation

import (
	"context"
	"fmt"

	"github.com/couponmaster/couponbot/internal/session"
)

func (e *Engine) startDelete(ctx context.Context, sess *session.Session, chatID int64) error {
	cs, err := e.coupons.ListActive(ctx, sess.UserID)
	if err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	if len(cs) == 0 {
		e.reply(ctx, chatID, msgNoCoupons+"\n\n"+menuText)
		return nil
	}
	e.convs.Put(&Conversation{
		ChatID:     chatID,
		UserID:     sess.UserID,
		State:      StateChooseCouponForDelete,
		Candidates: cs,
	})
	e.reply(ctx, chatID, renderNumberedCoupons("Which coupon should I delete?", cs))
	return nil
}

func (e *Engine) handleChooseCouponForDelete(ctx context.Context, conv *Conversation, text string) error {
	c := pickCandidate(conv, text)
	if c == nil {
		e.reply(ctx, conv.ChatID, msgPickNumber)
		return nil
	}
	conv.TargetID = c.ID
	conv.State = StateConfirmDelete
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, fmt.Sprintf(
		"Delete the %s coupon (code %s) and its usage history? This cannot be undone. (yes/no)",
		c.Company, c.Code,
	))
	return nil
}

// handleConfirmDelete removes the coupon and its usage rows only after an
// explicit yes. Anything else leaves the data untouched.
func (e *Engine) handleConfirmDelete(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if !yes {
		e.clearToMenu(ctx, conv.ChatID, msgUsageCancelled)
		return nil
	}
	if err := e.coupons.DeleteCascade(ctx, conv.TargetID, conv.UserID); err != nil {
		if e.replyValidation(ctx, conv.ChatID, err) {
			e.convs.Clear(conv.ChatID)
			return nil
		}
		e.reply(ctx, conv.ChatID, msgGenericFailure)
		return err
	}
	e.clearToMenu(ctx, conv.ChatID, msgDeleted)
	return nil
}
