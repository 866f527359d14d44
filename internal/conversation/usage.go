package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/domain"
	"github.com/couponmaster/couponbot/internal/session"
)

func (e *Engine) startUsage(ctx context.Context, sess *session.Session, chatID int64) error {
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
		State:      StateChooseCouponForUsage,
		Candidates: cs,
	})
	e.reply(ctx, chatID, renderNumberedCoupons("Which coupon did you use?", cs))
	return nil
}

func (e *Engine) handleChooseCouponForUsage(ctx context.Context, conv *Conversation, text string) error {
	c := pickCandidate(conv, text)
	if c == nil {
		e.reply(ctx, conv.ChatID, msgPickNumber)
		return nil
	}
	conv.TargetID = c.ID
	// One-time coupons are always fully consumed, no amount to ask for.
	if c.OneTime {
		conv.FullUsage = true
		conv.UsageAmount = c.Remaining()
		return e.toUsageConfirm(ctx, conv)
	}
	conv.State = StateAskUsageType
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptUsageType)
	return nil
}

func (e *Engine) handleAskUsageType(ctx context.Context, conv *Conversation, text string) error {
	c := conv.target()
	if c == nil {
		e.clearToMenu(ctx, conv.ChatID, msgGenericFailure)
		return nil
	}
	switch strings.TrimSpace(text) {
	case "1":
		conv.FullUsage = true
		conv.UsageAmount = c.Remaining()
		return e.toUsageConfirm(ctx, conv)
	case "2":
		conv.FullUsage = false
		conv.State = StateEnterUsageAmount
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, fmt.Sprintf("%s (%s left)", promptUsageAmount, formatMoney(c.Remaining())))
		return nil
	default:
		e.reply(ctx, conv.ChatID, msgPickNumber)
		return nil
	}
}

func (e *Engine) handleEnterUsageAmount(ctx context.Context, conv *Conversation, text string) error {
	c := conv.target()
	if c == nil {
		e.clearToMenu(ctx, conv.ChatID, msgGenericFailure)
		return nil
	}
	v, err := parseAmount("amount", text, e.cfg.MaxAmount)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if v <= 0 {
		e.replyValidation(ctx, conv.ChatID, &domain.ValidationError{Field: "amount", Msg: msgAmountZeroUsage})
		return nil
	}
	if v > c.Remaining() {
		e.replyValidation(ctx, conv.ChatID, &domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("only %s is left on this coupon", formatMoney(c.Remaining())),
		})
		return nil
	}
	conv.UsageAmount = v
	return e.toUsageConfirm(ctx, conv)
}

func (e *Engine) toUsageConfirm(ctx context.Context, conv *Conversation) error {
	c := conv.target()
	if c == nil {
		e.clearToMenu(ctx, conv.ChatID, msgGenericFailure)
		return nil
	}
	conv.State = StateConfirmUsageUpdate
	e.convs.Put(conv)
	left := c.Remaining() - conv.UsageAmount
	var what string
	if conv.FullUsage {
		what = fmt.Sprintf("Mark the %s coupon as fully used", c.Company)
	} else {
		what = fmt.Sprintf("Record %s used on the %s coupon, leaving %s", formatMoney(conv.UsageAmount), c.Company, formatMoney(left))
	}
	e.reply(ctx, conv.ChatID, what+"? (yes/no)")
	return nil
}

func (e *Engine) handleConfirmUsageUpdate(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if !yes {
		e.clearToMenu(ctx, conv.ChatID, msgUsageCancelled)
		return nil
	}
	updated, err := e.coupons.RecordUsage(ctx, conv.TargetID, conv.UserID, conv.UsageAmount)
	if err != nil {
		if e.replyValidation(ctx, conv.ChatID, err) {
			e.convs.Clear(conv.ChatID)
			return nil
		}
		e.reply(ctx, conv.ChatID, msgGenericFailure)
		return err
	}
	var msg string
	if updated.Status == coupon.StatusUsed {
		msg = fmt.Sprintf("Done. The %s coupon is now fully used.", updated.Company)
	} else {
		msg = fmt.Sprintf("Done. The %s coupon has %s left.", updated.Company, formatMoney(updated.Remaining()))
	}
	e.clearToMenu(ctx, conv.ChatID, msg)
	return nil
}

// pickCandidate resolves a numbered reply against the conversation's
// candidate list.
func pickCandidate(conv *Conversation, text string) *coupon.Coupon {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(conv.Candidates) {
		return nil
	}
	return &conv.Candidates[n-1]
}
