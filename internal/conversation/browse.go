package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/couponmaster/couponbot/internal/session"
)

func (e *Engine) startBrowse(ctx context.Context, sess *session.Session, chatID int64) error {
	companies, err := e.coupons.Companies(ctx, sess.UserID)
	if err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	if len(companies) == 0 {
		e.reply(ctx, chatID, msgNoCoupons+"\n\n"+menuText)
		return nil
	}
	e.convs.Put(&Conversation{
		ChatID:    chatID,
		UserID:    sess.UserID,
		State:     StateBrowseCompany,
		Companies: companies,
	})
	e.reply(ctx, chatID, renderNumberedCompanies("Which company?", companies))
	return nil
}

// handleBrowseCompany accepts a listed number or a company name typed out.
func (e *Engine) handleBrowseCompany(ctx context.Context, conv *Conversation, text string) error {
	choice := strings.TrimSpace(text)
	var company string
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(conv.Companies) {
			e.reply(ctx, conv.ChatID, msgPickNumber)
			return nil
		}
		company = conv.Companies[n-1]
	} else {
		for _, name := range conv.Companies {
			if strings.EqualFold(name, choice) {
				company = name
				break
			}
		}
		if company == "" {
			e.reply(ctx, conv.ChatID, msgPickNumber)
			return nil
		}
	}
	cs, err := e.coupons.ListActiveByCompany(ctx, conv.UserID, company)
	if err != nil {
		e.reply(ctx, conv.ChatID, msgGenericFailure)
		return err
	}
	e.convs.Clear(conv.ChatID)
	if len(cs) == 0 {
		e.reply(ctx, conv.ChatID, msgNoCoupons+"\n\n"+menuText)
		return nil
	}
	e.reply(ctx, conv.ChatID, renderCouponList(cs)+"\n\n"+menuText)
	return nil
}
