package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/fuzzy"
	"github.com/couponmaster/couponbot/internal/session"
)

const maxCompanySuggestions = 5

func (e *Engine) startCreation(ctx context.Context, sess *session.Session, chatID int64) error {
	known, err := e.coupons.KnownCompanies(ctx)
	if err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	e.convs.Put(&Conversation{
		ChatID:    chatID,
		UserID:    sess.UserID,
		State:     StateFuzzyMatchCompany,
		Origin:    OriginManual,
		Companies: known,
	})
	e.reply(ctx, chatID, promptCompany)
	return nil
}

// handleFuzzyMatchCompany resolves the typed company name against the known
// companies. An exact score takes the candidate silently; near scores become
// a numbered suggestion list; a second consecutive miss accepts the text as a
// brand new company.
func (e *Engine) handleFuzzyMatchCompany(ctx context.Context, conv *Conversation, text string) error {
	if strings.TrimSpace(text) == "" {
		e.replyValidation(ctx, conv.ChatID, errCompanyEmpty())
		return nil
	}
	matches := fuzzy.Rank(text, conv.Companies, e.cfg.SuggestThreshold)
	if len(matches) > 0 && matches[0].Score >= e.cfg.ExactThreshold {
		conv.Draft.Company = matches[0].Candidate
		conv.State = StateEnterCode
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptCode)
		return nil
	}
	if len(matches) > 0 {
		if len(matches) > maxCompanySuggestions {
			matches = matches[:maxCompanySuggestions]
		}
		conv.Matches = matches
		conv.Draft.Company = strings.TrimSpace(text)
		conv.State = StateChooseCompany
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, renderCompanySuggestions(text, matches))
		return nil
	}
	if conv.NoMatchCount == 0 {
		conv.NoMatchCount++
		conv.Draft.Company = strings.TrimSpace(text)
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, msgCompanyUnknown)
		return nil
	}
	// Second miss in a row: take the text as a new company.
	conv.Draft.Company = strings.TrimSpace(text)
	conv.State = StateEnterCode
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptCode)
	return nil
}

func (e *Engine) handleChooseCompany(ctx context.Context, conv *Conversation, text string) error {
	choice := strings.TrimSpace(text)
	if choice == "0" {
		conv.State = StateEnterNewCompany
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptNewCompany)
		return nil
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(conv.Matches) {
		e.reply(ctx, conv.ChatID, msgPickNumber)
		return nil
	}
	conv.Draft.Company = conv.Matches[n-1].Candidate
	conv.Matches = nil
	conv.State = StateEnterCode
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptCode)
	return nil
}

func (e *Engine) handleEnterNewCompany(ctx context.Context, conv *Conversation, text string) error {
	name := strings.TrimSpace(text)
	if name == "" {
		e.replyValidation(ctx, conv.ChatID, errCompanyEmpty())
		return nil
	}
	conv.Draft.Company = name
	conv.Matches = nil
	conv.State = StateEnterCode
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptCode)
	return nil
}

func (e *Engine) handleEnterCode(ctx context.Context, conv *Conversation, text string) error {
	code := strings.TrimSpace(text)
	if code == "" {
		e.replyValidation(ctx, conv.ChatID, errCodeEmpty())
		return nil
	}
	conv.Draft.Code = code
	conv.State = StateEnterCost
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptCost)
	return nil
}

func (e *Engine) handleEnterCost(ctx context.Context, conv *Conversation, text string) error {
	v, err := parseAmount("cost", text, e.cfg.MaxAmount)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	conv.Draft.Cost = v
	conv.State = StateEnterValue
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptValue)
	return nil
}

// handleEnterValue stores the value and enforces the economics rule: a paid
// coupon must be worth more than it cost. A violation sends the flow back to
// the cost step with the other fields intact.
func (e *Engine) handleEnterValue(ctx context.Context, conv *Conversation, text string) error {
	v, err := parseAmount("value", text, e.cfg.MaxAmount)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if v <= 0 {
		e.replyValidation(ctx, conv.ChatID, errValueZero())
		return nil
	}
	conv.Draft.Value = v
	if err := checkEconomics(&conv.Draft); err != nil {
		conv.State = StateEnterCost
		e.convs.Put(conv)
		e.replyValidation(ctx, conv.ChatID, err)
		e.reply(ctx, conv.ChatID, promptCost)
		return nil
	}
	conv.State = StateEnterExpiration
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptExpiration)
	return nil
}

func (e *Engine) handleEnterExpiration(ctx context.Context, conv *Conversation, text string) error {
	t, err := parseDate(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	conv.Draft.Expiration = t
	conv.State = StateEnterDescription
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptDescription)
	return nil
}

func (e *Engine) handleEnterDescription(ctx context.Context, conv *Conversation, text string) error {
	conv.Draft.Description = parseOptionalText(text)
	conv.State = StateEnterSource
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptSource)
	return nil
}

func (e *Engine) handleEnterSource(ctx context.Context, conv *Conversation, text string) error {
	conv.Draft.Source = parseOptionalText(text)
	conv.State = StateAskCreditCard
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptAskCard)
	return nil
}

func (e *Engine) handleAskCreditCard(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if yes {
		conv.State = StateEnterCVV
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptCVV)
		return nil
	}
	conv.Draft.CVV = nil
	conv.Draft.CardExp = nil
	conv.State = StateAskOneTime
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptAskOneTime)
	return nil
}

func (e *Engine) handleEnterCVV(ctx context.Context, conv *Conversation, text string) error {
	cvv, err := parseCVV(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	conv.Draft.CVV = cvv
	conv.State = StateEnterCardExp
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptCardExp)
	return nil
}

func (e *Engine) handleEnterCardExp(ctx context.Context, conv *Conversation, text string) error {
	exp, err := parseCardExp(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	conv.Draft.CardExp = exp
	conv.State = StateAskOneTime
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, promptAskOneTime)
	return nil
}

func (e *Engine) handleAskOneTime(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	conv.Draft.OneTime = yes
	if yes {
		conv.State = StateEnterPurpose
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptPurpose)
		return nil
	}
	return e.toConfirmSave(ctx, conv)
}

func (e *Engine) handleEnterPurpose(ctx context.Context, conv *Conversation, text string) error {
	conv.Draft.Purpose = parseOptionalText(text)
	return e.toConfirmSave(ctx, conv)
}

// toConfirmSave shows the draft summary. AI drafts confirm through their own
// state so the required field checks run before saving.
func (e *Engine) toConfirmSave(ctx context.Context, conv *Conversation) error {
	conv.State = StateConfirmSave
	if conv.Origin == OriginAI {
		conv.State = StateAIConfirm
	}
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, renderDraftSummary(&conv.Draft, conv.Origin))
	return nil
}

// handleConfirmSave persists the draft on yes; no reopens the field editor so
// any single field can be fixed before saving.
func (e *Engine) handleConfirmSave(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if !yes {
		conv.State = StateEditFieldSelection
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptEditField)
		return nil
	}
	if err := checkEconomics(&conv.Draft); err != nil {
		conv.State = StateEnterCost
		e.convs.Put(conv)
		e.replyValidation(ctx, conv.ChatID, err)
		e.reply(ctx, conv.ChatID, promptCost)
		return nil
	}
	c := draftToCoupon(&conv.Draft, conv.UserID)
	if err := e.coupons.Save(ctx, c); err != nil {
		e.reply(ctx, conv.ChatID, msgGenericFailure)
		return err
	}
	e.clearToMenu(ctx, conv.ChatID, msgSaved)
	return nil
}

func draftToCoupon(d *Draft, userID int64) *coupon.Coupon {
	return &coupon.Coupon{
		UserID:      userID,
		Company:     d.Company,
		Code:        d.Code,
		Cost:        d.Cost,
		Value:       d.Value,
		Expiration:  d.Expiration,
		Description: d.Description,
		Source:      d.Source,
		CVV:         d.CVV,
		CardExp:     d.CardExp,
		OneTime:     d.OneTime,
		Purpose:     d.Purpose,
		Status:      coupon.StatusActive,
	}
}
