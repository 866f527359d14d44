package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/couponmaster/couponbot/internal/fuzzy"
	"github.com/couponmaster/couponbot/internal/session"
)

func (e *Engine) startAI(ctx context.Context, sess *session.Session, chatID int64) error {
	if e.extract == nil {
		e.reply(ctx, chatID, msgAIUnavailable)
		return nil
	}
	known, err := e.coupons.KnownCompanies(ctx)
	if err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	e.convs.Put(&Conversation{
		ChatID:    chatID,
		UserID:    sess.UserID,
		State:     StateAITextInput,
		Origin:    OriginAI,
		Companies: known,
	})
	e.reply(ctx, chatID, promptAIText)
	return nil
}

// handleAITextInput runs the free text through the extractor. Length problems
// and an empty extraction keep the flow open for another try; an extractor
// failure aborts back to the menu so the user is not stuck retrying a broken
// collaborator.
func (e *Engine) handleAITextInput(ctx context.Context, conv *Conversation, text string) error {
	// Bounds count characters, not bytes, so multi-byte scripts are not
	// short-changed.
	n := utf8.RuneCountInString(text)
	if n < e.cfg.AIMinChars {
		e.reply(ctx, conv.ChatID, fmt.Sprintf(msgAITooShort, e.cfg.AIMinChars))
		return nil
	}
	if e.cfg.AIMaxChars > 0 && n > e.cfg.AIMaxChars {
		e.reply(ctx, conv.ChatID, fmt.Sprintf(msgAITooLong, e.cfg.AIMaxChars))
		return nil
	}
	ext, err := e.extract.Extract(ctx, text, conv.Companies)
	if err != nil {
		e.clearToMenu(ctx, conv.ChatID, msgAIFailed)
		return err
	}
	if ext == nil {
		e.reply(ctx, conv.ChatID, msgAINothingFound)
		return nil
	}

	conv.Draft = Draft{
		Company:    resolveCompany(ext.Company, conv.Companies, e.cfg.ExactThreshold),
		Code:       ext.Code,
		Cost:       ext.Cost,
		Value:      ext.Value,
		Expiration: ext.Expiration,
		OneTime:    ext.OneTime,
	}
	if d := strings.TrimSpace(ext.Description); d != "" {
		conv.Draft.Description = &d
	}
	if s := strings.TrimSpace(ext.Source); s != "" {
		conv.Draft.Source = &s
	}
	conv.State = StateAIConfirm
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, renderDraftSummary(&conv.Draft, conv.Origin))
	return nil
}

// handleAIConfirm saves the extracted draft on yes, after filling gaps the
// model may have left: a missing required field or a broken economics rule
// drops into the field editor or the cost step instead of saving bad data.
func (e *Engine) handleAIConfirm(ctx context.Context, conv *Conversation, text string) error {
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
	switch {
	case conv.Draft.Company == "":
		e.replyValidation(ctx, conv.ChatID, errCompanyEmpty())
		return e.toFieldValue(ctx, conv, "company")
	case conv.Draft.Code == "":
		e.replyValidation(ctx, conv.ChatID, errCodeEmpty())
		return e.toFieldValue(ctx, conv, "code")
	case conv.Draft.Value <= 0:
		e.replyValidation(ctx, conv.ChatID, errValueZero())
		return e.toFieldValue(ctx, conv, "value")
	}
	return e.handleConfirmSave(ctx, conv, "yes")
}

// resolveCompany snaps an extracted company name onto a known one when the
// match is exact, otherwise keeps it verbatim for the user to confirm.
func resolveCompany(name string, known []string, exactThreshold int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if best := fuzzy.Best(name, known); best.Score >= exactThreshold {
		return best.Candidate
	}
	return name
}
