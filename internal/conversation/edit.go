package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/couponmaster/couponbot/internal/domain"
	"github.com/couponmaster/couponbot/internal/fuzzy"
)

// editableFields maps canonical field names to their entry prompts. Field
// selection input is fuzzy matched against these names so small typos still
// land on the right field.
var editableFields = map[string]string{
	"company":     promptCompany,
	"code":        promptCode,
	"cost":        promptCost,
	"value":       promptValue,
	"expiration":  promptExpiration,
	"description": promptDescription,
	"source":      promptSource,
	"cvv":         promptCVV,
	"card expiry": promptCardExp,
	"one-time":    promptAskOneTime,
	"purpose":     promptPurpose,
}

func fieldNames() []string {
	names := make([]string, 0, len(editableFields))
	for name := range editableFields {
		names = append(names, name)
	}
	return names
}

// matchField resolves the typed field name. Confidence below the suggestion
// threshold is an AmbiguousInputError, recovered by re-prompting.
func matchField(input string, suggest int) (fuzzy.Match, error) {
	best := fuzzy.Best(input, fieldNames())
	if best.Score < suggest {
		return fuzzy.Match{}, &domain.AmbiguousInputError{Input: strings.TrimSpace(input)}
	}
	return best, nil
}

// handleEditFieldSelection picks the field to change. An exact score selects
// silently, a near score asks for confirmation first, anything else
// re-prompts with the field list.
func (e *Engine) handleEditFieldSelection(ctx context.Context, conv *Conversation, text string) error {
	best, err := matchField(text, e.cfg.SuggestThreshold)
	if err != nil {
		var amb *domain.AmbiguousInputError
		if errors.As(err, &amb) {
			e.reply(ctx, conv.ChatID, strings.ToUpper(msgFieldUnknown[:1])+msgFieldUnknown[1:]+".\n\n"+promptEditField)
			return nil
		}
		return err
	}
	if best.Score >= e.cfg.ExactThreshold {
		return e.toFieldValue(ctx, conv, best.Candidate)
	}
	conv.SuggestedField = best.Candidate
	conv.State = StateEditFieldConfirm
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, "Did you mean \""+best.Candidate+"\"? (yes/no)")
	return nil
}

func (e *Engine) handleEditFieldConfirm(ctx context.Context, conv *Conversation, text string) error {
	yes, err := parseYesNo(text)
	if err != nil {
		e.replyValidation(ctx, conv.ChatID, err)
		return nil
	}
	if !yes {
		conv.SuggestedField = ""
		conv.State = StateEditFieldSelection
		e.convs.Put(conv)
		e.reply(ctx, conv.ChatID, promptEditField)
		return nil
	}
	return e.toFieldValue(ctx, conv, conv.SuggestedField)
}

func (e *Engine) toFieldValue(ctx context.Context, conv *Conversation, field string) error {
	conv.EditField = field
	conv.SuggestedField = ""
	conv.State = StateEditFieldValue
	e.convs.Put(conv)
	e.reply(ctx, conv.ChatID, editableFields[field])
	return nil
}

// handleEditFieldValue applies the new value through the same validators the
// creation steps use, then returns to the confirmation summary.
func (e *Engine) handleEditFieldValue(ctx context.Context, conv *Conversation, text string) error {
	if err := applyFieldEdit(&conv.Draft, conv.EditField, text, e.cfg.MaxAmount); err != nil {
		if !e.replyValidation(ctx, conv.ChatID, err) {
			e.reply(ctx, conv.ChatID, msgGenericFailure)
		}
		return nil
	}
	if err := checkEconomics(&conv.Draft); err != nil {
		conv.State = StateEnterCost
		e.convs.Put(conv)
		e.replyValidation(ctx, conv.ChatID, err)
		e.reply(ctx, conv.ChatID, promptCost)
		return nil
	}
	conv.EditField = ""
	return e.toConfirmSave(ctx, conv)
}

func applyFieldEdit(d *Draft, field, text string, maxAmount float64) error {
	switch field {
	case "company":
		name := strings.TrimSpace(text)
		if name == "" {
			return errCompanyEmpty()
		}
		d.Company = name
	case "code":
		code := strings.TrimSpace(text)
		if code == "" {
			return errCodeEmpty()
		}
		d.Code = code
	case "cost":
		v, err := parseAmount("cost", text, maxAmount)
		if err != nil {
			return err
		}
		d.Cost = v
	case "value":
		v, err := parseAmount("value", text, maxAmount)
		if err != nil {
			return err
		}
		if v <= 0 {
			return errValueZero()
		}
		d.Value = v
	case "expiration":
		t, err := parseDate(text)
		if err != nil {
			return err
		}
		d.Expiration = t
	case "description":
		d.Description = parseOptionalText(text)
	case "source":
		d.Source = parseOptionalText(text)
	case "cvv":
		cvv, err := parseCVV(text)
		if err != nil {
			return err
		}
		d.CVV = cvv
	case "card expiry":
		exp, err := parseCardExp(text)
		if err != nil {
			return err
		}
		d.CardExp = exp
	case "one-time":
		yes, err := parseYesNo(text)
		if err != nil {
			return err
		}
		d.OneTime = yes
	case "purpose":
		d.Purpose = parseOptionalText(text)
	}
	return nil
}
