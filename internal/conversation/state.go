// Package conversation implements the per-chat multi-step dialogue engine:
// coupon creation (manual and AI assisted), editing, usage updates, deletion,
// and the idle menu. Handlers are dispatched through a state table; one
// conversation exists per chat at a time.
package conversation

import (
	"time"

	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/fuzzy"
)

// State names one step of a workflow.
type State string

const (
	StateFuzzyMatchCompany State = "create.company"
	StateChooseCompany     State = "create.company_choice"
	StateEnterNewCompany   State = "create.company_new"
	StateEnterCode         State = "create.code"
	StateEnterCost         State = "create.cost"
	StateEnterValue        State = "create.value"
	StateEnterExpiration   State = "create.expiration"
	StateEnterDescription  State = "create.description"
	StateEnterSource       State = "create.source"
	StateAskCreditCard     State = "create.ask_card"
	StateEnterCVV          State = "create.cvv"
	StateEnterCardExp      State = "create.card_exp"
	StateAskOneTime        State = "create.ask_one_time"
	StateEnterPurpose      State = "create.purpose"
	StateConfirmSave       State = "create.confirm"

	StateAITextInput State = "ai.input"
	StateAIConfirm   State = "ai.confirm"

	StateEditFieldSelection State = "edit.field"
	StateEditFieldConfirm   State = "edit.field_confirm"
	StateEditFieldValue     State = "edit.value"

	StateChooseCouponForUsage State = "usage.pick"
	StateAskUsageType         State = "usage.type"
	StateEnterUsageAmount     State = "usage.amount"
	StateConfirmUsageUpdate   State = "usage.confirm"

	StateChooseCouponForDelete State = "delete.pick"
	StateConfirmDelete         State = "delete.confirm"

	StateBrowseCompany State = "browse.company"
)

// Origin marks which summary a field edit returns to.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginAI     Origin = "ai"
)

// Draft accumulates coupon fields across workflow steps. Manual and AI flows
// share this one field set; the origin only selects the summary rendering.
type Draft struct {
	Company     string
	Code        string
	Cost        float64
	Value       float64
	Expiration  *time.Time
	Description *string
	Source      *string
	CVV         *string
	CardExp     *string
	OneTime     bool
	Purpose     *string
}

// Conversation is the per-chat workflow state. Everything a workflow needs
// between messages lives here, keyed by chat in the Store.
type Conversation struct {
	ChatID int64
	UserID int64
	State  State
	Origin Origin
	Draft  Draft

	// Company matching transients.
	Matches      []fuzzy.Match
	Companies    []string
	NoMatchCount int

	// Edit transients.
	EditField      string
	SuggestedField string

	// Usage/delete transients.
	Candidates  []coupon.Coupon
	TargetID    int64
	UsageAmount float64
	FullUsage   bool
}

func (c *Conversation) target() *coupon.Coupon {
	for i := range c.Candidates {
		if c.Candidates[i].ID == c.TargetID {
			return &c.Candidates[i]
		}
	}
	return nil
}
