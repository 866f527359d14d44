package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/couponmaster/couponbot/core/logger"
	"github.com/couponmaster/couponbot/internal/ai"
	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/domain"
	"github.com/couponmaster/couponbot/internal/session"
)

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Sessions is the slice of the session manager the engine needs.
type Sessions interface {
	Validate(ctx context.Context, chatID int64) (*session.Session, error)
	Authenticate(ctx context.Context, token string, chatID int64, username string) (*session.Session, error)
	Refresh(ctx context.Context, chatID int64) error
	Disconnect(ctx context.Context, chatID int64) error
}

// Coupons is the persistence surface the workflows use.
type Coupons interface {
	ListActive(ctx context.Context, userID int64) ([]coupon.Coupon, error)
	ListActiveByCompany(ctx context.Context, userID int64, company string) ([]coupon.Coupon, error)
	Companies(ctx context.Context, userID int64) ([]string, error)
	KnownCompanies(ctx context.Context) ([]string, error)
	Save(ctx context.Context, c *coupon.Coupon) error
	RecordUsage(ctx context.Context, couponID, userID int64, amount float64) (*coupon.Coupon, error)
	DeleteCascade(ctx context.Context, couponID, userID int64) error
}

// Extractor turns free text into structured coupon fields.
type Extractor interface {
	Extract(ctx context.Context, text string, knownCompanies []string) (*ai.Extraction, error)
}

// Config carries the conversation limits and matching thresholds.
type Config struct {
	MaxAmount        float64
	AIMinChars       int
	AIMaxChars       int
	SuggestThreshold int
	ExactThreshold   int
}

type handlerFunc func(ctx context.Context, conv *Conversation, text string) error

// Engine drives the per-chat dialogue. Handlers are looked up in a dispatch
// table keyed by state; the keyed store serializes messages per chat.
type Engine struct {
	cfg      Config
	convs    *Store
	sessions Sessions
	coupons  Coupons
	extract  Extractor
	send     Sender
	handlers map[State]handlerFunc
}

// NewEngine wires the dispatch table. extract may be nil when the AI
// collaborator is not configured; the menu option then reports unavailable.
func NewEngine(cfg Config, sessions Sessions, coupons Coupons, extract Extractor, send Sender) *Engine {
	if cfg.SuggestThreshold <= 0 {
		cfg.SuggestThreshold = 90
	}
	if cfg.ExactThreshold <= 0 {
		cfg.ExactThreshold = 100
	}
	e := &Engine{
		cfg:      cfg,
		convs:    NewStore(),
		sessions: sessions,
		coupons:  coupons,
		extract:  extract,
		send:     send,
	}
	e.handlers = map[State]handlerFunc{
		StateFuzzyMatchCompany: e.handleFuzzyMatchCompany,
		StateChooseCompany:     e.handleChooseCompany,
		StateEnterNewCompany:   e.handleEnterNewCompany,
		StateEnterCode:         e.handleEnterCode,
		StateEnterCost:         e.handleEnterCost,
		StateEnterValue:        e.handleEnterValue,
		StateEnterExpiration:   e.handleEnterExpiration,
		StateEnterDescription:  e.handleEnterDescription,
		StateEnterSource:       e.handleEnterSource,
		StateAskCreditCard:     e.handleAskCreditCard,
		StateEnterCVV:          e.handleEnterCVV,
		StateEnterCardExp:      e.handleEnterCardExp,
		StateAskOneTime:        e.handleAskOneTime,
		StateEnterPurpose:      e.handleEnterPurpose,
		StateConfirmSave:       e.handleConfirmSave,

		StateAITextInput: e.handleAITextInput,
		StateAIConfirm:   e.handleAIConfirm,

		StateEditFieldSelection: e.handleEditFieldSelection,
		StateEditFieldConfirm:   e.handleEditFieldConfirm,
		StateEditFieldValue:     e.handleEditFieldValue,

		StateChooseCouponForUsage: e.handleChooseCouponForUsage,
		StateAskUsageType:         e.handleAskUsageType,
		StateEnterUsageAmount:     e.handleEnterUsageAmount,
		StateConfirmUsageUpdate:   e.handleConfirmUsageUpdate,

		StateChooseCouponForDelete: e.handleChooseCouponForDelete,
		StateConfirmDelete:         e.handleConfirmDelete,

		StateBrowseCompany: e.handleBrowseCompany,
	}
	return e
}

var cancelWords = map[string]struct{}{
	"cancel": {},
	"menu":   {},
	"back":   {},
	"exit":   {},
	"stop":   {},
	"quit":   {},
}

func isCancel(text string) bool {
	_, ok := cancelWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// InProgress reports whether the chat has a conversation underway.
func (e *Engine) InProgress(chatID int64) bool {
	return e.convs.Get(chatID) != nil
}

// HandleMessage processes one inbound text message for the chat. Session
// validation runs first on every message; cancellation keywords short-circuit
// any workflow; otherwise the current state's handler gets the text, or the
// idle menu interprets it.
func (e *Engine) HandleMessage(ctx context.Context, chatID int64, username, text string) error {
	unlock := e.convs.Lock(chatID)
	defer unlock()

	text = strings.TrimSpace(text)

	sess, err := e.sessions.Validate(ctx, chatID)
	if err != nil {
		e.convs.Clear(chatID)
		var expired *domain.SessionExpiredError
		if errors.As(err, &expired) {
			e.reply(ctx, chatID, msgSessionExpired)
			return nil
		}
		var auth *domain.AuthenticationError
		if errors.As(err, &auth) {
			// No session: the message is treated as a verification token.
			return e.authenticate(ctx, chatID, username, text)
		}
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}

	if err := e.sessions.Refresh(ctx, chatID); err != nil {
		logger.Warn(ctx, "fsm", "session.refresh_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}

	conv := e.convs.Get(chatID)
	if conv != nil && isCancel(text) {
		e.convs.Clear(chatID)
		e.reply(ctx, chatID, msgCancelled+"\n\n"+menuText)
		return nil
	}
	if conv != nil {
		return e.dispatch(ctx, conv, text)
	}
	return e.handleMenu(ctx, sess, chatID, text)
}

func (e *Engine) dispatch(ctx context.Context, conv *Conversation, text string) error {
	h, ok := e.handlers[conv.State]
	if !ok {
		logger.Error(ctx, "fsm", "state.unknown",
			slog.Int64("chat_id", conv.ChatID),
			slog.String("state", string(conv.State)),
		)
		e.convs.Clear(conv.ChatID)
		e.reply(ctx, conv.ChatID, msgGenericFailure+"\n\n"+menuText)
		return nil
	}
	logger.Debug(ctx, "fsm", "state.handle",
		slog.Int64("chat_id", conv.ChatID),
		slog.String("state", string(conv.State)),
	)
	return h(ctx, conv, text)
}

func (e *Engine) authenticate(ctx context.Context, chatID int64, username, text string) error {
	if text == "" || strings.HasPrefix(text, "/") {
		e.reply(ctx, chatID, msgAskToken)
		return nil
	}
	_, err := e.sessions.Authenticate(ctx, text, chatID, username)
	if err != nil {
		var auth *domain.AuthenticationError
		if errors.As(err, &auth) {
			switch auth.Reason {
			case domain.AuthExpired:
				e.reply(ctx, chatID, msgTokenExpired)
			case domain.AuthAlreadyUsed:
				e.reply(ctx, chatID, msgTokenUsed)
			case domain.AuthBlocked:
				e.reply(ctx, chatID, msgTokenBlocked)
			default:
				e.reply(ctx, chatID, msgTokenNotFound)
			}
			return nil
		}
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	e.reply(ctx, chatID, msgTokenAccepted+"\n\n"+menuText)
	return nil
}

func (e *Engine) handleMenu(ctx context.Context, sess *session.Session, chatID int64, text string) error {
	switch strings.TrimSpace(text) {
	case "1":
		return e.showCoupons(ctx, sess.UserID, chatID)
	case "2":
		return e.startBrowse(ctx, sess, chatID)
	case "3":
		return e.startCreation(ctx, sess, chatID)
	case "4":
		return e.startUsage(ctx, sess, chatID)
	case "5":
		return e.startDelete(ctx, sess, chatID)
	case "6":
		return e.startAI(ctx, sess, chatID)
	case "7":
		if err := e.sessions.Disconnect(ctx, chatID); err != nil {
			e.reply(ctx, chatID, msgGenericFailure)
			return err
		}
		e.reply(ctx, chatID, msgDisconnected)
		return nil
	default:
		e.reply(ctx, chatID, msgUnknownMenuChoice+menuText)
		return nil
	}
}

// ShowMenu sends the idle menu, for command handlers.
func (e *Engine) ShowMenu(ctx context.Context, chatID int64) {
	e.reply(ctx, chatID, menuText)
}

func (e *Engine) showCoupons(ctx context.Context, userID, chatID int64) error {
	cs, err := e.coupons.ListActive(ctx, userID)
	if err != nil {
		e.reply(ctx, chatID, msgGenericFailure)
		return err
	}
	e.reply(ctx, chatID, renderCouponList(cs))
	return nil
}

// ListForChat renders the chat owner's coupons, for the /coupons command.
func (e *Engine) ListForChat(ctx context.Context, userID, chatID int64) error {
	return e.showCoupons(ctx, userID, chatID)
}

// clearToMenu ends the conversation and reshows the menu after msg.
func (e *Engine) clearToMenu(ctx context.Context, chatID int64, msg string) {
	e.convs.Clear(chatID)
	e.reply(ctx, chatID, msg+"\n\n"+menuText)
}

func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	if err := e.send.Send(ctx, chatID, text); err != nil {
		logger.Error(ctx, "fsm", "send.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

// replyValidation sends the validation message and reports whether err was a
// validation error; other errors fall through to the caller.
func (e *Engine) replyValidation(ctx context.Context, chatID int64, err error) bool {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		e.reply(ctx, chatID, strings.ToUpper(ve.Msg[:1])+ve.Msg[1:]+".")
		return true
	}
	return false
}
