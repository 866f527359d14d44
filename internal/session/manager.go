package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/couponmaster/couponbot/core/logger"
	"github.com/couponmaster/couponbot/internal/domain"
)

// Store is the persistence surface the manager needs.
type Store interface {
	FindVerifiedByChat(ctx context.Context, chatID int64) (*Session, error)
	ConsumeToken(ctx context.Context, token string, chatID int64, username string, ttl time.Duration) (*Session, error)
	TokenState(ctx context.Context, token string) (*Session, error)
	RecordFailedAttempt(ctx context.Context, token string) error
	ExtendExpiry(ctx context.Context, chatID int64, ttl time.Duration) error
	MarkDisconnected(ctx context.Context, chatID int64) error
	ListVerified(ctx context.Context) ([]Session, error)
}

// Manager enforces the session lifecycle on top of a Store.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a manager with the configured sliding TTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Validate returns the verified session for chatID. An expired session is
// marked disconnected in the same call and reported as SessionExpiredError.
func (m *Manager) Validate(ctx context.Context, chatID int64) (*Session, error) {
	sess, err := m.store.FindVerifiedByChat(ctx, chatID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "session.lookup", Err: err}
	}
	if sess == nil {
		return nil, &domain.AuthenticationError{Reason: domain.AuthNotFound}
	}
	if !sess.ExpiresAt.After(m.now()) {
		if derr := m.store.MarkDisconnected(ctx, chatID); derr != nil {
			logger.Warn(ctx, "service.sessions", "session.expire.disconnect_failed",
				slog.Int64("chat_id", chatID),
				slog.String("err", derr.Error()),
			)
		}
		logger.Info(ctx, "service.sessions", "session.expired",
			slog.Int64("chat_id", chatID),
			slog.Int64("user_id", sess.UserID),
		)
		return nil, &domain.SessionExpiredError{ChatID: chatID}
	}
	return sess, nil
}

// Authenticate consumes a verification token for the chat. Consumption is a
// single statement so a token verifies at most once; on failure the attempt
// is recorded and the rejection classified.
func (m *Manager) Authenticate(ctx context.Context, token string, chatID int64, username string) (*Session, error) {
	sess, err := m.store.ConsumeToken(ctx, token, chatID, username, m.ttl)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "session.authenticate", Err: err}
	}
	if sess != nil {
		logger.Info(ctx, "service.sessions", "session.verified",
			slog.Int64("chat_id", chatID),
			slog.Int64("user_id", sess.UserID),
		)
		return sess, nil
	}

	if aerr := m.store.RecordFailedAttempt(ctx, token); aerr != nil {
		logger.Warn(ctx, "service.sessions", "session.attempt.record_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", aerr.Error()),
		)
	}

	prev, err := m.store.TokenState(ctx, token)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "session.token_lookup", Err: err}
	}
	reason := m.classifyRejection(prev)
	logger.Info(ctx, "service.sessions", "session.verify.rejected",
		slog.Int64("chat_id", chatID),
		slog.String("cause", string(reason)),
	)
	return nil, &domain.AuthenticationError{Reason: reason}
}

func (m *Manager) classifyRejection(prev *Session) domain.AuthFailure {
	switch {
	case prev == nil:
		return domain.AuthNotFound
	case prev.BlockedUntil != nil && prev.BlockedUntil.After(m.now()):
		return domain.AuthBlocked
	case prev.Verified, prev.Disconnected:
		return domain.AuthAlreadyUsed
	case !prev.ExpiresAt.After(m.now()):
		return domain.AuthExpired
	default:
		return domain.AuthNotFound
	}
}

// Refresh slides the expiry window forward; it never shortens a session.
func (m *Manager) Refresh(ctx context.Context, chatID int64) error {
	if err := m.store.ExtendExpiry(ctx, chatID, m.ttl); err != nil {
		return &domain.PersistenceError{Op: "session.refresh", Err: err}
	}
	return nil
}

// Disconnect marks the chat binding disconnected. Session rows are never
// deleted.
func (m *Manager) Disconnect(ctx context.Context, chatID int64) error {
	if err := m.store.MarkDisconnected(ctx, chatID); err != nil {
		return &domain.PersistenceError{Op: "session.disconnect", Err: err}
	}
	logger.Info(ctx, "service.sessions", "session.disconnected",
		slog.Int64("chat_id", chatID),
	)
	return nil
}

// ListVerified returns all verified sessions for the notifier sweep.
func (m *Manager) ListVerified(ctx context.Context) ([]Session, error) {
	sessions, err := m.store.ListVerified(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "session.list", Err: err}
	}
	return sessions, nil
}
