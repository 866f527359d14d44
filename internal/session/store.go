package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const sessionColumns = `id, user_id, chat_id, telegram_username, verification_token,
	verification_expires_at, is_verified, is_disconnected, disconnected_at,
	verification_attempts, last_verification_attempt, blocked_until, last_interaction`

// SQLStore persists sessions in the telegram_sessions table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps the shared connection pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// FindVerifiedByChat returns the verified session bound to chatID, or nil
// when the chat has no active binding.
func (s *SQLStore) FindVerifiedByChat(ctx context.Context, chatID int64) (*Session, error) {
	var sess Session
	query := `SELECT ` + sessionColumns + `
		FROM telegram_sessions
		WHERE chat_id = $1 AND is_verified = TRUE AND is_disconnected = FALSE`
	if err := s.db.GetContext(ctx, &sess, query, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session by chat: %w", err)
	}
	return &sess, nil
}

// ConsumeToken binds an unused, unexpired, unblocked token to the chat in a
// single statement. The WHERE clause makes the token single-use: a second
// call with the same token matches no row and returns nil. A disconnected
// row never matches either, so a consumed token stays dead after disconnect.
func (s *SQLStore) ConsumeToken(ctx context.Context, token string, chatID int64, username string, ttl time.Duration) (*Session, error) {
	var sess Session
	query := `UPDATE telegram_sessions
		SET chat_id = $2,
		    telegram_username = NULLIF($3, ''),
		    is_verified = TRUE,
		    is_disconnected = FALSE,
		    disconnected_at = NULL,
		    verification_attempts = 0,
		    last_verification_attempt = NULL,
		    verification_expires_at = NOW() + make_interval(secs => $4),
		    last_interaction = NOW()
		WHERE verification_token = $1
		  AND is_verified = FALSE
		  AND is_disconnected = FALSE
		  AND verification_expires_at > NOW()
		  AND (blocked_until IS NULL OR blocked_until <= NOW())
		RETURNING ` + sessionColumns
	if err := s.db.GetContext(ctx, &sess, query, token, chatID, username, ttl.Seconds()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return &sess, nil
}

// TokenState fetches the token row regardless of its state, for failure
// classification after a rejected verification.
func (s *SQLStore) TokenState(ctx context.Context, token string) (*Session, error) {
	var sess Session
	query := `SELECT ` + sessionColumns + ` FROM telegram_sessions WHERE verification_token = $1`
	if err := s.db.GetContext(ctx, &sess, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("token lookup: %w", err)
	}
	return &sess, nil
}

// RecordFailedAttempt bumps the attempts counter and stamps the attempt time.
func (s *SQLStore) RecordFailedAttempt(ctx context.Context, token string) error {
	query := `UPDATE telegram_sessions
		SET verification_attempts = verification_attempts + 1,
		    last_verification_attempt = NOW()
		WHERE verification_token = $1`
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	return nil
}

// ExtendExpiry pushes the expiry forward to now+ttl. GREATEST keeps an
// already later expiry untouched so a refresh never shortens a session.
func (s *SQLStore) ExtendExpiry(ctx context.Context, chatID int64, ttl time.Duration) error {
	query := `UPDATE telegram_sessions
		SET verification_expires_at = GREATEST(verification_expires_at, NOW() + make_interval(secs => $2)),
		    last_interaction = NOW()
		WHERE chat_id = $1 AND is_verified = TRUE AND is_disconnected = FALSE`
	if _, err := s.db.ExecContext(ctx, query, chatID, ttl.Seconds()); err != nil {
		return fmt.Errorf("extend expiry: %w", err)
	}
	return nil
}

// MarkDisconnected flags the binding as disconnected and releases the chat.
// The row itself is kept for audit.
func (s *SQLStore) MarkDisconnected(ctx context.Context, chatID int64) error {
	query := `UPDATE telegram_sessions
		SET is_verified = FALSE,
		    is_disconnected = TRUE,
		    disconnected_at = NOW(),
		    chat_id = NULL
		WHERE chat_id = $1`
	if _, err := s.db.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("mark disconnected: %w", err)
	}
	return nil
}

// ListVerified returns every verified, connected session for notifier sweeps.
func (s *SQLStore) ListVerified(ctx context.Context) ([]Session, error) {
	var out []Session
	query := `SELECT ` + sessionColumns + `
		FROM telegram_sessions
		WHERE is_verified = TRUE AND is_disconnected = FALSE AND chat_id IS NOT NULL
		ORDER BY id`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list verified sessions: %w", err)
	}
	return out, nil
}
