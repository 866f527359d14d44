// Package session manages Telegram chat sessions: token verification,
// sliding expiry, and disconnects. All state is persisted; nothing session
// related lives only in memory.
package session

import (
	"database/sql"
	"time"
)

// Session is one Telegram chat binding for a site user.
type Session struct {
	ID              int64          `db:"id"`
	UserID          int64          `db:"user_id"`
	ChatID          sql.NullInt64  `db:"chat_id"`
	Username        sql.NullString `db:"telegram_username"`
	Token           string         `db:"verification_token"`
	ExpiresAt       time.Time      `db:"verification_expires_at"`
	Verified        bool           `db:"is_verified"`
	Disconnected    bool           `db:"is_disconnected"`
	DisconnectedAt  *time.Time     `db:"disconnected_at"`
	Attempts        int            `db:"verification_attempts"`
	LastAttemptAt   *time.Time     `db:"last_verification_attempt"`
	BlockedUntil    *time.Time     `db:"blocked_until"`
	LastInteraction *time.Time     `db:"last_interaction"`
}
