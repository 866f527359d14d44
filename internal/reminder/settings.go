// Package reminder runs the background notifier: daily expiration reminders
// and the monthly summary, scheduled from a persisted singleton settings row.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/couponmaster/couponbot/internal/domain"
)

// Settings is the persisted schedule. One row exists; changes made through
// the bot survive restarts.
type Settings struct {
	Hour            int        `db:"fire_hour"`
	Minute          int        `db:"fire_minute"`
	MonthlyDay      int        `db:"monthly_day"`
	LastMonthlySent *time.Time `db:"last_monthly_sent"`
}

// SettingsStore persists the notifier schedule.
type SettingsStore interface {
	Load(ctx context.Context) (*Settings, error)
	SaveSchedule(ctx context.Context, hour, minute, monthlyDay int) error
	MarkMonthlySent(ctx context.Context, day time.Time) error
	EnsureDefaults(ctx context.Context, hour, minute, monthlyDay int) error
}

// SQLSettings stores the schedule in the reminder_settings singleton row.
type SQLSettings struct {
	db *sqlx.DB
}

// NewSQLSettings wraps db.
func NewSQLSettings(db *sqlx.DB) *SQLSettings {
	return &SQLSettings{db: db}
}

// EnsureDefaults seeds the singleton row on first boot. An existing row wins
// over config so admin changes survive restarts.
func (s *SQLSettings) EnsureDefaults(ctx context.Context, hour, minute, monthlyDay int) error {
	const q = `
		INSERT INTO reminder_settings (id, fire_hour, fire_minute, monthly_day)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, hour, minute, monthlyDay); err != nil {
		return &domain.PersistenceError{Op: "reminder.seed", Err: err}
	}
	return nil
}

// Load reads the current schedule.
func (s *SQLSettings) Load(ctx context.Context) (*Settings, error) {
	var out Settings
	const q = `
		SELECT fire_hour, fire_minute, monthly_day, last_monthly_sent
		FROM reminder_settings
		WHERE id = 1`
	if err := s.db.GetContext(ctx, &out, q); err != nil {
		return nil, &domain.PersistenceError{Op: "reminder.load", Err: err}
	}
	return &out, nil
}

// SaveSchedule persists a new fire time and monthly day.
func (s *SQLSettings) SaveSchedule(ctx context.Context, hour, minute, monthlyDay int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return &domain.ValidationError{Field: "time", Msg: fmt.Sprintf("%02d:%02d is not a valid time of day", hour, minute)}
	}
	if monthlyDay < 1 || monthlyDay > 28 {
		return &domain.ValidationError{Field: "day", Msg: "the summary day must be between 1 and 28"}
	}
	const q = `
		UPDATE reminder_settings
		SET fire_hour = $1, fire_minute = $2, monthly_day = $3
		WHERE id = 1`
	if _, err := s.db.ExecContext(ctx, q, hour, minute, monthlyDay); err != nil {
		return &domain.PersistenceError{Op: "reminder.save_schedule", Err: err}
	}
	return nil
}

// MarkMonthlySent records the date the monthly summary went out, making the
// sweep idempotent across restarts within the same day.
func (s *SQLSettings) MarkMonthlySent(ctx context.Context, day time.Time) error {
	const q = `UPDATE reminder_settings SET last_monthly_sent = $1 WHERE id = 1`
	if _, err := s.db.ExecContext(ctx, q, day); err != nil {
		return &domain.PersistenceError{Op: "reminder.mark_monthly", Err: err}
	}
	return nil
}
