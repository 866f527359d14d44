package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/couponmaster/couponbot/core/logger"
	"github.com/couponmaster/couponbot/internal/domain"
)

const couponColumns = `id, user_id, company, code, cost, value, used_value, expiration,
	description, source, cvv, card_exp, is_one_time, purpose, status, reminder_sent, date_added`

// Repository persists coupons, companies, and the usage ledger.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps the shared connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns the user's active coupons, newest first.
func (r *Repository) ListActive(ctx context.Context, userID int64) ([]Coupon, error) {
	var out []Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE user_id = $1 AND status = $2
		ORDER BY date_added DESC`
	if err := r.db.SelectContext(ctx, &out, query, userID, StatusActive); err != nil {
		return nil, fmt.Errorf("list active coupons: %w", err)
	}
	return out, nil
}

// ListActiveByCompany returns the user's active coupons for one company.
func (r *Repository) ListActiveByCompany(ctx context.Context, userID int64, company string) ([]Coupon, error) {
	var out []Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE user_id = $1 AND status = $2 AND LOWER(company) = LOWER($3)
		ORDER BY date_added DESC`
	if err := r.db.SelectContext(ctx, &out, query, userID, StatusActive, company); err != nil {
		return nil, fmt.Errorf("list coupons by company: %w", err)
	}
	return out, nil
}

// Companies returns the distinct companies of the user's active coupons.
func (r *Repository) Companies(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	query := `SELECT DISTINCT company FROM coupons
		WHERE user_id = $1 AND status = $2
		ORDER BY company`
	if err := r.db.SelectContext(ctx, &out, query, userID, StatusActive); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out, nil
}

// KnownCompanies returns every company name ever recorded, for fuzzy matching.
func (r *Repository) KnownCompanies(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.db.SelectContext(ctx, &out, `SELECT name FROM companies ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list known companies: %w", err)
	}
	return out, nil
}

// Get fetches one coupon scoped to its owner, or nil when absent.
func (r *Repository) Get(ctx context.Context, id, userID int64) (*Coupon, error) {
	var c Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &c, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}

// Save inserts the coupon and upserts its company in one transaction.
func (r *Repository) Save(ctx context.Context, c *Coupon) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "coupon.save", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO companies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		c.Company,
	); err != nil {
		return &domain.PersistenceError{Op: "coupon.save.company", Err: err}
	}

	query := `INSERT INTO coupons
		(user_id, company, code, cost, value, used_value, expiration, description,
		 source, cvv, card_exp, is_one_time, purpose, status)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, date_added`
	row := tx.QueryRowxContext(ctx, query,
		c.UserID, c.Company, c.Code, c.Cost, c.Value, c.Expiration, c.Description,
		c.Source, c.CVV, c.CardExp, c.OneTime, c.Purpose, StatusActive,
	)
	if err := row.Scan(&c.ID, &c.DateAdded); err != nil {
		return &domain.PersistenceError{Op: "coupon.save", Err: err}
	}
	c.Status = StatusActive

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "coupon.save.commit", Err: err}
	}
	logger.SVCCoupons.LogAttrs(ctx, slog.LevelInfo, "coupon.saved",
		slog.String("event", "coupon.saved"),
		slog.Int64("coupon_id", c.ID),
		slog.Int64("user_id", c.UserID),
		slog.String("company", c.Company),
	)
	return nil
}

// RecordUsage appends a ledger row and updates the coupon totals in one
// transaction. The row is locked so concurrent updates cannot overdraw; the
// status flips to used exactly when the remaining value reaches zero.
func (r *Repository) RecordUsage(ctx context.Context, couponID, userID int64, amount float64) (*Coupon, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "usage.record", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var c Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE id = $1 AND user_id = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &c, query, couponID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ValidationError{Field: "coupon", Msg: "coupon not found"}
		}
		return nil, &domain.PersistenceError{Op: "usage.lock", Err: err}
	}
	if amount <= 0 || amount > c.Remaining() {
		return nil, &domain.ValidationError{Field: "amount", Msg: "amount exceeds the remaining value"}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO coupon_usages (coupon_id, amount) VALUES ($1, $2)`,
		couponID, amount,
	); err != nil {
		return nil, &domain.PersistenceError{Op: "usage.insert", Err: err}
	}

	c.ApplyUsage(amount)
	if _, err := tx.ExecContext(ctx,
		`UPDATE coupons SET used_value = $2, status = $3 WHERE id = $1`,
		couponID, c.UsedValue, c.Status,
	); err != nil {
		return nil, &domain.PersistenceError{Op: "usage.update", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.PersistenceError{Op: "usage.commit", Err: err}
	}
	logger.SVCCoupons.LogAttrs(ctx, slog.LevelInfo, "usage.recorded",
		slog.String("event", "usage.recorded"),
		slog.Int64("coupon_id", couponID),
		slog.Float64("amount", amount),
		slog.Float64("remaining", c.Remaining()),
		slog.String("status", "ok"),
	)
	return &c, nil
}

// DeleteCascade removes the coupon and its ledger rows in one transaction.
// Any failure rolls the whole deletion back.
func (r *Repository) DeleteCascade(ctx context.Context, couponID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "coupon.delete", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM coupon_usages WHERE coupon_id = $1`, couponID,
	); err != nil {
		return &domain.PersistenceError{Op: "coupon.delete.usages", Err: err}
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM coupons WHERE id = $1 AND user_id = $2`, couponID, userID,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "coupon.delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ValidationError{Field: "coupon", Msg: "coupon not found"}
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "coupon.delete.commit", Err: err}
	}
	logger.SVCCoupons.LogAttrs(ctx, slog.LevelInfo, "coupon.deleted",
		slog.String("event", "coupon.deleted"),
		slog.Int64("coupon_id", couponID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// ExpiringWithin returns active coupons of the user expiring inside the next
// days days that were not reminded about yet.
func (r *Repository) ExpiringWithin(ctx context.Context, userID int64, days int) ([]Coupon, error) {
	var out []Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE user_id = $1 AND status = $2
		  AND reminder_sent = FALSE
		  AND expiration IS NOT NULL
		  AND expiration >= CURRENT_DATE
		  AND expiration < CURRENT_DATE + $3 * INTERVAL '1 day'
		ORDER BY expiration`
	if err := r.db.SelectContext(ctx, &out, query, userID, StatusActive, days); err != nil {
		return nil, fmt.Errorf("list expiring coupons: %w", err)
	}
	return out, nil
}

// MarkReminderSent flags coupons after a reminder delivery so the next sweep
// skips them.
func (r *Repository) MarkReminderSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE coupons SET reminder_sent = TRUE WHERE id IN (?)`, ids)
	if err != nil {
		return &domain.PersistenceError{Op: "reminder.flag", Err: err}
	}
	query = r.db.Rebind(query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.PersistenceError{Op: "reminder.flag", Err: err}
	}
	return nil
}

// Summary aggregates the user's coupons for the monthly summary message.
func (r *Repository) Summary(ctx context.Context, userID int64) (SummaryStats, error) {
	var stats SummaryStats
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'active')              AS active_count,
		COUNT(*) FILTER (WHERE status = 'used')                AS used_count,
		COALESCE(SUM(value - used_value) FILTER (WHERE status = 'active'), 0) AS total_remaining,
		COALESCE(SUM(value), 0)                                AS total_value
		FROM coupons WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return SummaryStats{}, fmt.Errorf("coupon summary: %w", err)
	}
	return stats, nil
}
