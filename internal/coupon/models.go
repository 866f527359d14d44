// Package coupon holds the coupon domain model and its Postgres repository.
package coupon

import "time"

const (
	// StatusActive marks a coupon with remaining value.
	StatusActive = "active"
	// StatusUsed marks a coupon whose value is fully consumed.
	StatusUsed = "used"
)

// Coupon is a stored coupon with its usage ledger totals.
type Coupon struct {
	ID           int64      `db:"id"`
	UserID       int64      `db:"user_id"`
	Company      string     `db:"company"`
	Code         string     `db:"code"`
	Cost         float64    `db:"cost"`
	Value        float64    `db:"value"`
	UsedValue    float64    `db:"used_value"`
	Expiration   *time.Time `db:"expiration"`
	Description  *string    `db:"description"`
	Source       *string    `db:"source"`
	CVV          *string    `db:"cvv"`
	CardExp      *string    `db:"card_exp"`
	OneTime      bool       `db:"is_one_time"`
	Purpose      *string    `db:"purpose"`
	Status       string     `db:"status"`
	ReminderSent bool       `db:"reminder_sent"`
	DateAdded    time.Time  `db:"date_added"`
}

// Usage is one row of the usage ledger.
type Usage struct {
	ID       int64     `db:"id"`
	CouponID int64     `db:"coupon_id"`
	Amount   float64   `db:"amount"`
	Details  *string   `db:"details"`
	UsedAt   time.Time `db:"used_at"`
}

// SummaryStats aggregates a user's coupons for the monthly summary.
type SummaryStats struct {
	ActiveCount    int     `db:"active_count"`
	UsedCount      int     `db:"used_count"`
	TotalRemaining float64 `db:"total_remaining"`
	TotalValue     float64 `db:"total_value"`
}

// Remaining reports the unconsumed value, never negative.
func (c *Coupon) Remaining() float64 {
	r := c.Value - c.UsedValue
	if r < 0 {
		return 0
	}
	return r
}

// ApplyUsage adds amount to the consumed total and flips the status to used
// exactly when the remaining value reaches zero. Callers validate
// 0 < amount <= Remaining() beforehand.
func (c *Coupon) ApplyUsage(amount float64) {
	c.UsedValue += amount
	if c.UsedValue >= c.Value {
		c.UsedValue = c.Value
		c.Status = StatusUsed
	}
}

// ExpiresWithin reports whether the coupon has an expiration date falling
// inside the next days days from now.
func (c *Coupon) ExpiresWithin(now time.Time, days int) bool {
	if c.Expiration == nil {
		return false
	}
	limit := now.AddDate(0, 0, days)
	return !c.Expiration.Before(now.Truncate(24*time.Hour)) && c.Expiration.Before(limit)
}
