package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couponmaster/couponbot/core/logger"
	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/session"
)

const (
	// expiryWindowDays is how far ahead the daily sweep looks.
	expiryWindowDays = 30
	// maxSleepSlice bounds each sleep so a reconfigure never waits out a
	// stale interval.
	maxSleepSlice = 30 * time.Second
)

// SessionSource lists and validates linked chats.
type SessionSource interface {
	ListVerified(ctx context.Context) ([]session.Session, error)
	Validate(ctx context.Context, chatID int64) (*session.Session, error)
}

// CouponSource reads expiring coupons and summary stats.
type CouponSource interface {
	ExpiringWithin(ctx context.Context, userID int64, days int) ([]coupon.Coupon, error)
	MarkReminderSent(ctx context.Context, ids []int64) error
	Summary(ctx context.Context, userID int64) (coupon.SummaryStats, error)
}

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SweepReport describes one sweep run for logs and the dry-run command.
type SweepReport struct {
	ID         string
	Recipients int
	Notified   int
	Coupons    int
	Failures   int
	DryRun     bool
}

func (r *SweepReport) String() string {
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("sweep %s (%s): %d recipients, %d notified, %d coupons, %d failures",
		r.ID, mode, r.Recipients, r.Notified, r.Coupons, r.Failures)
}

// Notifier is the background loop sending expiration reminders at a
// configured time of day and a monthly summary on a configured day.
type Notifier struct {
	store    SettingsStore
	sessions SessionSource
	coupons  CouponSource
	send     Sender
	loc      *time.Location

	wake   chan struct{}
	dryRun atomic.Bool
	now    func() time.Time
}

// NewNotifier wires the loop collaborators. loc fixes the zone used for
// "time of day" and "day of month" decisions.
func NewNotifier(store SettingsStore, sessions SessionSource, coupons CouponSource, send Sender, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		store:    store,
		sessions: sessions,
		coupons:  coupons,
		send:     send,
		loc:      loc,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// SetDryRun toggles dry-run mode for scheduled sweeps.
func (n *Notifier) SetDryRun(v bool) { n.dryRun.Store(v) }

// DryRun reports the current mode.
func (n *Notifier) DryRun() bool { return n.dryRun.Load() }

// Reconfigure persists the new schedule and interrupts the current sleep so
// the loop recomputes its next fire instant immediately.
func (n *Notifier) Reconfigure(ctx context.Context, hour, minute, monthlyDay int) error {
	if err := n.store.SaveSchedule(ctx, hour, minute, monthlyDay); err != nil {
		return err
	}
	select {
	case n.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drives the loop until ctx is done. Settings are reloaded at the top of
// every cycle so changes apply without a restart.
func (n *Notifier) Run(ctx context.Context) {
	logger.Info(ctx, "service.reminder", "notifier.start")
	for {
		st, err := n.store.Load(ctx)
		if err != nil {
			logger.Error(ctx, "service.reminder", "settings.load_failed",
				slog.String("err", err.Error()),
			)
			if !n.sleep(ctx, time.Minute) {
				return
			}
			continue
		}
		fire := n.nextFire(st)
		logger.Debug(ctx, "service.reminder", "notifier.scheduled",
			slog.Time("fire_at", fire),
		)
		if !n.sleepUntil(ctx, fire) {
			if ctx.Err() != nil {
				logger.Info(ctx, "service.reminder", "notifier.stop")
				return
			}
			continue // woken by a reconfigure, recompute
		}
		n.fire(ctx, st)
	}
}

func (n *Notifier) fire(ctx context.Context, st *Settings) {
	dry := n.dryRun.Load()
	if _, err := n.RunDailySweep(ctx, dry); err != nil {
		logger.Error(ctx, "service.reminder", "sweep.failed",
			slog.String("err", err.Error()),
		)
	}
	today := n.today()
	if today.Day() == st.MonthlyDay && !sameDay(st.LastMonthlySent, today) {
		if err := n.RunMonthlySummary(ctx, dry); err != nil {
			logger.Error(ctx, "service.reminder", "monthly.failed",
				slog.String("err", err.Error()),
			)
		}
	}
}

// nextFire is the next hour:minute instant in the configured zone, today if
// still ahead, otherwise tomorrow.
func (n *Notifier) nextFire(st *Settings) time.Time {
	now := n.now().In(n.loc)
	fire := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, n.loc)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// sleepUntil sleeps in bounded slices until target. It returns false when
// interrupted, either by ctx or by a reconfigure wake.
func (n *Notifier) sleepUntil(ctx context.Context, target time.Time) bool {
	for {
		left := target.Sub(n.now())
		if left <= 0 {
			return true
		}
		if left > maxSleepSlice {
			left = maxSleepSlice
		}
		t := time.NewTimer(left)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-n.wake:
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (n *Notifier) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunDailySweep checks every linked chat for coupons expiring within the
// window and not yet reminded. One recipient failing never stops the sweep.
// In dry-run mode it counts what would be sent without sending or flagging.
func (n *Notifier) RunDailySweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	report := &SweepReport{ID: uuid.NewString(), DryRun: dryRun}
	start := time.Now()

	sessions, err := n.sessions.ListVerified(ctx)
	if err != nil {
		return report, err
	}
	for _, sess := range sessions {
		if !sess.ChatID.Valid {
			continue
		}
		chatID := sess.ChatID.Int64
		// Validate marks stale sessions disconnected as a side effect.
		live, err := n.sessions.Validate(ctx, chatID)
		if err != nil || live == nil {
			continue
		}
		report.Recipients++

		expiring, err := n.coupons.ExpiringWithin(ctx, live.UserID, expiryWindowDays)
		if err != nil {
			report.Failures++
			logger.Warn(ctx, "service.reminder", "sweep.recipient_failed",
				slog.String("sweep_id", report.ID),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		if len(expiring) == 0 {
			continue
		}
		report.Coupons += len(expiring)
		if dryRun {
			report.Notified++
			continue
		}
		if err := n.send.Send(ctx, chatID, renderReminder(expiring)); err != nil {
			report.Failures++
			logger.Warn(ctx, "service.reminder", "sweep.send_failed",
				slog.String("sweep_id", report.ID),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		ids := make([]int64, len(expiring))
		for i := range expiring {
			ids[i] = expiring[i].ID
		}
		if err := n.coupons.MarkReminderSent(ctx, ids); err != nil {
			report.Failures++
			logger.Warn(ctx, "service.reminder", "sweep.flag_failed",
				slog.String("sweep_id", report.ID),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		report.Notified++
	}

	logger.Info(ctx, "service.reminder", "sweep.done",
		slog.String("sweep_id", report.ID),
		slog.Bool("dry_run", dryRun),
		slog.Int("recipients", report.Recipients),
		slog.Int("failures", report.Failures),
		slog.Duration("duration", logger.Took(start)),
	)
	return report, nil
}

// RunMonthlySummary sends each linked chat its coupon totals and persists
// today as sent, so a crash and restart on the same day sends nothing twice.
func (n *Notifier) RunMonthlySummary(ctx context.Context, dryRun bool) error {
	sessions, err := n.sessions.ListVerified(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if !sess.ChatID.Valid {
			continue
		}
		stats, err := n.coupons.Summary(ctx, sess.UserID)
		if err != nil {
			logger.Warn(ctx, "service.reminder", "monthly.recipient_failed",
				slog.Int64("chat_id", sess.ChatID.Int64),
				slog.String("err", err.Error()),
			)
			continue
		}
		if dryRun {
			continue
		}
		if err := n.send.Send(ctx, sess.ChatID.Int64, renderSummary(stats)); err != nil {
			logger.Warn(ctx, "service.reminder", "monthly.send_failed",
				slog.Int64("chat_id", sess.ChatID.Int64),
				slog.String("err", err.Error()),
			)
		}
	}
	if dryRun {
		return nil
	}
	return n.store.MarkMonthlySent(ctx, n.today())
}

func (n *Notifier) today() time.Time {
	now := n.now().In(n.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc)
}

func sameDay(a *time.Time, b time.Time) bool {
	if a == nil {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func renderReminder(cs []coupon.Coupon) string {
	var b strings.Builder
	if len(cs) == 1 {
		b.WriteString("Heads up, a coupon is about to expire:\n")
	} else {
		fmt.Fprintf(&b, "Heads up, %d coupons are about to expire:\n", len(cs))
	}
	for i := range cs {
		c := &cs[i]
		fmt.Fprintf(&b, "• %s - code %s", c.Company, c.Code)
		if c.Expiration != nil {
			fmt.Fprintf(&b, ", expires %s", c.Expiration.Format("02/01/2006"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSummary(s coupon.SummaryStats) string {
	return fmt.Sprintf(
		"Monthly coupon summary:\nActive coupons: %d\nFully used: %d\nRemaining value: %.2f\nTotal value: %.2f",
		s.ActiveCount, s.UsedCount, s.TotalRemaining, s.TotalValue,
	)
}
