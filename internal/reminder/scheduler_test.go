package reminder

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/session"
)

type fakeSettings struct {
	settings Settings
	saved    []Settings
	sent     []time.Time
}

func (f *fakeSettings) Load(context.Context) (*Settings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) SaveSchedule(_ context.Context, hour, minute, monthlyDay int) error {
	f.settings.Hour, f.settings.Minute, f.settings.MonthlyDay = hour, minute, monthlyDay
	f.saved = append(f.saved, f.settings)
	return nil
}

func (f *fakeSettings) MarkMonthlySent(_ context.Context, day time.Time) error {
	f.settings.LastMonthlySent = &day
	f.sent = append(f.sent, day)
	return nil
}

func (f *fakeSettings) EnsureDefaults(context.Context, int, int, int) error { return nil }

type fakeSessionSource struct {
	sessions []session.Session
	invalid  map[int64]bool
}

func (f *fakeSessionSource) ListVerified(context.Context) ([]session.Session, error) {
	return f.sessions, nil
}

func (f *fakeSessionSource) Validate(_ context.Context, chatID int64) (*session.Session, error) {
	if f.invalid[chatID] {
		return nil, errors.New("expired")
	}
	for i := range f.sessions {
		if f.sessions[i].ChatID.Valid && f.sessions[i].ChatID.Int64 == chatID {
			return &f.sessions[i], nil
		}
	}
	return nil, errors.New("not found")
}

type fakeCouponSource struct {
	expiring map[int64][]coupon.Coupon
	stats    map[int64]coupon.SummaryStats
	flagged  [][]int64
	listErr  map[int64]error
}

func (f *fakeCouponSource) ExpiringWithin(_ context.Context, userID int64, _ int) ([]coupon.Coupon, error) {
	if err := f.listErr[userID]; err != nil {
		return nil, err
	}
	return f.expiring[userID], nil
}

func (f *fakeCouponSource) MarkReminderSent(_ context.Context, ids []int64) error {
	f.flagged = append(f.flagged, ids)
	return nil
}

func (f *fakeCouponSource) Summary(_ context.Context, userID int64) (coupon.SummaryStats, error) {
	return f.stats[userID], nil
}

type sentMsg struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent    []sentMsg
	failFor map[int64]bool
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	if f.failFor[chatID] {
		return errors.New("telegram down")
	}
	f.sent = append(f.sent, sentMsg{chatID, text})
	return nil
}

func verifiedSession(userID, chatID int64) session.Session {
	return session.Session{
		UserID:   userID,
		ChatID:   sql.NullInt64{Int64: chatID, Valid: true},
		Verified: true,
	}
}

func expiringCoupon(id int64, company string) coupon.Coupon {
	exp := time.Now().AddDate(0, 0, 10)
	return coupon.Coupon{ID: id, Company: company, Code: "C", Value: 100, Expiration: &exp}
}

func TestDailySweepSendsAndFlags(t *testing.T) {
	sessions := &fakeSessionSource{sessions: []session.Session{
		verifiedSession(1, 100),
		verifiedSession(2, 200),
	}}
	coupons := &fakeCouponSource{expiring: map[int64][]coupon.Coupon{
		1: {expiringCoupon(10, "Fox"), expiringCoupon(11, "Fox")},
	}}
	out := &fakeSender{}
	n := NewNotifier(&fakeSettings{}, sessions, coupons, out, time.UTC)

	report, err := n.RunDailySweep(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Recipients != 2 || report.Notified != 1 || report.Coupons != 2 || report.Failures != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(out.sent) != 1 || out.sent[0].chatID != 100 {
		t.Fatalf("sent = %+v", out.sent)
	}
	if len(coupons.flagged) != 1 || len(coupons.flagged[0]) != 2 {
		t.Fatalf("flagged = %v", coupons.flagged)
	}
	if report.ID == "" {
		t.Fatal("sweep id missing")
	}
}

func TestDailySweepDryRun(t *testing.T) {
	sessions := &fakeSessionSource{sessions: []session.Session{verifiedSession(1, 100)}}
	coupons := &fakeCouponSource{expiring: map[int64][]coupon.Coupon{
		1: {expiringCoupon(10, "Fox")},
	}}
	out := &fakeSender{}
	n := NewNotifier(&fakeSettings{}, sessions, coupons, out, time.UTC)

	report, err := n.RunDailySweep(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if report.Notified != 1 || report.Coupons != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(out.sent) != 0 || len(coupons.flagged) != 0 {
		t.Fatal("dry run must not send or flag")
	}
}

func TestDailySweepContinuesPastFailures(t *testing.T) {
	sessions := &fakeSessionSource{sessions: []session.Session{
		verifiedSession(1, 100),
		verifiedSession(2, 200),
		verifiedSession(3, 300),
	}}
	coupons := &fakeCouponSource{
		expiring: map[int64][]coupon.Coupon{
			2: {expiringCoupon(20, "Zara")},
			3: {expiringCoupon(30, "Golf")},
		},
		listErr: map[int64]error{1: errors.New("db down")},
	}
	out := &fakeSender{failFor: map[int64]bool{200: true}}
	n := NewNotifier(&fakeSettings{}, sessions, coupons, out, time.UTC)

	report, err := n.RunDailySweep(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failures != 2 || report.Notified != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(out.sent) != 1 || out.sent[0].chatID != 300 {
		t.Fatalf("sent = %+v", out.sent)
	}
}

func TestDailySweepSkipsInvalidSessions(t *testing.T) {
	sessions := &fakeSessionSource{
		sessions: []session.Session{verifiedSession(1, 100)},
		invalid:  map[int64]bool{100: true},
	}
	coupons := &fakeCouponSource{expiring: map[int64][]coupon.Coupon{
		1: {expiringCoupon(10, "Fox")},
	}}
	out := &fakeSender{}
	n := NewNotifier(&fakeSettings{}, sessions, coupons, out, time.UTC)

	report, err := n.RunDailySweep(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Recipients != 0 || len(out.sent) != 0 {
		t.Fatalf("report = %+v, sent = %v", report, out.sent)
	}
}

func TestMonthlySummaryIdempotentPerDay(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, loc)
	store := &fakeSettings{settings: Settings{Hour: 9, Minute: 0, MonthlyDay: 1}}
	sessions := &fakeSessionSource{sessions: []session.Session{verifiedSession(1, 100)}}
	coupons := &fakeCouponSource{stats: map[int64]coupon.SummaryStats{
		1: {ActiveCount: 3, UsedCount: 1, TotalRemaining: 120, TotalValue: 300},
	}}
	out := &fakeSender{}
	n := NewNotifier(store, sessions, coupons, out, loc)
	n.now = func() time.Time { return now }

	st, _ := store.Load(context.Background())
	n.fire(context.Background(), st)
	if len(out.sent) != 1 {
		t.Fatalf("sent = %d", len(out.sent))
	}
	if len(store.sent) != 1 {
		t.Fatalf("marked = %v", store.sent)
	}

	// Same day again: already marked, nothing more goes out.
	st, _ = store.Load(context.Background())
	n.fire(context.Background(), st)
	if len(out.sent) != 1 {
		t.Fatalf("second fire sent again: %d", len(out.sent))
	}
}

func TestMonthlySummarySkippedOnOtherDays(t *testing.T) {
	loc := time.UTC
	store := &fakeSettings{settings: Settings{Hour: 9, MonthlyDay: 15}}
	sessions := &fakeSessionSource{sessions: []session.Session{verifiedSession(1, 100)}}
	out := &fakeSender{}
	n := NewNotifier(store, sessions, &fakeCouponSource{}, out, loc)
	n.now = func() time.Time { return time.Date(2026, time.March, 2, 9, 0, 0, 0, loc) }

	st, _ := store.Load(context.Background())
	n.fire(context.Background(), st)
	if len(store.sent) != 0 {
		t.Fatalf("marked = %v", store.sent)
	}
}

func TestNextFire(t *testing.T) {
	loc := time.UTC
	n := NewNotifier(&fakeSettings{}, &fakeSessionSource{}, &fakeCouponSource{}, &fakeSender{}, loc)
	st := &Settings{Hour: 9, Minute: 30}

	n.now = func() time.Time { return time.Date(2026, time.March, 2, 8, 0, 0, 0, loc) }
	if got := n.nextFire(st); got.Day() != 2 || got.Hour() != 9 || got.Minute() != 30 {
		t.Fatalf("before fire time: %v", got)
	}

	n.now = func() time.Time { return time.Date(2026, time.March, 2, 10, 0, 0, 0, loc) }
	if got := n.nextFire(st); got.Day() != 3 {
		t.Fatalf("after fire time: %v", got)
	}
}

func TestReconfigurePersistsAndWakes(t *testing.T) {
	store := &fakeSettings{settings: Settings{Hour: 9, MonthlyDay: 1}}
	n := NewNotifier(store, &fakeSessionSource{}, &fakeCouponSource{}, &fakeSender{}, time.UTC)

	if err := n.Reconfigure(context.Background(), 18, 45, 5); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 || store.settings.Hour != 18 || store.settings.Minute != 45 || store.settings.MonthlyDay != 5 {
		t.Fatalf("settings = %+v", store.settings)
	}
	select {
	case <-n.wake:
	default:
		t.Fatal("expected a wake signal")
	}
}

func TestSleepUntilInterruptedByWake(t *testing.T) {
	n := NewNotifier(&fakeSettings{}, &fakeSessionSource{}, &fakeCouponSource{}, &fakeSender{}, time.UTC)
	n.wake <- struct{}{}
	if n.sleepUntil(context.Background(), time.Now().Add(time.Hour)) {
		t.Fatal("wake should interrupt the sleep")
	}
}
