package coupon

import (
	"testing"
	"time"
)

func TestRemainingNeverNegative(t *testing.T) {
	c := &Coupon{Value: 100, UsedValue: 120}
	if got := c.Remaining(); got != 0 {
		t.Fatalf("Remaining = %v, want 0", got)
	}
}

func TestApplyUsagePartialKeepsActive(t *testing.T) {
	c := &Coupon{Value: 100, UsedValue: 30, Status: StatusActive}
	c.ApplyUsage(20)
	if c.Remaining() != 50 {
		t.Fatalf("Remaining = %v, want 50", c.Remaining())
	}
	if c.Status != StatusActive {
		t.Fatalf("Status = %s, want active", c.Status)
	}
}

func TestApplyUsageFlipsExactlyAtZeroRemaining(t *testing.T) {
	c := &Coupon{Value: 100, UsedValue: 60, Status: StatusActive}
	c.ApplyUsage(40)
	if c.Status != StatusUsed {
		t.Fatalf("Status = %s, want used", c.Status)
	}
	if c.Remaining() != 0 {
		t.Fatalf("Remaining = %v, want 0", c.Remaining())
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in10 := now.AddDate(0, 0, 10)
	in40 := now.AddDate(0, 0, 40)
	past := now.AddDate(0, 0, -1)

	cases := []struct {
		name string
		exp  *time.Time
		want bool
	}{
		{"inside window", &in10, true},
		{"outside window", &in40, false},
		{"already expired", &past, false},
		{"no expiration", nil, false},
	}
	for _, tc := range cases {
		c := &Coupon{Expiration: tc.exp}
		if got := c.ExpiresWithin(now, 30); got != tc.want {
			t.Errorf("%s: ExpiresWithin = %v, want %v", tc.name, got, tc.want)
		}
	}
}
