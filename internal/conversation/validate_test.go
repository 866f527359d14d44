package conversation

import (
	"errors"
	"testing"
	"time"

	"github.com/couponmaster/couponbot/internal/domain"
)

func validationMsg(t *testing.T, err error) string {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	return ve.Msg
}

func TestParseAmount(t *testing.T) {
	if v, err := parseAmount("cost", " 12.5 ", 1000); err != nil || v != 12.5 {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := parseAmount("cost", "abc", 1000); validationMsg(t, err) != msgAmountNotNumber {
		t.Fatalf("got %v", err)
	}
	if _, err := parseAmount("cost", "-1", 1000); validationMsg(t, err) != msgAmountNegative {
		t.Fatalf("got %v", err)
	}
	if _, err := parseAmount("cost", "1001", 1000); validationMsg(t, err) != msgAmountTooLarge {
		t.Fatalf("got %v", err)
	}
	// ParseFloat parses these, but NaN defeats every range check and an
	// infinite amount is nonsense either way.
	for _, input := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf"} {
		if _, err := parseAmount("cost", input, 1000); validationMsg(t, err) != msgAmountNotNumber {
			t.Fatalf("%q: got %v", input, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		input   string
		wantNil bool
		wantMsg string
	}{
		{"15/06/2026", false, ""},
		{"29/02/2024", false, ""}, // leap year
		{"none", true, ""},
		{"skip", true, ""},
		{"-", true, ""},
		{"2026-06-15", false, msgDateFormat},
		{"tomorrow", false, msgDateFormat},
		{"15/13/2026", false, msgDateMonthRange},
		{"15/00/2026", false, msgDateMonthRange},
		{"31/02/2026", false, msgDateDayInvalid},
		{"29/02/2026", false, msgDateDayInvalid}, // not a leap year
		{"00/06/2026", false, msgDateDayInvalid},
	}
	for _, tc := range cases {
		got, err := parseDate(tc.input)
		if tc.wantMsg != "" {
			if validationMsg(t, err) != tc.wantMsg {
				t.Errorf("%q: got %v, want %q", tc.input, err, tc.wantMsg)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.input, err)
			continue
		}
		if tc.wantNil != (got == nil) {
			t.Errorf("%q: got %v", tc.input, got)
		}
	}

	got, err := parseDate("01/02/2026")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("day/month order: got %v, want %v", got, want)
	}
}

func TestParseOptionalText(t *testing.T) {
	if got := parseOptionalText("  none "); got != nil {
		t.Fatalf("got %v", *got)
	}
	if got := parseOptionalText(""); got != nil {
		t.Fatalf("got %v", *got)
	}
	if got := parseOptionalText(" birthday gift "); got == nil || *got != "birthday gift" {
		t.Fatalf("got %v", got)
	}
}

func TestParseCVVAndCardExp(t *testing.T) {
	if got, err := parseCVV("123"); err != nil || got == nil || *got != "123" {
		t.Fatalf("got %v, %v", got, err)
	}
	if got, err := parseCVV("none"); err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := parseCVV("12"); err == nil {
		t.Fatal("want error for 2 digits")
	}
	if _, err := parseCVV("12345"); err == nil {
		t.Fatal("want error for 5 digits")
	}

	if got, err := parseCardExp("09/27"); err != nil || got == nil || *got != "09/27" {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := parseCardExp("13/27"); err == nil {
		t.Fatal("want error for month 13")
	}
	if _, err := parseCardExp("2027-09"); err == nil {
		t.Fatal("want error for wrong format")
	}
}

func TestParseYesNo(t *testing.T) {
	for _, input := range []string{"yes", "Y", " yep ", "ok"} {
		if got, err := parseYesNo(input); err != nil || !got {
			t.Errorf("%q: got %v, %v", input, got, err)
		}
	}
	for _, input := range []string{"no", "N", "nope"} {
		if got, err := parseYesNo(input); err != nil || got {
			t.Errorf("%q: got %v, %v", input, got, err)
		}
	}
	if _, err := parseYesNo("maybe"); err == nil {
		t.Fatal("want error")
	}
}

func TestCheckEconomics(t *testing.T) {
	if err := checkEconomics(&Draft{Cost: 0, Value: 10}); err != nil {
		t.Fatalf("free coupon: %v", err)
	}
	if err := checkEconomics(&Draft{Cost: 10, Value: 50}); err != nil {
		t.Fatalf("discounted coupon: %v", err)
	}
	if err := checkEconomics(&Draft{Cost: 50, Value: 50}); err == nil {
		t.Fatal("equal value should fail")
	}
	if err := checkEconomics(&Draft{Cost: 50, Value: 30}); err == nil {
		t.Fatal("value below cost should fail")
	}
}
