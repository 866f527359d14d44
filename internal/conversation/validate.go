package conversation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couponmaster/couponbot/internal/domain"
)

var (
	dateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	cardExpRe = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	cvvRe     = regexp.MustCompile(`^\d{3,4}$`)
)

var emptySentinels = map[string]struct{}{
	"none":  {},
	"no":    {},
	"skip":  {},
	"empty": {},
	"-":     {},
}

func isEmptySentinel(text string) bool {
	_, ok := emptySentinels[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// parseAmount accepts a non-negative number up to the configured ceiling.
func parseAmount(field, input string, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// ParseFloat accepts "NaN" and "Inf", and NaN slips through every
		// range comparison below, so non-finite input is a format error.
		return 0, &domain.ValidationError{Field: field, Msg: msgAmountNotNumber}
	}
	if v < 0 {
		return 0, &domain.ValidationError{Field: field, Msg: msgAmountNegative}
	}
	if max > 0 && v > max {
		return 0, &domain.ValidationError{Field: field, Msg: msgAmountTooLarge}
	}
	return v, nil
}

// parseDate parses DD/MM/YYYY. Empty sentinels map to nil. A month outside
// 1..12 and a day that does not exist in the month produce distinct messages
// from plain format errors.
func parseDate(input string) (*time.Time, error) {
	text := strings.TrimSpace(input)
	if isEmptySentinel(text) {
		return nil, nil
	}
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &domain.ValidationError{Field: "expiration", Msg: msgDateFormat}
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return nil, &domain.ValidationError{Field: "expiration", Msg: msgDateMonthRange}
	}
	if day < 1 || day > daysIn(month, year) {
		return nil, &domain.ValidationError{Field: "expiration", Msg: msgDateDayInvalid}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t, nil
}

func daysIn(month, year int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseOptionalText maps empty sentinels to nil, anything else to the
// trimmed text.
func parseOptionalText(input string) *string {
	text := strings.TrimSpace(input)
	if text == "" || isEmptySentinel(text) {
		return nil
	}
	return &text
}

func parseCVV(input string) (*string, error) {
	text := strings.TrimSpace(input)
	if isEmptySentinel(text) {
		return nil, nil
	}
	if !cvvRe.MatchString(text) {
		return nil, &domain.ValidationError{Field: "cvv", Msg: msgCVVFormat}
	}
	return &text, nil
}

func parseCardExp(input string) (*string, error) {
	text := strings.TrimSpace(input)
	if isEmptySentinel(text) {
		return nil, nil
	}
	m := cardExpRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &domain.ValidationError{Field: "card expiry", Msg: msgCardExpFormat}
	}
	month, _ := strconv.Atoi(m[1])
	if month < 1 || month > 12 {
		return nil, &domain.ValidationError{Field: "card expiry", Msg: msgCardExpFormat}
	}
	return &text, nil
}

// parseYesNo accepts a few spellings of yes/no.
func parseYesNo(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y", "yep", "sure", "ok":
		return true, nil
	case "no", "n", "nope":
		return false, nil
	}
	return false, &domain.ValidationError{Field: "answer", Msg: msgYesNo}
}

func errCompanyEmpty() error {
	return &domain.ValidationError{Field: "company", Msg: msgCompanyEmpty}
}

func errCodeEmpty() error {
	return &domain.ValidationError{Field: "code", Msg: msgCodeEmpty}
}

func errValueZero() error {
	return &domain.ValidationError{Field: "value", Msg: msgValueZero}
}

// checkEconomics enforces value > cost whenever the coupon cost anything.
func checkEconomics(d *Draft) error {
	if d.Cost > 0 && d.Value <= d.Cost {
		return &domain.ValidationError{Field: "value", Msg: msgNoDiscount}
	}
	return nil
}
