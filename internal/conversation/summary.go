package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/fuzzy"
)

func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimSuffix(s, "00")
	s = strings.TrimSuffix(s, ".")
	return s
}

// renderDraftSummary shows what will be saved: required fields always,
// optional fields either with their value or collected under "Not set".
func renderDraftSummary(d *Draft, origin Origin) string {
	var b strings.Builder
	if origin == OriginAI {
		b.WriteString("Here's what I understood:\n")
	} else {
		b.WriteString("Here's the coupon:\n")
	}
	fmt.Fprintf(&b, "Company: %s\n", d.Company)
	fmt.Fprintf(&b, "Code: %s\n", d.Code)
	fmt.Fprintf(&b, "Cost: %s\n", formatMoney(d.Cost))
	fmt.Fprintf(&b, "Value: %s\n", formatMoney(d.Value))
	if d.OneTime {
		b.WriteString("One-time: yes\n")
	}

	var notSet []string
	if d.Expiration != nil {
		fmt.Fprintf(&b, "Expires: %s\n", d.Expiration.Format("02/01/2006"))
	} else {
		notSet = append(notSet, "expiration")
	}
	if d.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *d.Description)
	} else {
		notSet = append(notSet, "description")
	}
	if d.Source != nil {
		fmt.Fprintf(&b, "Source: %s\n", *d.Source)
	} else {
		notSet = append(notSet, "source")
	}
	if d.CVV != nil {
		b.WriteString("CVV: saved\n")
	}
	if d.CardExp != nil {
		fmt.Fprintf(&b, "Card expiry: %s\n", *d.CardExp)
	}
	if d.Purpose != nil {
		fmt.Fprintf(&b, "Purpose: %s\n", *d.Purpose)
	}
	if len(notSet) > 0 {
		fmt.Fprintf(&b, "Not set: %s\n", strings.Join(notSet, ", "))
	}

	b.WriteString("\n")
	b.WriteString(promptConfirm)
	b.WriteString(" Answer 'no' to change a field.")
	return b.String()
}

// renderCouponLine is one list entry with the remaining value.
func renderCouponLine(c *coupon.Coupon) string {
	line := fmt.Sprintf("%s - code %s, %s of %s left", c.Company, c.Code, formatMoney(c.Remaining()), formatMoney(c.Value))
	if c.Expiration != nil {
		line += ", expires " + c.Expiration.Format("02/01/2006")
	}
	return line
}

// renderCouponList renders "my coupons" with regular and one-time sections.
func renderCouponList(cs []coupon.Coupon) string {
	if len(cs) == 0 {
		return msgNoCoupons
	}
	var regular, oneTime []string
	for i := range cs {
		line := "• " + renderCouponLine(&cs[i])
		if cs[i].OneTime {
			oneTime = append(oneTime, line)
		} else {
			regular = append(regular, line)
		}
	}
	var b strings.Builder
	if len(regular) > 0 {
		b.WriteString("Your coupons:\n")
		b.WriteString(strings.Join(regular, "\n"))
	}
	if len(oneTime) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("One-time coupons:\n")
		b.WriteString(strings.Join(oneTime, "\n"))
	}
	return b.String()
}

// renderNumberedCoupons renders a pick list for usage/delete flows.
func renderNumberedCoupons(header string, cs []coupon.Coupon) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i := range cs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, renderCouponLine(&cs[i]))
	}
	b.WriteString("\nReply with a number.")
	return b.String()
}

// renderCompanySuggestions offers near matches for a typed company name, with
// option 0 keeping the text as typed.
func renderCompanySuggestions(typed string, matches []fuzzy.Match) string {
	var b strings.Builder
	b.WriteString("Did you mean one of these?\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Candidate)
	}
	fmt.Fprintf(&b, "0. None of these, %q is a new company\n", strings.TrimSpace(typed))
	b.WriteString("\nReply with a number.")
	return b.String()
}

// renderNumberedCompanies renders the company pick list.
func renderNumberedCompanies(header string, companies []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, name := range companies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	b.WriteString("\nReply with a number.")
	return b.String()
}
