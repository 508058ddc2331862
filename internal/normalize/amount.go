// Package normalize holds the pure, stateless coercions applied to raw
// extraction output before it becomes a ledger record.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoAmount signals absent data (blank, "nan", "none"). The row carrying
// it is skipped, never recorded as a zero-amount expense.
var ErrNoAmount = errors.New("no amount present")

// ParseAmount parses a locale-ambiguous decimal string. The sign is
// preserved; callers decide what to do with inflows.
//
// Separator inference:
//   - both ',' and '.' present: whichever appears last is the decimal
//     separator, the other is thousands and is stripped ("1.234,56" and
//     "1,234.56" both parse to 1234.56);
//   - only ',' present: decimal separator when at most two digits follow
//     the last one ("12,34" -> 12.34), thousands otherwise ("1,234" -> 1234);
//   - otherwise ',' is stripped and the rest parsed as-is.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "nan", "none":
		return decimal.Decimal{}, ErrNoAmount
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// comma is decimal, dot is thousands
			s = strings.ReplaceAll(s, ".", "")
			last := strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:last], ",", "") + "." + s[last+1:]
		} else {
			// dot is decimal, comma is thousands
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if len(s)-strings.LastIndex(s, ",")-1 <= 2 {
			s = strings.ReplaceAll(s, ".", "")
			last := strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:last], ",", "") + "." + s[last+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}

// AmountKey renders an amount the way the dedup key expects it: fixed two
// decimal places so 12.5 and 12.50 collide.
func AmountKey(d decimal.Decimal) string {
	return d.StringFixed(2)
}
