// Package money holds kobo arithmetic and Naira display helpers. Amounts are
// int64 kobo everywhere; decimals appear only at the display boundary.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// KoboPerNaira is the minor-unit scale of the Naira.
const KoboPerNaira = 100

// MaxBps is 100% expressed in basis points.
const MaxBps = 10000

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidBps     = errors.New("basis points must be between 0 and 10000")
	ErrOverflow       = errors.New("amount overflows int64")
	ErrPrecision      = errors.New("amount has more than two decimal places")
)

// Split returns the fee and net for amount at bps, rounding the fee down so
// fee+net always equals amount.
func Split(amount, bps int64) (fee, net int64, err error) {
	if amount < 0 {
		return 0, 0, ErrNegativeAmount
	}
	if bps < 0 || bps > MaxBps {
		return 0, 0, ErrInvalidBps
	}
	if bps != 0 && amount > math.MaxInt64/bps {
		return 0, 0, ErrOverflow
	}
	fee = amount * bps / MaxBps
	return fee, amount - fee, nil
}

// FormatNaira renders kobo as a Naira string, e.g. 540000 -> "₦5,400.00".
func FormatNaira(kobo int64) string {
	d := decimal.New(kobo, -2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s₦%s.%s", sign, groupThousands(whole), frac)
}

// ParseNaira converts a Naira amount such as "54.5" into kobo.
func ParseNaira(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(value, ",", "")))
	if err != nil {
		return 0, fmt.Errorf("parse naira amount: %w", err)
	}
	kobo := d.Shift(2)
	if !kobo.Equal(kobo.Truncate(0)) {
		return 0, ErrPrecision
	}
	if kobo.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || kobo.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrOverflow
	}
	return kobo.IntPart(), nil
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
