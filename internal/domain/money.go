// Package domain holds the core entities of splitbook: users, accounts,
// ledger transactions, split expenses and their participant shares.
//
// All monetary amounts are exact decimals (shopspring/decimal) and are
// serialized as text with exactly two fractional digits. A float64 never
// carries money anywhere in this codebase.
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary amount from its text form.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects anything with more than two fractional digits, a sign prefix,
// or a non-numeric payload. The zero-tolerance on extra digits is what
// keeps stored balances re-parseable without silent precision loss.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "required"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "must not carry a sign"}
	}
	// Exponent notation ("1e-3") would sneak sub-cent precision past the
	// fractional-digit check below, so it is rejected outright.
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "exponent notation is not accepted"}
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 2 {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "at most 2 fractional digits"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "not a valid decimal"}
	}
	if d.Exponent() < -2 {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "at most 2 fractional digits"}
	}
	return d, nil
}

// ParsePositiveAmount is ParseAmount plus the > 0 check used by every
// write path (transactions, expense totals).
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	return d, nil
}

// FormatAmount renders an amount as text with exactly two fractional
// digits, the only representation that crosses the wire or hits storage.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
