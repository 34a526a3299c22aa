package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds.
const (
	KindCredit = "credit"
	KindDebit  = "debit"
)

// ValidKind reports whether k is one of the two transaction kinds.
func ValidKind(k string) bool {
	return k == KindCredit || k == KindDebit
}

// Transaction is a single credit or debit event posted against an account.
// Amount is always positive; the kind decides the direction. Transactions
// are immutable once created, except for deletion.
type Transaction struct {
	ID          string
	AccountID   string
	Amount      decimal.Decimal
	Kind        string
	Description string
	OccurredAt  time.Time
}

// Signed returns the amount with the sign implied by the kind:
// positive for credits, negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// AccountTransaction is a transaction enriched with its account's display
// name, used by the user-scoped listing (a join, not a stored field).
type AccountTransaction struct {
	Transaction
	AccountName string
}
