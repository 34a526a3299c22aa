package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types supported by the ledger.
const (
	AccountTypeSavings = "savings"
	AccountTypeCurrent = "current"
	AccountTypeCredit  = "credit"
)

// ValidAccountType reports whether t is one of the enumerated account types.
func ValidAccountType(t string) bool {
	switch t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeCredit:
		return true
	}
	return false
}

// Account is a user-owned named balance bucket. Balance is derived from the
// transaction history (initial balance + credits − debits) and re-persisted
// on every mutation; it is never edited directly.
type Account struct {
	ID             string
	UserID         string
	Name           string
	AccountType    string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	CreatedAt      time.Time
}
