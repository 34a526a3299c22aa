package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a group cost paid by one party and divided equally among
// named participants. PayerName is free text — it does not have to match
// a registered user.
type Expense struct {
	ID          string
	UserID      string
	PayerName   string
	Amount      decimal.Decimal
	Description string
	OccurredAt  time.Time
}

// ParticipantShare is one participant's portion of a split expense.
// Duplicate names on the same expense are distinct shares; Position keeps
// the order the participants were given in.
type ParticipantShare struct {
	ID              string
	ExpenseID       string
	ParticipantName string
	ShareAmount     decimal.Decimal
	Position        int
}

// Obligation is a derived "owes the payer" statement: one row per
// participant whose name does not textually equal the payer's.
type Obligation struct {
	ParticipantName string
	Amount          decimal.Decimal
}

// SplitResult is what createSplit returns: the stored expense, every
// share, and the derived owed-to-payer list.
type SplitResult struct {
	Expense     Expense
	Shares      []ParticipantShare
	OwedToPayer []Obligation
}

// ExpenseWithShares pairs an expense with its full participant set for
// listing.
type ExpenseWithShares struct {
	Expense Expense
	Shares  []ParticipantShare
}

// ExpensePatch enumerates exactly the fields an existing split may change.
// The participant list is immutable after creation, and an amount change
// deliberately does not recompute shares.
type ExpensePatch struct {
	Amount      *decimal.Decimal
	Description *string
	PayerName   *string
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Amount == nil && p.Description == nil && p.PayerName == nil
}
