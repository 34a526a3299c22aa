// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/okarlsen/splitbook/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerStore defines all data operations for accounts and their
// transactions. Implemented by the postgres, sqlite and memory backends.
type LedgerStore interface {
	// Accounts
	CreateAccount(ctx context.Context, acct *domain.Account) error
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	// Transactions
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	// ListTransactionsByAccount returns transactions newest-first by
	// occurred-at.
	ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error)
	// ListTransactionsByUser returns the user's transactions across all
	// accounts, newest-first, each enriched with its account display name.
	// A positive limit caps the result; zero or below returns everything.
	ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]domain.AccountTransaction, error)
}

// SplitStore defines all data operations for split expenses.
type SplitStore interface {
	// InsertExpenseWithShares persists the expense and every share in one
	// storage transaction: an invalid split never leaves a partial write.
	InsertExpenseWithShares(ctx context.Context, exp *domain.Expense, shares []domain.ParticipantShare) error
	GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error)
	// ListExpenses returns the user's expenses with their full participant
	// sets, newest-first by occurred-at. A positive limit caps the result;
	// zero or below returns everything.
	ListExpenses(ctx context.Context, userID string, limit int) ([]domain.ExpenseWithShares, error)
	ListShares(ctx context.Context, expenseID string) ([]domain.ParticipantShare, error)
	UpdateExpense(ctx context.Context, expenseID string, patch domain.ExpensePatch) error
	// DeleteExpense cascades to the expense's participant shares.
	DeleteExpense(ctx context.Context, expenseID string) error
}

// AuthStore defines all data operations for the authentication system.
type AuthStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	// GetUserByEmail returns (nil, nil) when no such user exists, so the
	// login path can answer with a uniform "invalid credentials".
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserCredentials(ctx context.Context, userID string, updates map[string]any) error
	// DeleteUser cascades to the user's accounts, transactions, expenses
	// and shares.
	DeleteUser(ctx context.Context, userID string) error

	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// GetRefreshToken returns (nil, nil) when the hash is unknown.
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// Pinger lets the health endpoint probe the storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// EventPublisher emits domain events to an external broker. Publishing is
// best-effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
