// Package memory implements the storage ports on plain maps. It backs
// unit tests and throwaway deployments; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/port"
)

// Store is the map-backed implementation of all storage ports.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	refreshTokens map[string]domain.RefreshToken
	accounts      map[string]domain.Account
	transactions  map[string]domain.Transaction
	expenses      map[string]domain.Expense
	shares        map[string][]domain.ParticipantShare
}

var (
	_ port.LedgerStore = (*Store)(nil)
	_ port.SplitStore  = (*Store)(nil)
	_ port.AuthStore   = (*Store)(nil)
	_ port.Pinger      = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		refreshTokens: make(map[string]domain.RefreshToken),
		accounts:      make(map[string]domain.Account),
		transactions:  make(map[string]domain.Transaction),
		expenses:      make(map[string]domain.Expense),
		shares:        make(map[string][]domain.ParticipantShare),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// ---- accounts ----

func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[acct.ID] = *acct
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &a, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	a.Balance = balance
	s.accounts[accountID] = a
	return nil
}

// ---- transactions ----

func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return &tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[transactionID]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	delete(s.transactions, transactionID)
	return nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]domain.AccountTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AccountTransaction
	for _, tx := range s.transactions {
		acct, ok := s.accounts[tx.AccountID]
		if !ok || acct.UserID != userID {
			continue
		}
		out = append(out, domain.AccountTransaction{Transaction: tx, AccountName: acct.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- expenses ----

func (s *Store) InsertExpenseWithShares(ctx context.Context, exp *domain.Expense, shares []domain.ParticipantShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses[exp.ID] = *exp
	s.shares[exp.ID] = append([]domain.ParticipantShare(nil), shares...)
	return nil
}

func (s *Store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.expenses[expenseID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return &exp, nil
}

func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]domain.ExpenseWithShares, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ExpenseWithShares
	for _, exp := range s.expenses {
		if exp.UserID != userID {
			continue
		}
		out = append(out, domain.ExpenseWithShares{
			Expense: exp,
			Shares:  append([]domain.ParticipantShare(nil), s.shares[exp.ID]...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Expense.OccurredAt.After(out[j].Expense.OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListShares(ctx context.Context, expenseID string) ([]domain.ParticipantShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.ParticipantShare(nil), s.shares[expenseID]...), nil
}

func (s *Store) UpdateExpense(ctx context.Context, expenseID string, patch domain.ExpensePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expenses[expenseID]
	if !ok {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	if patch.Amount != nil {
		exp.Amount = *patch.Amount
	}
	if patch.Description != nil {
		exp.Description = *patch.Description
	}
	if patch.PayerName != nil {
		exp.PayerName = *patch.PayerName
	}
	s.expenses[expenseID] = exp
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[expenseID]; !ok {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	delete(s.expenses, expenseID)
	delete(s.shares, expenseID)
	return nil
}

// ---- users and tokens ----

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateUserCredentials(ctx context.Context, userID string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	if v, ok := updates["password_hash"]; ok {
		u.PasswordHash = v.(string)
	}
	if v, ok := updates["failed_attempts"]; ok {
		u.FailedAttempts = v.(int)
	}
	if v, ok := updates["locked_until"]; ok {
		if v == nil {
			u.LockedUntil = nil
		} else if ts, err := time.Parse(time.RFC3339, v.(string)); err == nil {
			u.LockedUntil = &ts
		}
	}
	s.users[userID] = u
	return nil
}

// DeleteUser removes the user and cascades to accounts, transactions,
// expenses, shares and refresh tokens, mirroring the SQL foreign keys.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	delete(s.users, userID)

	for id, a := range s.accounts {
		if a.UserID != userID {
			continue
		}
		delete(s.accounts, id)
		for txID, tx := range s.transactions {
			if tx.AccountID == id {
				delete(s.transactions, txID)
			}
		}
	}
	for id, exp := range s.expenses {
		if exp.UserID == userID {
			delete(s.expenses, id)
			delete(s.shares, id)
		}
	}
	for hash, rt := range s.refreshTokens {
		if rt.UserID == userID {
			delete(s.refreshTokens, hash)
		}
	}
	return nil
}

func (s *Store) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[tokenHash] = domain.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.refreshTokens[tokenHash]
	if !ok {
		return nil, nil
	}
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.refreshTokens[tokenHash]; ok {
		rt.Revoked = true
		s.refreshTokens[tokenHash] = rt
	}
	return nil
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, rt := range s.refreshTokens {
		if rt.UserID == userID {
			rt.Revoked = true
			s.refreshTokens[hash] = rt
		}
	}
	return nil
}
