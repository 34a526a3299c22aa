// Package sqlite implements the storage ports on SQLite via the pure-Go
// modernc driver. It is the default backend for single-household
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/port"
)

// Store is the SQLite-backed implementation of all storage ports.
type Store struct {
	db *sql.DB
}

var (
	_ port.LedgerStore = (*Store)(nil)
	_ port.SplitStore  = (*Store)(nil)
	_ port.AuthStore   = (*Store)(nil)
	_ port.Pinger      = (*Store)(nil)
)

// New opens (and creates if absent) the database file. Foreign keys are
// switched on so user deletion cascades.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping probes the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts the handle down.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---- accounts ----

func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, account_type, initial_balance, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.UserID, acct.Name, acct.AccountType,
		domain.FormatAmount(acct.InitialBalance), domain.FormatAmount(acct.Balance), acct.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, account_type, initial_balance, balance, created_at
		FROM accounts WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, account_type, initial_balance, balance, created_at
		FROM accounts WHERE id = ?`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return acct, err
}

func (s *Store) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`,
		domain.FormatAmount(balance), accountID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return nil
}

// ---- transactions ----

func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, kind, description, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, domain.FormatAmount(tx.Amount), tx.Kind, tx.Description, tx.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, kind, description, occurred_at
		FROM transactions WHERE id = ?`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return tx, err
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, kind, description, occurred_at
		FROM transactions WHERE account_id = ? ORDER BY occurred_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]domain.AccountTransaction, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats a negative LIMIT as unbounded
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.amount, t.kind, t.description, t.occurred_at, a.name
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = ?
		ORDER BY t.occurred_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.AccountTransaction
	for rows.Next() {
		var (
			at     domain.AccountTransaction
			amount string
		)
		if err := rows.Scan(&at.ID, &at.AccountID, &amount, &at.Kind, &at.Description, &at.OccurredAt, &at.AccountName); err != nil {
			return nil, err
		}
		if at.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		txs = append(txs, at)
	}
	return txs, rows.Err()
}

// ---- expenses ----

func (s *Store) InsertExpenseWithShares(ctx context.Context, exp *domain.Expense, shares []domain.ParticipantShare) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, payer_name, amount, description, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.UserID, exp.PayerName, domain.FormatAmount(exp.Amount), exp.Description, exp.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	for _, sh := range shares {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participant_shares (id, expense_id, participant_name, share_amount, ordinal)
			VALUES (?, ?, ?, ?, ?)`,
			sh.ID, sh.ExpenseID, sh.ParticipantName, domain.FormatAmount(sh.ShareAmount), sh.Position)
		if err != nil {
			return fmt.Errorf("insert share: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	exp, err := scanExpense(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, payer_name, amount, description, occurred_at
		FROM expenses WHERE id = ?`, expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return exp, err
}

func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]domain.ExpenseWithShares, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats a negative LIMIT as unbounded
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, payer_name, amount, description, occurred_at
		FROM expenses WHERE user_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpenseWithShares
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ExpenseWithShares{Expense: *exp})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		shares, err := s.ListShares(ctx, out[i].Expense.ID)
		if err != nil {
			return nil, err
		}
		out[i].Shares = shares
	}
	return out, nil
}

func (s *Store) ListShares(ctx context.Context, expenseID string) ([]domain.ParticipantShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expense_id, participant_name, share_amount, ordinal
		FROM participant_shares WHERE expense_id = ? ORDER BY ordinal`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var shares []domain.ParticipantShare
	for rows.Next() {
		var (
			sh     domain.ParticipantShare
			amount string
		)
		if err := rows.Scan(&sh.ID, &sh.ExpenseID, &sh.ParticipantName, &amount, &sh.Position); err != nil {
			return nil, err
		}
		if sh.ShareAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse share amount: %w", err)
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

func (s *Store) UpdateExpense(ctx context.Context, expenseID string, patch domain.ExpensePatch) error {
	var (
		set  []string
		args []any
	)
	if patch.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, domain.FormatAmount(*patch.Amount))
	}
	if patch.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.PayerName != nil {
		set = append(set, "payer_name = ?")
		args = append(args, *patch.PayerName)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, expenseID)
	query := fmt.Sprintf("UPDATE expenses SET %s WHERE id = ?", strings.Join(set, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, expenseID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return nil
}

// ---- users and tokens ----

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, failed_attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, failed_attempts, locked_until, created_at
		FROM users WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, failed_attempts, locked_until, created_at
		FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *Store) UpdateUserCredentials(ctx context.Context, userID string, updates map[string]any) error {
	var (
		set  []string
		args []any
	)
	for _, col := range []string{"password_hash", "failed_attempts", "locked_until"} {
		if v, ok := updates[col]; ok {
			set = append(set, col+" = ?")
			args = append(args, v)
		}
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(set, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return nil
}

func (s *Store) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, revoked)
		VALUES (?, ?, ?, FALSE)`,
		tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var rt domain.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, expires_at, revoked
		FROM refresh_tokens WHERE token_hash = ?`, tokenHash).
		Scan(&rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// ---- scan helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		acct             domain.Account
		initial, balance string
	)
	if err := row.Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.AccountType, &initial, &balance, &acct.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if acct.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("parse initial balance: %w", err)
	}
	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &acct, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		amount string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &amount, &tx.Kind, &tx.Description, &tx.OccurredAt); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &tx, nil
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var (
		exp    domain.Expense
		amount string
	)
	if err := row.Scan(&exp.ID, &exp.UserID, &exp.PayerName, &amount, &exp.Description, &exp.OccurredAt); err != nil {
		return nil, err
	}

	var err error
	if exp.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &exp, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user   domain.User
		locked sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.FailedAttempts, &locked, &user.CreatedAt); err != nil {
		return nil, err
	}
	if locked.Valid {
		user.LockedUntil = &locked.Time
	}
	return &user, nil
}
