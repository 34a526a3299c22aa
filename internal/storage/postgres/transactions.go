package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okarlsen/splitbook/internal/domain"
)

func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, kind, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tx.ID, tx.AccountID, domain.FormatAmount(tx.Amount), tx.Kind, tx.Description, tx.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, kind, description, occurred_at
		FROM transactions WHERE id = $1`, transactionID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return tx, err
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, transactionID)
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
		FROM transactions WHERE account_id = $1 ORDER BY occurred_at DESC`, accountID)
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
	if limit < 0 {
		limit = 0
	}
	// NULLIF turns a zero limit into LIMIT NULL, i.e. no cap.
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.amount, t.kind, t.description, t.occurred_at, a.name
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		ORDER BY t.occurred_at DESC
		LIMIT NULLIF($2, 0)`, userID, limit)
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
