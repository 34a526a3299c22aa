package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okarlsen/splitbook/internal/domain"
)

// InsertExpenseWithShares writes the expense and all shares in one
// database transaction so a failed share insert rolls everything back.
func (s *Store) InsertExpenseWithShares(ctx context.Context, exp *domain.Expense, shares []domain.ParticipantShare) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, payer_name, amount, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		exp.ID, exp.UserID, exp.PayerName, domain.FormatAmount(exp.Amount), exp.Description, exp.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	for _, sh := range shares {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participant_shares (id, expense_id, participant_name, share_amount, ordinal)
			VALUES ($1, $2, $3, $4, $5)`,
			sh.ID, sh.ExpenseID, sh.ParticipantName, domain.FormatAmount(sh.ShareAmount), sh.Position)
		if err != nil {
			return fmt.Errorf("insert share: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, payer_name, amount, description, occurred_at
		FROM expenses WHERE id = $1`, expenseID)

	exp, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return exp, err
}

func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]domain.ExpenseWithShares, error) {
	if limit < 0 {
		limit = 0
	}
	// NULLIF turns a zero limit into LIMIT NULL, i.e. no cap.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, payer_name, amount, description, occurred_at
		FROM expenses WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT NULLIF($2, 0)`, userID, limit)
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
		FROM participant_shares WHERE expense_id = $1 ORDER BY ordinal`, expenseID)
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
	set := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if patch.Amount != nil {
		args = append(args, domain.FormatAmount(*patch.Amount))
		set = append(set, fmt.Sprintf("amount = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	if patch.PayerName != nil {
		args = append(args, *patch.PayerName)
		set = append(set, fmt.Sprintf("payer_name = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, expenseID)
	query := fmt.Sprintf("UPDATE expenses SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

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
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	return nil
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
