package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/cache"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/storage/memory"
)

func newLedgerService(t *testing.T) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewLedgerService(
		store,
		cache.New[domain.Overview](time.Minute),
		nil,
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return svc, store
}

func TestCreateAccountDefaultsAndValidation(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Household", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if got := domain.FormatAmount(acct.Balance); got != "0.00" {
		t.Errorf("empty initial balance = %s, want 0.00", got)
	}

	var vErr *domain.ErrValidation
	if _, err := svc.CreateAccount(ctx, "user-1", "  ", domain.AccountTypeCurrent, ""); !errors.As(err, &vErr) {
		t.Errorf("blank name: error = %v, want *ErrValidation", err)
	}
	if _, err := svc.CreateAccount(ctx, "user-1", "X", "checking", ""); !errors.As(err, &vErr) {
		t.Errorf("bad type: error = %v, want *ErrValidation", err)
	}
	if _, err := svc.CreateAccount(ctx, "user-1", "X", domain.AccountTypeSavings, "-5.00"); !errors.As(err, &vErr) {
		t.Errorf("negative initial: error = %v, want *ErrValidation", err)
	}
}

func TestAddTransactionUpdatesBalance(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "100.00")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	_, balance, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "40.50", Kind: domain.KindCredit,
	})
	if err != nil {
		t.Fatalf("AddTransaction credit: %v", err)
	}
	if got := domain.FormatAmount(balance); got != "140.50" {
		t.Errorf("balance after credit = %s, want 140.50", got)
	}

	_, balance, err = svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "0.51", Kind: domain.KindDebit, Description: "coffee",
	})
	if err != nil {
		t.Fatalf("AddTransaction debit: %v", err)
	}
	if got := domain.FormatAmount(balance); got != "139.99" {
		t.Errorf("balance after debit = %s, want 139.99", got)
	}

	// Debits may push the balance negative; the ledger records, it does
	// not police overdrafts.
	_, balance, err = svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "200.00", Kind: domain.KindDebit,
	})
	if err != nil {
		t.Fatalf("AddTransaction overdraft: %v", err)
	}
	if got := domain.FormatAmount(balance); got != "-60.01" {
		t.Errorf("balance after overdraft = %s, want -60.01", got)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	var vErr *domain.ErrValidation
	cases := []AddTransactionInput{
		{Amount: "0.00", Kind: domain.KindCredit},
		{Amount: "-1.00", Kind: domain.KindCredit},
		{Amount: "1.005", Kind: domain.KindCredit},
		{Amount: "1.00", Kind: "transfer"},
		{Amount: "abc", Kind: domain.KindDebit},
	}
	for _, in := range cases {
		if _, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, in); !errors.As(err, &vErr) {
			t.Errorf("input %+v: error = %v, want *ErrValidation", in, err)
		}
	}
}

func TestDeleteTransactionRecomputesBalance(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "10.00")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "5.00", Kind: domain.KindDebit,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	balance, err := svc.DeleteTransaction(ctx, "user-1", tx.ID)
	if err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if got := domain.FormatAmount(balance); got != "10.00" {
		t.Errorf("balance after delete = %s, want restored 10.00", got)
	}

	var nfErr *domain.ErrNotFound
	if _, err := svc.DeleteTransaction(ctx, "user-1", tx.ID); !errors.As(err, &nfErr) {
		t.Errorf("second delete: error = %v, want *ErrNotFound", err)
	}
}

func TestLedgerOwnershipEnforced(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "1.00", Kind: domain.KindCredit,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	var fErr *domain.ErrForbidden
	if _, err := svc.GetAccount(ctx, "user-2", acct.ID); !errors.As(err, &fErr) {
		t.Errorf("GetAccount as other user: error = %v, want *ErrForbidden", err)
	}
	if _, _, err := svc.AddTransaction(ctx, "user-2", acct.ID, AddTransactionInput{
		Amount: "1.00", Kind: domain.KindCredit,
	}); !errors.As(err, &fErr) {
		t.Errorf("AddTransaction as other user: error = %v, want *ErrForbidden", err)
	}
	if _, err := svc.DeleteTransaction(ctx, "user-2", tx.ID); !errors.As(err, &fErr) {
		t.Errorf("DeleteTransaction as other user: error = %v, want *ErrForbidden", err)
	}
	if _, err := svc.ListTransactions(ctx, "user-2", acct.ID); !errors.As(err, &fErr) {
		t.Errorf("ListTransactions as other user: error = %v, want *ErrForbidden", err)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	if _, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "1.00", Kind: domain.KindCredit, OccurredAt: &older,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "2.00", Kind: domain.KindCredit, OccurredAt: &newer,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	txs, err := svc.ListTransactions(ctx, "user-1", acct.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}
	if domain.FormatAmount(txs[0].Amount) != "2.00" {
		t.Errorf("first transaction = %s, want newest 2.00", domain.FormatAmount(txs[0].Amount))
	}
}

func TestListUserTransactionsJoinsAccountName(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Household", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "3.00", Kind: domain.KindCredit,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	txs, err := svc.ListUserTransactions(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("ListUserTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].AccountName != "Household" {
		t.Errorf("account name = %q, want Household", txs[0].AccountName)
	}
}

// A zero limit returns the full history; a positive limit caps it at the
// newest entries. No default cap hides old transactions.
func TestListUserTransactionsLimitSemantics(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	const total = 55
	for i := 0; i < total; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		if _, _, err := svc.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
			Amount: "1.00", Kind: domain.KindCredit, OccurredAt: &at,
		}); err != nil {
			t.Fatalf("AddTransaction #%d: %v", i, err)
		}
	}

	txs, err := svc.ListUserTransactions(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("ListUserTransactions: %v", err)
	}
	if len(txs) != total {
		t.Fatalf("unlimited list = %d transactions, want %d", len(txs), total)
	}

	capped, err := svc.ListUserTransactions(ctx, "user-1", 5)
	if err != nil {
		t.Fatalf("ListUserTransactions with limit: %v", err)
	}
	if len(capped) != 5 {
		t.Fatalf("capped list = %d transactions, want 5", len(capped))
	}
	if !capped[0].OccurredAt.After(capped[4].OccurredAt) {
		t.Error("capped list is not newest-first")
	}
}
