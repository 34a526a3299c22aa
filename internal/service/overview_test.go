package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/cache"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/storage/memory"
)

func TestGetOverviewAggregatesAndCaches(t *testing.T) {
	store := memory.New()
	overviewCache := cache.New[domain.Overview](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	ledger := NewLedgerService(store, overviewCache, nil, metrics, logger)
	splits := NewSplitService(store, overviewCache, nil, metrics, logger)
	overview := NewOverviewService(store, store, overviewCache, 4, metrics, logger)
	ctx := context.Background()

	acct, err := ledger.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "50.00")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, _, err := ledger.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "10.00", Kind: domain.KindCredit,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, err := splits.CreateSplit(ctx, "user-1", CreateSplitInput{
		PayerName: "Anna", Amount: "30.00", Participants: []string{"Anna", "Ben"},
	}); err != nil {
		t.Fatalf("CreateSplit: %v", err)
	}

	got, err := overview.GetOverview(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	if len(got.Accounts) != 1 || len(got.RecentTransactions) != 1 || len(got.RecentExpenses) != 1 {
		t.Fatalf("overview sections = %d/%d/%d, want 1/1/1",
			len(got.Accounts), len(got.RecentTransactions), len(got.RecentExpenses))
	}
	if domain.FormatAmount(got.Accounts[0].Balance) != "60.00" {
		t.Errorf("balance = %s, want 60.00", domain.FormatAmount(got.Accounts[0].Balance))
	}

	// Second call is served from cache.
	if _, err := overview.GetOverview(ctx, "user-1"); err != nil {
		t.Fatalf("GetOverview (cached): %v", err)
	}
	snap := metrics.GetLedgerSnapshot()
	if snap.TransactionsPosted != 1 || snap.SplitsCreated != 1 {
		t.Errorf("snapshot = %+v, want 1 transaction and 1 split", snap)
	}
}

func TestMutationInvalidatesOverviewCache(t *testing.T) {
	store := memory.New()
	overviewCache := cache.New[domain.Overview](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	ledger := NewLedgerService(store, overviewCache, nil, metrics, logger)
	overview := NewOverviewService(store, store, overviewCache, 4, metrics, logger)
	ctx := context.Background()

	acct, err := ledger.CreateAccount(ctx, "user-1", "Main", domain.AccountTypeCurrent, "0.00")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := overview.GetOverview(ctx, "user-1"); err != nil {
		t.Fatalf("GetOverview: %v", err)
	}

	if _, _, err := ledger.AddTransaction(ctx, "user-1", acct.ID, AddTransactionInput{
		Amount: "5.00", Kind: domain.KindCredit,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	got, err := overview.GetOverview(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOverview after mutation: %v", err)
	}
	if domain.FormatAmount(got.Accounts[0].Balance) != "5.00" {
		t.Errorf("balance = %s, want fresh 5.00 (stale cache served)", domain.FormatAmount(got.Accounts[0].Balance))
	}
}
