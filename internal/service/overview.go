package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/infra/resilience"
	"github.com/okarlsen/splitbook/internal/port"
)

const overviewRecentLimit = 10

// OverviewService aggregates accounts, recent transactions and recent
// split expenses into one dashboard view. Results are cached per user
// with a short TTL; every ledger or split mutation invalidates the entry.
type OverviewService struct {
	ledger   port.LedgerStore
	splits   port.SplitStore
	cache    port.Cache[domain.Overview]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewOverviewService creates an OverviewService. maxConcurrency bounds
// how many overview rebuilds may hit storage at once; cache hits bypass
// the bulkhead.
func NewOverviewService(
	ledger port.LedgerStore,
	splits port.SplitStore,
	cache port.Cache[domain.Overview],
	maxConcurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OverviewService {
	return &OverviewService{
		ledger:   ledger,
		splits:   splits,
		cache:    cache,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		metrics:  metrics,
		logger:   logger,
	}
}

// GetOverview returns the user's dashboard, fetching the three sections
// concurrently on a cache miss.
func (s *OverviewService) GetOverview(ctx context.Context, userID string) (*domain.Overview, error) {
	ctx, span := tracer.Start(ctx, "OverviewService.GetOverview")
	defer span.End()

	key := overviewCacheKey(userID)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.WithLabelValues("overview").Inc()
		return &cached, nil
	}
	s.metrics.CacheMisses.WithLabelValues("overview").Inc()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "overview"}
	}
	defer s.bulkhead.Release()

	var overview domain.Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.ledger.ListAccounts(gctx, userID)
		if err != nil {
			return err
		}
		overview.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		txs, err := s.ledger.ListTransactionsByUser(gctx, userID, overviewRecentLimit)
		if err != nil {
			return err
		}
		overview.RecentTransactions = txs
		return nil
	})
	g.Go(func() error {
		expenses, err := s.splits.ListExpenses(gctx, userID, overviewRecentLimit)
		if err != nil {
			return err
		}
		overview.RecentExpenses = expenses
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("overview aggregation failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	s.cache.Set(key, overview)
	return &overview, nil
}

func overviewCacheKey(userID string) string {
	return "overview:" + userID
}
