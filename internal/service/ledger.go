// Package service implements the business logic of splitbook on top of
// the storage ports. All balance math is exact decimal arithmetic.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/port"
)

var tracer = otel.Tracer("splitbook/service")

// LedgerService manages accounts and their transactions. An account's
// balance is always recomputed from the full transaction history after a
// mutation, never adjusted incrementally, so a lost update can at worst
// be stale, not wrong.
type LedgerService struct {
	store     port.LedgerStore
	cache     port.Cache[domain.Overview]
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewLedgerService creates a LedgerService. publisher may be nil when
// event emission is disabled.
func NewLedgerService(
	store port.LedgerStore,
	cache port.Cache[domain.Overview],
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddTransactionInput carries the fields for posting a transaction.
// Amount is the textual decimal form; OccurredAt defaults to now.
type AddTransactionInput struct {
	Amount      string
	Kind        string
	Description string
	OccurredAt  *time.Time
}

// CreateAccount opens a named account for the user. The initial balance
// may be zero or empty (treated as zero) but never negative.
func (s *LedgerService) CreateAccount(ctx context.Context, userID, name, accountType, initialBalance string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateAccount")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !domain.ValidAccountType(accountType) {
		return nil, &domain.ErrValidation{Field: "account_type", Message: "must be savings, current or credit"}
	}

	initial := decimal.Zero
	if strings.TrimSpace(initialBalance) != "" {
		var err error
		initial, err = domain.ParseAmount(initialBalance)
		if err != nil {
			return nil, err
		}
	}

	acct := &domain.Account{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		AccountType:    accountType,
		InitialBalance: initial,
		Balance:        initial,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.invalidateOverview(userID)
	s.logger.Info("account created",
		zap.String("account_id", acct.ID),
		zap.String("user_id", userID),
		zap.String("type", accountType))
	return acct, nil
}

// ListAccounts returns all of the user's accounts.
func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	return s.store.ListAccounts(ctx, userID)
}

// GetAccount returns one account after verifying ownership.
func (s *LedgerService) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()

	return s.ownedAccount(ctx, userID, accountID)
}

// AddTransaction posts a credit or debit against the account and returns
// the stored transaction together with the account's new balance.
func (s *LedgerService) AddTransaction(ctx context.Context, userID, accountID string, in AddTransactionInput) (*domain.Transaction, decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.AddTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	amount, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !domain.ValidKind(in.Kind) {
		return nil, decimal.Zero, &domain.ErrValidation{Field: "kind", Message: "must be credit or debit"}
	}

	acct, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	occurredAt := time.Now().UTC()
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		Amount:      amount,
		Kind:        in.Kind,
		Description: strings.TrimSpace(in.Description),
		OccurredAt:  occurredAt,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := s.recomputeBalance(ctx, acct)
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.metrics.TransactionsPosted.WithLabelValues(tx.Kind).Inc()
	s.invalidateOverview(userID)
	s.publish(ctx, "transaction.posted", map[string]any{
		"transaction_id": tx.ID,
		"account_id":     acct.ID,
		"kind":           tx.Kind,
		"amount":         domain.FormatAmount(tx.Amount),
	})

	s.logger.Info("transaction posted",
		zap.String("transaction_id", tx.ID),
		zap.String("account_id", acct.ID),
		zap.String("kind", tx.Kind),
		zap.String("amount", domain.FormatAmount(tx.Amount)),
		zap.String("balance", domain.FormatAmount(balance)))
	return tx, balance, nil
}

// DeleteTransaction removes a transaction and returns the owning
// account's recomputed balance.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, transactionID string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.DeleteTransaction")
	defer span.End()

	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return decimal.Zero, err
	}

	acct, err := s.ownedAccount(ctx, userID, tx.AccountID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.store.DeleteTransaction(ctx, transactionID); err != nil {
		return decimal.Zero, err
	}

	balance, err := s.recomputeBalance(ctx, acct)
	if err != nil {
		return decimal.Zero, err
	}

	s.invalidateOverview(userID)
	s.publish(ctx, "transaction.deleted", map[string]any{
		"transaction_id": transactionID,
		"account_id":     acct.ID,
	})

	s.logger.Info("transaction deleted",
		zap.String("transaction_id", transactionID),
		zap.String("account_id", acct.ID),
		zap.String("balance", domain.FormatAmount(balance)))
	return balance, nil
}

// ListTransactions returns an account's transactions newest-first after
// verifying ownership.
func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()

	if _, err := s.ownedAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByAccount(ctx, accountID)
}

// ListUserTransactions returns the user's transactions across all accounts
// newest-first, each tagged with its account name. A limit of zero (or
// below) returns the full history.
func (s *LedgerService) ListUserTransactions(ctx context.Context, userID string, limit int) ([]domain.AccountTransaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListUserTransactions")
	defer span.End()

	if limit < 0 {
		limit = 0
	}
	return s.store.ListTransactionsByUser(ctx, userID, limit)
}

// ownedAccount loads an account and enforces that userID owns it. The
// forbidden error carries no hint that the account exists.
func (s *LedgerService) ownedAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.UserID != userID {
		return nil, &domain.ErrForbidden{Action: "access account"}
	}
	return acct, nil
}

// recomputeBalance folds the full transaction history onto the initial
// balance and persists the result.
func (s *LedgerService) recomputeBalance(ctx context.Context, acct *domain.Account) (decimal.Decimal, error) {
	txs, err := s.store.ListTransactionsByAccount(ctx, acct.ID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := acct.InitialBalance
	for _, tx := range txs {
		balance = balance.Add(tx.Signed())
	}

	if err := s.store.UpdateAccountBalance(ctx, acct.ID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *LedgerService) invalidateOverview(userID string) {
	s.cache.Delete(overviewCacheKey(userID))
}

// publish emits a domain event best-effort. Broker trouble is logged and
// never fails the request.
func (s *LedgerService) publish(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.metrics.ExternalErrors.WithLabelValues("kafka").Inc()
		s.logger.Warn("event publish failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
