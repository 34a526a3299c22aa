package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/port"
)

// SplitService manages group expenses divided equally among named
// participants. Each share is the total divided by the participant count,
// rounded half-up to cents independently; the rounded shares may sum to a
// cent or two off the total and that discrepancy is accepted, not
// redistributed.
type SplitService struct {
	store     port.SplitStore
	cache     port.Cache[domain.Overview]
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSplitService creates a SplitService. publisher may be nil when event
// emission is disabled.
func NewSplitService(
	store port.SplitStore,
	cache port.Cache[domain.Overview],
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SplitService {
	return &SplitService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateSplitInput carries the fields for recording a split expense.
type CreateSplitInput struct {
	PayerName    string
	Amount       string
	Description  string
	Participants []string
	OccurredAt   *time.Time
}

// UpdateSplitInput is the partial-update form: nil fields stay untouched.
// The participant list cannot be changed after creation.
type UpdateSplitInput struct {
	Amount      *string
	Description *string
	PayerName   *string
}

// CreateSplit records an expense and divides it equally among the given
// participants. Names are trimmed and blank entries dropped; duplicates
// are kept as distinct shares. Participants whose name does not exactly
// match the payer's owe the payer their share.
func (s *SplitService) CreateSplit(ctx context.Context, userID string, in CreateSplitInput) (*domain.SplitResult, error) {
	ctx, span := tracer.Start(ctx, "SplitService.CreateSplit")
	defer span.End()

	payer := strings.TrimSpace(in.PayerName)
	if payer == "" {
		return nil, &domain.ErrValidation{Field: "payer_name", Message: "required"}
	}

	amount, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	var participants []string
	for _, p := range in.Participants {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	if len(participants) == 0 {
		return nil, &domain.ErrValidation{Field: "participants", Message: "at least one non-blank participant required"}
	}

	occurredAt := time.Now().UTC()
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}

	exp := &domain.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		PayerName:   payer,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		OccurredAt:  occurredAt,
	}

	share := amount.DivRound(decimal.NewFromInt(int64(len(participants))), 2)
	shares := make([]domain.ParticipantShare, len(participants))
	for i, name := range participants {
		shares[i] = domain.ParticipantShare{
			ID:              uuid.NewString(),
			ExpenseID:       exp.ID,
			ParticipantName: name,
			ShareAmount:     share,
			Position:        i,
		}
	}

	if err := s.store.InsertExpenseWithShares(ctx, exp, shares); err != nil {
		return nil, err
	}

	s.metrics.SplitsCreated.Inc()
	s.invalidateOverview(userID)
	s.publish(ctx, "expense.created", map[string]any{
		"expense_id":   exp.ID,
		"payer_name":   exp.PayerName,
		"amount":       domain.FormatAmount(exp.Amount),
		"participants": len(shares),
	})

	span.SetAttributes(attribute.Int("split.participants", len(shares)))
	s.logger.Info("split created",
		zap.String("expense_id", exp.ID),
		zap.String("payer", exp.PayerName),
		zap.String("amount", domain.FormatAmount(exp.Amount)),
		zap.Int("participants", len(shares)))

	return &domain.SplitResult{
		Expense:     *exp,
		Shares:      shares,
		OwedToPayer: owedToPayer(exp.PayerName, shares),
	}, nil
}

// ListSplits returns the user's split expenses with shares, newest-first.
// A limit of zero (or below) returns every expense.
func (s *SplitService) ListSplits(ctx context.Context, userID string, limit int) ([]domain.ExpenseWithShares, error) {
	ctx, span := tracer.Start(ctx, "SplitService.ListSplits")
	defer span.End()

	if limit < 0 {
		limit = 0
	}
	return s.store.ListExpenses(ctx, userID, limit)
}

// GetSplit returns one expense with its shares and derived obligations.
func (s *SplitService) GetSplit(ctx context.Context, userID, expenseID string) (*domain.SplitResult, error) {
	ctx, span := tracer.Start(ctx, "SplitService.GetSplit")
	defer span.End()

	exp, err := s.ownedExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}
	shares, err := s.store.ListShares(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	return &domain.SplitResult{
		Expense:     *exp,
		Shares:      shares,
		OwedToPayer: owedToPayer(exp.PayerName, shares),
	}, nil
}

// UpdateSplit applies a partial update to an expense. Changing the amount
// does not recompute the stored shares; they keep documenting the split
// as it was agreed.
func (s *SplitService) UpdateSplit(ctx context.Context, userID, expenseID string, in UpdateSplitInput) (*domain.SplitResult, error) {
	ctx, span := tracer.Start(ctx, "SplitService.UpdateSplit")
	defer span.End()

	if _, err := s.ownedExpense(ctx, userID, expenseID); err != nil {
		return nil, err
	}

	var patch domain.ExpensePatch
	if in.Amount != nil {
		amount, err := domain.ParsePositiveAmount(*in.Amount)
		if err != nil {
			return nil, err
		}
		patch.Amount = &amount
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		patch.Description = &desc
	}
	if in.PayerName != nil {
		payer := strings.TrimSpace(*in.PayerName)
		if payer == "" {
			return nil, &domain.ErrValidation{Field: "payer_name", Message: "must not be blank"}
		}
		patch.PayerName = &payer
	}
	if patch.Empty() {
		return nil, &domain.ErrValidation{Field: "body", Message: "no updatable fields given"}
	}

	if err := s.store.UpdateExpense(ctx, expenseID, patch); err != nil {
		return nil, err
	}

	s.invalidateOverview(userID)
	s.logger.Info("split updated", zap.String("expense_id", expenseID))

	return s.GetSplit(ctx, userID, expenseID)
}

// DeleteSplit removes an expense and all of its shares.
func (s *SplitService) DeleteSplit(ctx context.Context, userID, expenseID string) error {
	ctx, span := tracer.Start(ctx, "SplitService.DeleteSplit")
	defer span.End()

	if _, err := s.ownedExpense(ctx, userID, expenseID); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return err
	}

	s.invalidateOverview(userID)
	s.publish(ctx, "expense.deleted", map[string]any{"expense_id": expenseID})
	s.logger.Info("split deleted", zap.String("expense_id", expenseID))
	return nil
}

func (s *SplitService) ownedExpense(ctx context.Context, userID, expenseID string) (*domain.Expense, error) {
	exp, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if exp.UserID != userID {
		return nil, &domain.ErrForbidden{Action: "access expense"}
	}
	return exp, nil
}

func (s *SplitService) invalidateOverview(userID string) {
	s.cache.Delete(overviewCacheKey(userID))
}

func (s *SplitService) publish(ctx context.Context, eventType string, payload any) {
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

// owedToPayer derives the obligations: one entry per share whose
// participant name does not exactly equal the payer's. Matching is
// case-sensitive on purpose, "anna" and "Anna" are different people
// until the user says otherwise.
func owedToPayer(payerName string, shares []domain.ParticipantShare) []domain.Obligation {
	obligations := make([]domain.Obligation, 0, len(shares))
	for _, sh := range shares {
		if sh.ParticipantName == payerName {
			continue
		}
		obligations = append(obligations, domain.Obligation{
			ParticipantName: sh.ParticipantName,
			Amount:          sh.ShareAmount,
		})
	}
	return obligations
}
