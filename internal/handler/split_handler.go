package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/service"
)

// SplitHandler exposes the split-expense engine.
type SplitHandler struct {
	split  *service.SplitService
	logger *zap.Logger
}

// NewSplitHandler creates a SplitHandler.
func NewSplitHandler(split *service.SplitService, logger *zap.Logger) *SplitHandler {
	return &SplitHandler{split: split, logger: logger}
}

type createSplitRequest struct {
	PayerName    string     `json:"payer_name"`
	Amount       string     `json:"amount"`
	Description  string     `json:"description"`
	Participants []string   `json:"participants"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

type updateSplitRequest struct {
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	PayerName   *string `json:"payer_name"`
}

type shareResponse struct {
	ParticipantName string `json:"participant_name"`
	ShareAmount     string `json:"share_amount"`
}

type obligationResponse struct {
	ParticipantName string `json:"participant_name"`
	Amount          string `json:"amount"`
}

type expenseResponse struct {
	ID          string          `json:"id"`
	PayerName   string          `json:"payer_name"`
	Amount      string          `json:"amount"`
	Description string          `json:"description,omitempty"`
	OccurredAt  string          `json:"occurred_at"`
	Shares      []shareResponse `json:"shares"`
}

type splitResultResponse struct {
	expenseResponse
	OwedToPayer []obligationResponse `json:"owed_to_payer"`
}

func expenseDTO(exp domain.Expense, shares []domain.ParticipantShare) expenseResponse {
	out := expenseResponse{
		ID:          exp.ID,
		PayerName:   exp.PayerName,
		Amount:      domain.FormatAmount(exp.Amount),
		Description: exp.Description,
		OccurredAt:  exp.OccurredAt.Format(time.RFC3339),
		Shares:      make([]shareResponse, 0, len(shares)),
	}
	for _, sh := range shares {
		out.Shares = append(out.Shares, shareResponse{
			ParticipantName: sh.ParticipantName,
			ShareAmount:     domain.FormatAmount(sh.ShareAmount),
		})
	}
	return out
}

func splitResultDTO(res *domain.SplitResult) splitResultResponse {
	out := splitResultResponse{
		expenseResponse: expenseDTO(res.Expense, res.Shares),
		OwedToPayer:     make([]obligationResponse, 0, len(res.OwedToPayer)),
	}
	for _, o := range res.OwedToPayer {
		out.OwedToPayer = append(out.OwedToPayer, obligationResponse{
			ParticipantName: o.ParticipantName,
			Amount:          domain.FormatAmount(o.Amount),
		})
	}
	return out
}

// CreateSplit handles POST /v1/expenses.
func (h *SplitHandler) CreateSplit(w http.ResponseWriter, r *http.Request) {
	var req createSplitRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	res, err := h.split.CreateSplit(r.Context(), UserIDFromContext(r.Context()), service.CreateSplitInput{
		PayerName:    req.PayerName,
		Amount:       req.Amount,
		Description:  req.Description,
		Participants: req.Participants,
		OccurredAt:   req.OccurredAt,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, splitResultDTO(res))
}

// ListSplits handles GET /v1/expenses.
func (h *SplitHandler) ListSplits(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	expenses, err := h.split.ListSplits(r.Context(), UserIDFromContext(r.Context()), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseDTO(e.Expense, e.Shares))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

// GetSplit handles GET /v1/expenses/{expenseID}.
func (h *SplitHandler) GetSplit(w http.ResponseWriter, r *http.Request) {
	res, err := h.split.GetSplit(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "expenseID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, splitResultDTO(res))
}

// UpdateSplit handles PATCH /v1/expenses/{expenseID}.
func (h *SplitHandler) UpdateSplit(w http.ResponseWriter, r *http.Request) {
	var req updateSplitRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	res, err := h.split.UpdateSplit(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "expenseID"), service.UpdateSplitInput{
		Amount:      req.Amount,
		Description: req.Description,
		PayerName:   req.PayerName,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, splitResultDTO(res))
}

// DeleteSplit handles DELETE /v1/expenses/{expenseID}.
func (h *SplitHandler) DeleteSplit(w http.ResponseWriter, r *http.Request) {
	if err := h.split.DeleteSplit(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "expenseID")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
