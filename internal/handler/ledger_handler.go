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

// LedgerHandler exposes accounts, transactions and the overview.
type LedgerHandler struct {
	ledger   *service.LedgerService
	overview *service.OverviewService
	logger   *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, overview *service.OverviewService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, overview: overview, logger: logger}
}

type createAccountRequest struct {
	Name           string `json:"name"`
	AccountType    string `json:"account_type"`
	InitialBalance string `json:"initial_balance"`
}

type addTransactionRequest struct {
	Amount      string     `json:"amount"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	OccurredAt  *time.Time `json:"occurred_at"`
}

// Monetary fields are strings with exactly two fractional digits, never
// JSON numbers.
type accountResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type"`
	InitialBalance string `json:"initial_balance"`
	Balance        string `json:"balance"`
	CreatedAt      string `json:"created_at"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	OccurredAt  string `json:"occurred_at"`
	AccountName string `json:"account_name,omitempty"`
}

type postTransactionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Balance     string              `json:"balance"`
}

type overviewResponse struct {
	Accounts           []accountResponse     `json:"accounts"`
	RecentTransactions []transactionResponse `json:"recent_transactions"`
	RecentExpenses     []expenseResponse     `json:"recent_expenses"`
}

func accountDTO(a domain.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		AccountType:    a.AccountType,
		InitialBalance: domain.FormatAmount(a.InitialBalance),
		Balance:        domain.FormatAmount(a.Balance),
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

func transactionDTO(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Amount:      domain.FormatAmount(t.Amount),
		Kind:        t.Kind,
		Description: t.Description,
		OccurredAt:  t.OccurredAt.Format(time.RFC3339),
	}
}

func accountTransactionDTO(t domain.AccountTransaction) transactionResponse {
	dto := transactionDTO(t.Transaction)
	dto.AccountName = t.AccountName
	return dto
}

// CreateAccount handles POST /v1/accounts.
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	acct, err := h.ledger.CreateAccount(r.Context(), UserIDFromContext(r.Context()), req.Name, req.AccountType, req.InitialBalance)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountDTO(*acct))
}

// ListAccounts handles GET /v1/accounts.
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

// GetAccount handles GET /v1/accounts/{accountID}.
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.ledger.GetAccount(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(*acct))
}

// GetBalance handles GET /v1/accounts/{accountID}/balance.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.ledger.GetAccount(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account_id": acct.ID,
		"balance":    domain.FormatAmount(acct.Balance),
	})
}

// AddTransaction handles POST /v1/accounts/{accountID}/transactions.
func (h *LedgerHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	tx, balance, err := h.ledger.AddTransaction(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountID"), service.AddTransactionInput{
		Amount:      req.Amount,
		Kind:        req.Kind,
		Description: req.Description,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, postTransactionResponse{
		Transaction: transactionDTO(*tx),
		Balance:     domain.FormatAmount(balance),
	})
}

// ListTransactions handles GET /v1/accounts/{accountID}/transactions.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.ListTransactions(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// ListUserTransactions handles GET /v1/transactions.
func (h *LedgerHandler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := h.ledger.ListUserTransactions(r.Context(), UserIDFromContext(r.Context()), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, accountTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// DeleteTransaction handles DELETE /v1/transactions/{transactionID}.
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.DeleteTransaction(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "transactionID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": domain.FormatAmount(balance)})
}

// GetOverview handles GET /v1/overview.
func (h *LedgerHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.overview.GetOverview(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := overviewResponse{
		Accounts:           make([]accountResponse, 0, len(overview.Accounts)),
		RecentTransactions: make([]transactionResponse, 0, len(overview.RecentTransactions)),
		RecentExpenses:     make([]expenseResponse, 0, len(overview.RecentExpenses)),
	}
	for _, a := range overview.Accounts {
		resp.Accounts = append(resp.Accounts, accountDTO(a))
	}
	for _, t := range overview.RecentTransactions {
		resp.RecentTransactions = append(resp.RecentTransactions, accountTransactionDTO(t))
	}
	for _, e := range overview.RecentExpenses {
		resp.RecentExpenses = append(resp.RecentExpenses, expenseDTO(e.Expense, e.Shares))
	}
	writeJSON(w, http.StatusOK, resp)
}
