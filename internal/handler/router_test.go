package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/cache"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/service"
	"github.com/okarlsen/splitbook/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	overviewCache := cache.New[domain.Overview](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	auth := service.NewAuthService(store, overviewCache, metrics, "test-secret", 15*time.Minute, 24*time.Hour, logger)
	ledger := service.NewLedgerService(store, overviewCache, nil, metrics, logger)
	split := service.NewSplitService(store, overviewCache, nil, metrics, logger)
	overview := service.NewOverviewService(store, store, overviewCache, 4, metrics, logger)

	router := NewRouter(RouterDeps{
		Auth:     auth,
		Ledger:   ledger,
		Overview: overview,
		Split:    split,
		Store:    store,
		Metrics:  metrics,
		Logger:   logger,
		Timeout:  10 * time.Second,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", "", map[string]string{
		"name":     "Anna",
		"email":    "anna@example.com",
		"password": "correct horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body = %v", resp.StatusCode, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("no access token in register response")
	}
	return token
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/accounts", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/accounts", "bogus-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}
}

func TestAccountAndTransactionFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, acct := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts", token, map[string]string{
		"name":            "Main",
		"account_type":    "current",
		"initial_balance": "100.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, body = %v", resp.StatusCode, acct)
	}
	if acct["balance"] != "100.00" {
		t.Errorf("balance = %v, want string \"100.00\"", acct["balance"])
	}
	accountID := acct["id"].(string)

	resp, posted := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts/"+accountID+"/transactions", token, map[string]string{
		"amount": "25.50",
		"kind":   "debit",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post transaction status = %d, body = %v", resp.StatusCode, posted)
	}
	if posted["balance"] != "74.50" {
		t.Errorf("balance after debit = %v, want \"74.50\"", posted["balance"])
	}

	txID := posted["transaction"].(map[string]any)["id"].(string)
	resp, deleted := doJSON(t, http.MethodDelete, srv.URL+"/v1/transactions/"+txID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete transaction status = %d", resp.StatusCode)
	}
	if deleted["balance"] != "100.00" {
		t.Errorf("balance after delete = %v, want \"100.00\"", deleted["balance"])
	}
}

func TestBalanceAndLedgerMetrics(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, acct := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts", token, map[string]string{
		"name":            "Savings",
		"account_type":    "savings",
		"initial_balance": "50.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d", resp.StatusCode)
	}
	accountID := acct["id"].(string)

	resp, posted := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts/"+accountID+"/transactions", token, map[string]string{
		"amount": "10.25",
		"kind":   "credit",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post transaction status = %d, body = %v", resp.StatusCode, posted)
	}

	resp, balance := doJSON(t, http.MethodGet, srv.URL+"/v1/accounts/"+accountID+"/balance", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get balance status = %d", resp.StatusCode)
	}
	if balance["balance"] != "60.25" {
		t.Errorf("balance = %v, want \"60.25\"", balance["balance"])
	}
	if balance["account_id"] != accountID {
		t.Errorf("account_id = %v, want %s", balance["account_id"], accountID)
	}

	// Snapshot endpoint is public and reflects the credit posted above.
	resp, stats := doJSON(t, http.MethodGet, srv.URL+"/v1/metrics/ledger", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics snapshot status = %d", resp.StatusCode)
	}
	if stats["transactions_posted"].(float64) < 1 {
		t.Errorf("transactions_posted = %v, want >= 1", stats["transactions_posted"])
	}
}

func TestTransactionValidationMapsTo400(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, acct := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts", token, map[string]string{
		"name": "Main", "account_type": "current",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d", resp.StatusCode)
	}
	accountID := acct["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/accounts/"+accountID+"/transactions", token, map[string]string{
		"amount": "12.345",
		"kind":   "credit",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("3-decimal amount: status = %d, want 400, body = %v", resp.StatusCode, body)
	}
}

func TestSplitFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/v1/expenses", token, map[string]any{
		"payer_name":   "Anna",
		"amount":       "100.00",
		"description":  "dinner",
		"participants": []string{"Anna", "Ben", "Cleo"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create split status = %d, body = %v", resp.StatusCode, created)
	}

	shares := created["shares"].([]any)
	if len(shares) != 3 {
		t.Fatalf("shares = %d, want 3", len(shares))
	}
	for _, raw := range shares {
		if amt := raw.(map[string]any)["share_amount"]; amt != "33.33" {
			t.Errorf("share_amount = %v, want \"33.33\"", amt)
		}
	}
	owed := created["owed_to_payer"].([]any)
	if len(owed) != 2 {
		t.Errorf("owed_to_payer = %d entries, want 2", len(owed))
	}

	splitID := created["id"].(string)
	resp, fetched := doJSON(t, http.MethodGet, srv.URL+"/v1/expenses/"+splitID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get split status = %d", resp.StatusCode)
	}
	if fetched["amount"] != "100.00" {
		t.Errorf("amount = %v, want \"100.00\"", fetched["amount"])
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/expenses/"+splitID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete split status = %d, want 204", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/expenses/"+splitID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted split status = %d, want 404", resp.StatusCode)
	}
}

func TestCrossUserAccessIsForbidden(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/v1/expenses", token, map[string]any{
		"payer_name":   "Anna",
		"amount":       "10.00",
		"participants": []string{"Ben"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create split status = %d", resp.StatusCode)
	}
	splitID := created["id"].(string)

	resp, other := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", "", map[string]string{
		"name": "Mallory", "email": "mallory@example.com", "password": "longpassword",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register second user status = %d", resp.StatusCode)
	}
	otherToken := other["access_token"].(string)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/expenses/"+splitID, otherToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross-user get split status = %d, want 403", resp.StatusCode)
	}
}

func TestOverviewAndHealth(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	resp, overview := doJSON(t, http.MethodGet, srv.URL+"/v1/overview", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("overview status = %d", resp.StatusCode)
	}
	for _, key := range []string{"accounts", "recent_transactions", "recent_expenses"} {
		if _, ok := overview[key]; !ok {
			t.Errorf("overview missing %q", key)
		}
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz status = %d", resp.StatusCode)
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/accounts", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}
