package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/port"
	"github.com/okarlsen/splitbook/internal/service"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Auth     *service.AuthService
	Ledger   *service.LedgerService
	Overview *service.OverviewService
	Split    *service.SplitService
	Store    port.Pinger
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Timeout  time.Duration
}

// NewRouter builds the chi router with the full middleware stack and all
// routes mounted.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(deps.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Heartbeat("/ping"))

	authH := NewAuthHandler(deps.Auth, deps.Logger)
	ledgerH := NewLedgerHandler(deps.Ledger, deps.Overview, deps.Logger)
	splitH := NewSplitHandler(deps.Split, deps.Logger)

	r.Get("/healthz", healthzHandler(deps.Store))
	r.Get("/readyz", readyzHandler(deps.Store))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)
		r.Get("/metrics/ledger", statsHandler(deps.Metrics))

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(deps.Auth))

			r.Post("/auth/logout", authH.Logout)
			r.Put("/auth/password", authH.ChangePassword)
			r.Get("/users/me", authH.Me)
			r.Delete("/users/me", authH.DeleteMe)

			r.Post("/accounts", ledgerH.CreateAccount)
			r.Get("/accounts", ledgerH.ListAccounts)
			r.Get("/accounts/{accountID}", ledgerH.GetAccount)
			r.Get("/accounts/{accountID}/balance", ledgerH.GetBalance)
			r.Post("/accounts/{accountID}/transactions", ledgerH.AddTransaction)
			r.Get("/accounts/{accountID}/transactions", ledgerH.ListTransactions)

			r.Get("/transactions", ledgerH.ListUserTransactions)
			r.Delete("/transactions/{transactionID}", ledgerH.DeleteTransaction)

			r.Post("/expenses", splitH.CreateSplit)
			r.Get("/expenses", splitH.ListSplits)
			r.Get("/expenses/{expenseID}", splitH.GetSplit)
			r.Patch("/expenses/{expenseID}", splitH.UpdateSplit)
			r.Delete("/expenses/{expenseID}", splitH.DeleteSplit)

			r.Get("/overview", ledgerH.GetOverview)
		})
	})

	return r
}

func healthzHandler(store port.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		start := time.Now()
		status := "ok"
		code := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, domain.HealthStatus{
			Status: status,
			Services: []domain.ServiceHealth{{
				Name:        "storage",
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: time.Now().UTC().Format(time.RFC3339),
			}},
		})
	}
}

func readyzHandler(store port.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "storage not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func statsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
