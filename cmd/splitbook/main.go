package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/config"
	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/events/kafka"
	"github.com/okarlsen/splitbook/internal/handler"
	"github.com/okarlsen/splitbook/internal/infra/cache"
	"github.com/okarlsen/splitbook/internal/infra/observability"
	"github.com/okarlsen/splitbook/internal/infra/resilience"
	"github.com/okarlsen/splitbook/internal/port"
	"github.com/okarlsen/splitbook/internal/service"
	"github.com/okarlsen/splitbook/internal/storage"
	"github.com/okarlsen/splitbook/internal/storage/memory"
	"github.com/okarlsen/splitbook/internal/storage/postgres"
	"github.com/okarlsen/splitbook/internal/storage/sqlite"
)

// store combines the three storage ports every backend implements.
type store interface {
	port.LedgerStore
	port.SplitStore
	port.AuthStore
	port.Pinger
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "splitbook")
	if err != nil {
		logger.Fatal("init tracer", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	backend, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeStore()

	retryCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	var publisher port.EventPublisher
	if cfg.UseKafka {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, retryCfg)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka events enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	overviewCache := cache.New[domain.Overview](cfg.CacheTTL)

	authSvc := service.NewAuthService(backend, overviewCache, metrics, cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, logger)
	ledgerSvc := service.NewLedgerService(backend, overviewCache, publisher, metrics, logger)
	splitSvc := service.NewSplitService(backend, overviewCache, publisher, metrics, logger)
	overviewSvc := service.NewOverviewService(backend, backend, overviewCache, cfg.MaxConcurrency, metrics, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:     authSvc,
		Ledger:   ledgerSvc,
		Overview: overviewSvc,
		Split:    splitSvc,
		Store:    backend,
		Metrics:  metrics,
		Logger:   logger,
		Timeout:  cfg.HTTPTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Error("tracer shutdown", zap.Error(err))
	}
	logger.Info("bye")
}

// openStore selects and initializes the configured storage backend,
// running migrations where the backend is SQL.
func openStore(cfg *config.Config, logger *zap.Logger) (store, func(), error) {
	switch cfg.StorageBackend {
	case "postgres":
		st, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.RunMigrations(st.DB(), "postgres"); err != nil {
			st.Close()
			return nil, nil, err
		}
		logger.Info("postgres storage ready")
		return st, func() { st.Close() }, nil

	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.RunMigrations(st.DB(), "sqlite"); err != nil {
			st.Close()
			return nil, nil, err
		}
		logger.Info("sqlite storage ready", zap.String("path", cfg.SQLitePath))
		return st, func() { st.Close() }, nil

	case "memory":
		logger.Warn("memory storage selected, data will not survive restarts")
		return memory.New(), func() {}, nil

	default:
		return nil, nil, errors.New("unknown STORAGE_BACKEND: " + cfg.StorageBackend)
	}
}
