package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/audit"
	"github.com/afelipegc/plata/internal/config"
	"github.com/afelipegc/plata/internal/handler"
	"github.com/afelipegc/plata/internal/ledger"
	"github.com/afelipegc/plata/internal/metrics"
	"github.com/afelipegc/plata/internal/middleware"
	"github.com/afelipegc/plata/internal/repository"
	"github.com/afelipegc/plata/internal/repository/memory"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Initialize store
	var store ledger.Store
	switch cfg.Store {
	case config.StoreMemory:
		store = memory.NewStore()
		logger.Warn("Using in-memory store; state is lost on restart")
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		repo := repository.NewRepository(db, logger)
		if err := repo.InitSchema(ctx); err != nil {
			logger.Fatalf("Failed to init schema: %v", err)
		}
		store = repo
	}

	// Initialize layers
	collector := metrics.NewCollector()
	engine := ledger.NewEngine(store, logger)

	if cfg.SeedDemo {
		if err := seedDemo(ctx, engine, store, logger); err != nil {
			logger.Fatalf("Failed to seed demo accounts: %v", err)
		}
	}

	// Conservation audit
	var notifier audit.Notifier
	if cfg.AlertEmail != "" {
		notifier = audit.NewAlerter(cfg, logger)
	}
	checker := audit.NewChecker(store, collector, notifier, logger)
	if err := checker.Start(cfg.AuditSchedule); err != nil {
		logger.Fatalf("Failed to start conservation audit: %v", err)
	}
	defer checker.Stop()

	h := handler.NewHandler(engine, store, collector, logger)
	r := handler.NewRouter(h, collector.Handler(), middleware.RequestLogger(logger))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

// seedDemo provisions the three demo wallets on an empty store.
func seedDemo(ctx context.Context, engine *ledger.Engine, store ledger.Store, logger *logrus.Logger) error {
	existing, err := store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug("Store already has accounts, skipping demo seed")
		return nil
	}

	demo := []struct {
		identifier  string
		displayName string
		balance     string
	}{
		{"3001234567", "Andres Gerena", "500000"},
		{"3009876543", "Fabian Suarez", "750000"},
		{"3108556655", "Camila Mosquera", "10000"},
	}
	for _, account := range demo {
		if _, err := engine.CreateAccount(ctx, account.identifier, account.displayName, account.balance); err != nil {
			return err
		}
	}
	logger.Infof("Seeded %d demo accounts", len(demo))
	return nil
}
