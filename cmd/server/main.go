package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeadSloth/mapon-backend-assignment/internal/config"
	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/internal/handler"
	"github.com/DeadSloth/mapon-backend-assignment/internal/mapon"
	"github.com/DeadSloth/mapon-backend-assignment/internal/server"
	"github.com/DeadSloth/mapon-backend-assignment/internal/service"
	"github.com/DeadSloth/mapon-backend-assignment/internal/storage"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/retry"
)

// store is satisfied by both the memory and the Postgres backend.
type store interface {
	domain.TransactionRepository
	domain.VehicleRepository
}

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application")

	repo, db := buildStore(ctx, cfg, log)
	if db != nil {
		defer db.Close()
	}

	seedVehicles(ctx, cfg, repo, log)

	client := mapon.NewClient(cfg.Mapon.APIURL, cfg.Mapon.APIKey, cfg.Mapon.Timeout, log)
	importer := service.NewImportService(repo, repo, log)
	log.Info(ctx, "Services initialized")

	transactionHandler := handler.NewTransactionHandler(repo, importer, client, cfg.Enrich.DefaultLimit, log)
	adminHandler := handler.NewAdminHandler(repo, log)
	healthHandler := handler.NewHealthHandler()

	srv := server.New(cfg, log, transactionHandler, adminHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "Application started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "Application stopped gracefully")
}

// buildStore picks Postgres when DATABASE_URL is configured, the in-memory
// store otherwise. The database may come up after us, hence the retry.
func buildStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, *sql.DB) {
	if cfg.Database.URL == "" {
		log.Info(ctx, "Using in-memory store")
		return storage.NewMemoryStore(), nil
	}

	var db *sql.DB
	err := retry.Do(ctx, func() error {
		var connErr error
		db, connErr = storage.NewPostgresDB(cfg.Database.URL)
		return connErr
	}, retry.WithMaxAttempts(10))
	if err != nil {
		log.Fatal(ctx, "Failed to connect to database",
			"error", err,
		)
	}

	if err := storage.InitSchema(ctx, db); err != nil {
		log.Fatal(ctx, "Failed to initialize database schema",
			"error", err,
		)
	}

	log.Info(ctx, "Using Postgres store")
	return storage.NewPostgresStore(db), db
}

func seedVehicles(ctx context.Context, cfg *config.Config, repo domain.VehicleRepository, log *logger.Logger) {
	for vehicleNumber, unitID := range cfg.Vehicles.Units {
		if err := repo.UpsertMapping(ctx, vehicleNumber, unitID); err != nil {
			log.Fatal(ctx, "Failed to seed vehicle mapping",
				"vehicle_number", vehicleNumber,
				"error", err,
			)
		}
	}

	log.Info(ctx, "Vehicle mappings seeded",
		"count", len(cfg.Vehicles.Units),
	)
}
