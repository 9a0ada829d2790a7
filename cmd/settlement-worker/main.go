package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborview/reservations/internal/adapters/crdb"
	redisadapter "github.com/harborview/reservations/internal/adapters/redis"
	"github.com/harborview/reservations/internal/config"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
	"github.com/harborview/reservations/internal/settlement"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	authStore := redisadapter.NewAuthStore(redisClient)

	provider := payments.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderAPIKey)
	coordinator := payments.NewCoordinator(provider, authStore, logger)

	worker := settlement.NewWorker(repo, coordinator, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SettlementPoll)
	go worker.RunSweep(ctx, 24*time.Hour)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown settlement worker")
}
