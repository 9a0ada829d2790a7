package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborview/reservations/internal/adapters/crdb"
	mongoadapter "github.com/harborview/reservations/internal/adapters/mongo"
	redisadapter "github.com/harborview/reservations/internal/adapters/redis"
	"github.com/harborview/reservations/internal/config"
	httphandler "github.com/harborview/reservations/internal/http"
	"github.com/harborview/reservations/internal/idempotency"
	"github.com/harborview/reservations/internal/lifecycle"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
	"github.com/harborview/reservations/internal/policy"
	"github.com/harborview/reservations/internal/pricing"
	"github.com/harborview/reservations/internal/rateLimit"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("harborview")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)
	authStore := redisadapter.NewAuthStore(redisClient)

	provider := payments.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderAPIKey)
	coordinator := payments.NewCoordinator(provider, authStore, logger)

	pol := policy.NewCancellationPolicy()
	pol.RefundWindow = cfg.RefundWindow

	svc := lifecycle.NewService(repo, coordinator, pricing.NewCalculator(), pol, repo, catalog, cfg.Currency, logger)

	handlers := httphandler.NewHandlers(cfg, svc, repo, redisCache, idemp, audit, logger)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
