package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"business-wallet-engine/config"
	httpHandler "business-wallet-engine/internal/adapter/http/handler"
	"business-wallet-engine/internal/adapter/storage/memory"
	pgStorage "business-wallet-engine/internal/adapter/storage/postgres"
	redisStorage "business-wallet-engine/internal/adapter/storage/redis"
	"business-wallet-engine/internal/core/ports"
	"business-wallet-engine/internal/service"
	"business-wallet-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// storage is the ledger backend selected by database.driver.
type storage struct {
	wallets     ports.WalletRepository
	limits      ports.SpendingLimitRepository
	audit       ports.AuditRepository
	txs         ports.TransactionRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	cfgPath := os.Getenv("WLE_CONFIG")

	// Load configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting Wallet Ledger Engine")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (WLE_JWT_SECRET)")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open wallet store")
	}
	defer store.close()

	loc, err := cfg.Wallet.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default timezone")
	}

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis is optional: without it there is no snapshot cache, no idempotency
	// fast path and no rate limiting.
	var (
		idempotencyCache ports.IdempotencyCache
		snapshotCache    ports.SnapshotCache
		rateLimitStore   ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		snapshotCache = redisStorage.NewSnapshotCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb, logger.Component(log, "redis")))
	} else {
		log.Warn().Msg("Redis disabled: snapshot cache and rate limiting are off")
	}

	// Initialize services
	evaluator := service.NewLimitEvaluator(store.txs)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	walletSvc := service.NewWalletService(
		store.wallets,
		store.limits,
		store.audit,
		store.idempotency,
		idempotencyCache,
		snapshotCache,
		evaluator,
		store.transactor,
		service.WalletSettings{
			StoreTimeout:   cfg.Wallet.StoreTimeout,
			IdempotencyTTL: cfg.Wallet.IdempotencyTTL,
			Location:       loc,
		},
		logger.Component(log, "wallet"),
	)
	reportingSvc := service.NewReportingService(
		store.wallets,
		store.limits,
		store.txs,
		evaluator,
		snapshotCache,
		service.ReportingSettings{
			SnapshotTTL:        cfg.Wallet.SnapshotTTL,
			RecentTransactions: cfg.Wallet.RecentTransactions,
			StatsWindow:        cfg.Wallet.StatsWindow,
			Location:           loc,
		},
		logger.Component(log, "reporting"),
	)
	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage connects the configured backend and applies the schema when asked to.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Database.InMemory() {
		log.Warn().Msg("Using the in-memory wallet store; data is lost on exit")
		mem := memory.NewStore(cfg.Wallet.LockTimeout)
		return &storage{
			wallets:     memory.NewWalletRepository(mem),
			limits:      memory.NewSpendingLimitRepository(mem),
			audit:       memory.NewAuditRepository(mem),
			txs:         memory.NewTransactionRepository(mem),
			idempotency: memory.NewIdempotencyRepository(mem),
			transactor:  mem,
			health:      mem,
			close:       func() {},
		}, nil
	}

	isoLevel, err := pgStorage.IsoLevel(cfg.Database.Isolation)
	if err != nil {
		return nil, err
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &storage{
		wallets:     pgStorage.NewWalletRepo(pool),
		limits:      pgStorage.NewSpendingLimitRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		txs:         pgStorage.NewTransactionRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		transactor:  pgStorage.NewTransactor(pool, isoLevel, cfg.Wallet.LockTimeout),
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}
