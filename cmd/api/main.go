package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/app"
	"github.com/magnifycash/backend/internal/auth"
	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/cache"
	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/db"
	"github.com/magnifycash/backend/internal/http/handlers"
	"github.com/magnifycash/backend/internal/observability"
	"github.com/magnifycash/backend/internal/server"
	"github.com/magnifycash/backend/internal/transactions"
	"github.com/magnifycash/backend/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	chain, err := app.NewChain(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up chain access")
	}
	defer chain.Close()

	readyChecks := map[string]handlers.Pinger{
		"database": pool,
		"chain":    handlers.PingFunc(chain.Ping),
	}

	var (
		store  aggregator.Store
		nonces auth.NonceStore
	)
	switch cfg.CacheBackend {
	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb)
		nonces = cache.NewRedisNonceStore(rdb)
		readyChecks["cache"] = redisPinger(rdb)
	default:
		store = cache.NewMemoryStore()
		nonces = cache.NewMemoryNonceStore()
	}

	snapshots := chain.NewAggregator(cfg, store, logger)
	hub := ws.NewHub()
	notifier := ws.NewNotifier(hub, logger)
	snapshots.OnUpdate(notifier.ContractDataUpdated)

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	authService := auth.NewService(
		db.NewAuthRepository(pool),
		jwtManager,
		nonces,
		auth.NewWalletSignatureVerifier(chain.Client),
		snapshots,
		auth.Options{
			Domain:     cfg.AuthDomain,
			URI:        cfg.AuthURI,
			ChainID:    cfg.AuthChainID,
			NonceTTL:   cfg.AuthNonceTTL,
			AccessTTL:  cfg.JWTAccessTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		},
		logger,
	)

	txService, watcher := newTransactions(ctx, cfg, chain, snapshots, notifier, logger)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		ReadyChecks:         readyChecks,
		AuthHandler:         handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}, cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		ContractDataHandler: handlers.NewContractDataHandler(snapshots),
		AccountHandler:      handlers.NewAccountHandler(chain.History, chain.Balances),
		LoanHandler:         handlers.NewLoanHandler(txService),
		WSHandler:           ws.NewHandler(hub, snapshots, logger),
		JWTManager:          jwtManager,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := watcher.Run(sigCtx, cfg.WatcherPollInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("transaction watcher stopped")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("writer_mode", cfg.ChainWriterMode).Str("cache", cfg.CacheBackend).Msg("api server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("api server stopped")
}

func newTransactions(ctx context.Context, cfg config.Config, chain *app.Chain, snapshots *aggregator.Aggregator, notifier *ws.Notifier, logger zerolog.Logger) (*transactions.Service, *transactions.Watcher) {
	connector, err := blockchain.NewConnectorFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build transaction connector")
	}

	var receipts blockchain.ReceiptSource = chain.Client
	if _, stub := connector.(*blockchain.StubConnector); stub {
		receipts = blockchain.StubReceiptSource{}
	}
	resolver := transactions.NewTxResolver(cfg.WorldAppID, cfg.WorldAPIURL)
	watcher := transactions.NewWatcher(receipts, resolver, snapshots, notifier, cfg.WatcherMaxAttempts, logger)

	lendingABI, err := blockchain.LendingABI()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse lending abi")
	}
	svc, err := transactions.NewService(connector, snapshots, watcher, transactions.NewHTTPVerifier(cfg.NFTVerifierURL), lendingABI, cfg.LendingContract, cfg.CollateralToken, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build transaction service")
	}
	return svc, watcher
}

func redisPinger(rdb *goredis.Client) handlers.Pinger {
	return handlers.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}
