package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendwatch-server/src/anomaly"
	"spendwatch-server/src/api"
	"spendwatch-server/src/config"
	"spendwatch-server/src/db"
	sqldb "spendwatch-server/src/db/sql"
	"spendwatch-server/src/handlers"
	"spendwatch-server/src/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("DB connection failed")
	}
	defer pool.Close()

	var query anomaly.TransactionQuery = sqldb.NewTransactionStore(pool)
	var cacheClearer handlers.CacheClearer
	if cfg.MerchantCacheTTL > 0 {
		cache, err := db.NewMerchantHistoryCache(query, cfg.MerchantCacheTTL, db.DefaultGranularity)
		if err != nil {
			log.Fatal().Err(err).Msg("Merchant history cache init failed")
		}
		defer cache.Close()
		query = cache
		cacheClearer = cache
		log.Info().Dur("ttl", cfg.MerchantCacheTTL).Msg("Merchant history cache enabled")
	}

	engineCfg := anomaly.DefaultConfig()
	engineCfg.DefaultDays = cfg.AnomalyDefaultDays
	engineCfg.DefaultLimit = cfg.AnomalyDefaultLimit
	engineCfg.Concurrency = cfg.AnomalyConcurrency

	engine, err := anomaly.NewEngine(sqldb.NewSpaceAccess(pool), query, engineCfg, anomaly.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid anomaly configuration")
	}

	// Router
	router := api.NewRouter(api.Deps{
		Anomalies:      engine,
		Cache:          cacheClearer,
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("API server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}
