package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coindeck/internal/backtest"
	"coindeck/internal/config"
	"coindeck/internal/httpapi"
	"coindeck/internal/provider"
	"coindeck/internal/session"
	"coindeck/internal/store"
	"coindeck/internal/strategy"
	"coindeck/internal/util"
)

func main() {
	cfgPath := "config/coindeck.yaml"
	if p := os.Getenv("COINDECK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	candles := store.NewParquetStore(cfg.Storage.DataDir)

	var sessions store.SessionStore
	if cfg.Storage.SQLitePath != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open session store: %v", err)
		}
		defer sqliteStore.Close()
		sessions = sqliteStore
	} else {
		logger.Warn("no sqlite_path configured, sessions will not survive restarts")
		sessions = store.NewMemorySessionStore()
	}

	registry := strategy.Default()
	engine := backtest.NewEngine(registry, logger)
	engine.Workers = cfg.Backtest.MaxWorkers

	svc := session.NewService(session.NewRepository(sessions), engine, provider.NewStoreProvider(candles), logger)
	api := httpapi.NewServer(svc, candles, registry, cfg.Backtest, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("coindeck-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// Let in-flight backtests record their final status.
	svc.Wait()
}
