package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	webAdapter "github.com/adw-ith/hack25-spicechain/internal/adapters/web"
	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/config"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/lock"
	"github.com/adw-ith/hack25-spicechain/internal/logger"
	"github.com/adw-ith/hack25-spicechain/internal/metrics"
	"github.com/adw-ith/hack25-spicechain/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	// Quantities and prices leave the API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		lease, err := lock.AcquireLease(ctx, client, lock.LeaseKey, cfg.Redis.LeaseTTL, log, func(err error) {
			log.Error("writer lease lost, shutting down", zap.Error(err))
			stop()
		})
		if err != nil {
			return err
		}
		defer func() { _ = lease.Release(context.Background()) }()
	}

	ledger, err := core.OpenLedger(ctx, st, lock.NewKeyed())
	if err != nil {
		return err
	}
	seq, _ := ledger.Projection().LastEvent()
	if v := ledger.Projection().Verify(); len(v) > 0 {
		log.Error("ledger replayed with conservation violations", zap.Int("violations", len(v)))
	}
	log.Info("ledger projection rebuilt", zap.Int64("last_seq", seq))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	svc := app.NewAppService(ledger, log, m)
	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		CookieName:     cfg.Auth.CookieName,
		BodyLimit:      cfg.HTTP.BodyLimit,
	}, log, m)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("HTTP server started", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Driver))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("graceful shutdown complete")
	return nil
}
