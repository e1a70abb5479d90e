// Command authd serves the mfauth HTTP surface backed by Postgres and Redis.
//
// Configuration comes from the environment, optionally seeded by a .env
// file in the working directory. PG_CONN_URL and SESSION_SECRET are
// required. Migrations run on startup.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/httpapi"
	"github.com/MrEthical07/mfauth/metrics/export/prometheus"
	"github.com/MrEthical07/mfauth/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("authd stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.slogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PGConnURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	stores := postgres.NewStores(db)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	engine, err := mfauth.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithCredentialStore(stores.Credentials).
		WithMFAStore(stores.MFA).
		WithUserLinker(stores.Users).
		WithLogger(logger).
		WithAuditSink(mfauth.NewSlogAuditSink(logger.With("component", "audit"))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		logger.Warn("security posture", "warning", w)
	}

	opts := httpapi.Options{Logger: logger, TrustProxy: cfg.TrustProxy}
	if cfg.MetricsEnabled {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
