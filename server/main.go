package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var cfg Config
	cmd := &cli.Command{
		Name:  "taskboard",
		Usage: "collaborative kanban board server",
		Flags: cfg.flags(),
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx, log, &cfg)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, log *slog.Logger, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return goerr.Wrap(err, "db open")
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return goerr.Wrap(err, "db ping")
	}

	if err := RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	store := NewStore(db)
	reg := prometheus.NewRegistry()
	metrics := newMetrics(reg)
	bus := NewEventBus()

	notifier := NewNotifier(store, log, bus, metrics, cfg.WebhookURL)
	notifier.Start()
	defer notifier.Close()

	mux := http.NewServeMux()
	api := newAPI(store, log, cfg, bus, notifier, metrics)
	api.routes(mux)
	mux.Handle("GET /metrics", metricsHandler(reg))

	srv := &http.Server{Addr: cfg.Addr, Handler: api.withLogging(mux),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case err := <-errCh:
		return goerr.Wrap(err, "listen")
	case <-sig:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shCtx, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(shCtx); err != nil {
		return goerr.Wrap(err, "shutdown")
	}
	return nil
}
