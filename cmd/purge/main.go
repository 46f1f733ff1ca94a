// Command purge runs one artifact purge pass and exits. It is meant for an
// external scheduler when the server's in-process ticker is disabled.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberverify/internal/artifact"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/platform/config"
	"memberverify/internal/platform/logger"
	"memberverify/internal/platform/postgres"
	"memberverify/internal/purge"
)

const runTimeout = 10 * time.Minute

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := run(ctx, cfg, log)
	if err != nil {
		log.Error("artifact purge failed", "error", err)
		os.Exit(1)
	}
	_ = json.NewEncoder(os.Stdout).Encode(res)
	if res.Errors > 0 {
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) (purge.Result, error) {
	if cfg.DatabaseURL == "" || cfg.Storage.Endpoint == "" {
		return purge.Result{}, errors.New("DATABASE_URL and STORAGE_ENDPOINT are required")
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return purge.Result{}, err
	}
	defer db.Close()

	s := cfg.Storage
	store, err := artifact.NewMinIOStore(ctx, s.Endpoint, s.AccessKey, s.SecretKey, s.Bucket, s.UseSSL)
	if err != nil {
		return purge.Result{}, err
	}

	purger, err := purge.New(memberstore.NewPostgres(db), store, purge.WithLogger(log))
	if err != nil {
		return purge.Result{}, err
	}
	return purger.Run(ctx)
}
