// Package main is the entrypoint for the G-Core DNS statistics exporter.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kanzifucius/gcore-dns-exporter/pkg/config"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/gcore"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/poller"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/server"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/store"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("gcore-dns-exporter starting",
		"version", version,
		"commit", commit,
		"date", date,
	)

	if err := run(level); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(level *slog.LevelVar) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if l, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"interval_seconds", cfg.IntervalSeconds,
		"timeout_seconds", cfg.TimeoutSeconds,
		"api_url", cfg.APIURL,
		"zones_limit", cfg.ZonesLimit,
		"request_delay_ms", cfg.RequestDelayMillis,
		"zone_reset_policy", cfg.ZoneResetPolicy,
		"store_backend", cfg.StoreBackend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	// Bind the scrape port before the first poll so early scrapes get an
	// empty but valid response.
	srv := server.New(cfg.Addr(), s)
	if err := srv.Listen(ctx); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			slog.Error("metrics server error", "error", err)
			cancel()
		}
	}()

	client := gcore.NewClient(cfg.APIURL, cfg.APIKey, cfg.Timeout())
	p := poller.New(client, cfg, s)
	go func() {
		slog.Info("starting poller")
		p.Run(ctx)
	}()

	go func() {
		select {
		case <-p.Ready():
			srv.SetReady()
			slog.Info("server marked as ready")
		case <-ctx.Done():
		}
	}()

	slog.Info("exporter running", "metrics_addr", srv.Addr())

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("shutdown complete")
	return nil
}

// newStore builds the store selected by STORE_BACKEND and restores the last
// persisted snapshot, if any.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	mem := store.New()

	var ps store.PersistentStore
	switch cfg.StoreBackend {
	case config.BackendS3:
		s3Client, err := store.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create S3 client: %w", err)
		}
		slog.Info("restoring snapshot from S3",
			"bucket", cfg.S3Bucket,
			"key_prefix", cfg.S3KeyPrefix,
		)
		ps = store.NewS3Store(mem, s3Client, cfg.S3Bucket, cfg.S3KeyPrefix)
	case config.BackendRedis:
		slog.Info("restoring snapshot from Redis", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
		ps = store.NewRedisStore(mem, store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.RedisKey)
	default:
		return mem, nil
	}

	if err := ps.Restore(ctx); err != nil {
		slog.Warn("failed to restore snapshot, starting with empty store", "error", err)
	}
	return ps, nil
}
