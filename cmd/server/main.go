package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/api"
	"github.com/ignite/subscriber-analytics/internal/config"
	"github.com/ignite/subscriber-analytics/internal/dataset"
	"github.com/ignite/subscriber-analytics/internal/feed"
	"github.com/ignite/subscriber-analytics/internal/pkg/logger"
	"github.com/ignite/subscriber-analytics/internal/repository/postgres"
	"github.com/ignite/subscriber-analytics/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPIIEnabled())

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Preflight failed: %v", err)
	}

	manager, err := dataset.NewManager(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}

	options := []api.Option{
		api.WithAnalyticsOptions(analytics.Options{
			AttributionWindowDays:   cfg.Analytics.AttributionWindowDays,
			MinSignificantDelivered: cfg.Analytics.MinSignificantDelivered,
		}),
	}

	ctx := context.Background()

	if cfg.Cache.Enabled {
		cache, err := storage.NewResultCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword,
			time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer cache.Close()
		options = append(options, api.WithCache(cache))
		logger.Info("result cache enabled", "addr", cfg.Cache.RedisAddr)
	}

	if cfg.Archive.Enabled {
		archive, err := storage.NewArchive(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Region)
		if err != nil {
			log.Fatalf("Failed to set up s3 archive: %v", err)
		}
		options = append(options, api.WithArchive(archive))
		logger.Info("export archive enabled", "bucket", cfg.Archive.S3Bucket)
	}

	if cfg.Registry.Enabled {
		db, err := postgres.Open(ctx, cfg.Registry.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer db.Close()

		registry := postgres.NewManifestRepo(db)
		if err := registry.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare manifest registry: %v", err)
		}
		options = append(options, api.WithRegistry(registry))
		logger.Info("manifest registry enabled")
	}

	if cfg.Data.FeedURL != "" {
		options = append(options, api.WithFeedEnricher(feed.NewEnricher(cfg.Data.FeedURL)))
		logger.Info("feed enrichment enabled", "url", cfg.Data.FeedURL)
	}

	srv, err := api.NewServer(manager, options...)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "data_dir", cfg.Data.Dir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
