package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"enrichment-service/internal/cache"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/config"
	"enrichment-service/internal/handlers"
	"enrichment-service/internal/metrics"
	"enrichment-service/internal/pipeline"
	"enrichment-service/internal/provider"
	"enrichment-service/internal/redis"
	"enrichment-service/internal/resultcache"
	"enrichment-service/internal/server"
	"enrichment-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	healthChecks := map[string]func() error{}

	// Backing store for the result cache.
	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()

		store = cache.NewRedisStore(client)
		healthChecks["redis"] = client.Health
	default:
		local := cache.NewLocalStore(cfg.CacheTTL, 10*time.Minute)
		store = local
		healthChecks["cache"] = local.Health
	}

	resultCache := resultcache.New(store, cfg.CacheTTL, cfg.CacheEnabled)

	// Optional enrichment history.
	var history storage.Store
	if cfg.HistoryEnabled {
		sqliteStore, err := storage.NewSQLiteStore(cfg.HistoryPath)
		if err != nil {
			log.Fatalf("Failed to open history database: %v", err)
		}
		defer sqliteStore.Close()

		history = sqliteStore
		healthChecks["history"] = sqliteStore.Health
	}

	providerClient, err := provider.NewHTTPClient(&provider.HTTPConfig{
		Name:              cfg.ProviderName,
		URL:               cfg.ProviderURL,
		Timeout:           cfg.ProviderTimeout,
		MaxRetries:        cfg.ProviderMaxRetries,
		RequestsPerSecond: cfg.ProviderRateLimit,
	})
	if err != nil {
		log.Fatalf("Failed to configure provider: %v", err)
	}

	registry := metrics.NewRegistry()

	pipelineService, err := pipeline.NewService(pipeline.Options{
		Provider:         providerClient,
		Cache:            resultCache,
		Metrics:          registry,
		History:          history,
		BatchMaxSize:     cfg.BatchMaxSize,
		BatchConcurrency: cfg.BatchConcurrency,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	h := handlers.New(pipelineService, registry, history, healthChecks)

	// Periodic metrics snapshot in the logs.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		snapshot := registry.Snapshot()
		logging.Info("pipeline metrics",
			logging.Int64("cache_hits", snapshot.CacheHits),
			logging.Int64("cache_misses", snapshot.CacheMisses),
			logging.Int64("provider_calls", snapshot.ProviderCalls),
			logging.Int64("provider_errors", snapshot.ProviderErrors),
			logging.Int64("fields_enriched", snapshot.FieldsEnriched))
	}); err != nil {
		log.Fatalf("Failed to schedule metrics reporter: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(h.Router(), cfg.Port)
	srv.Start()
	logging.Info("Server started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logging.Info("Server exited")
}
