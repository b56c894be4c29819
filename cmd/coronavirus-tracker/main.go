package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	httpapi "github.com/i474232898/coronavirus-tracker/internal/api/http"
	"github.com/i474232898/coronavirus-tracker/internal/config"
	"github.com/i474232898/coronavirus-tracker/internal/location"
	"github.com/i474232898/coronavirus-tracker/internal/location/providers"
	"github.com/i474232898/coronavirus-tracker/internal/scheduler"
	"github.com/i474232898/coronavirus-tracker/internal/store"
)

const logPrefix = "main"

func initLog(level string) {
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(logLevel)
	}

	log.SetOutput(os.Stdout)

	log.SetFormatter(&prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	})
}

func main() {
	var configFile string
	flag.StringVar(&configFile, "c", "", "[optional] path of configuration file")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	initLog(cfg.LogLevel)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Snapshot store: Redis when configured and reachable, memory otherwise.
	var (
		snapshots location.SnapshotStore = store.NewMemoryStore(cfg.StaleRetention)
		pinger    httpapi.Pinger
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer rdb.Close()

		redisStore := store.NewRedisStore(rdb, cfg.StaleRetention)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisStore.Ping(ctx)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{"prefix": logPrefix, "addr": cfg.RedisAddr, "error": err}).Warn("redis unavailable, using memory store")
		} else {
			log.WithFields(log.Fields{"prefix": logPrefix, "addr": cfg.RedisAddr}).Info("redis connected")
			snapshots = redisStore
			pinger = redisStore
		}
	}

	cache := location.NewCache(snapshots, location.CacheOptions{
		TTL:                cfg.CacheTTL,
		ServeStale:         cfg.ServeStale,
		MinRefreshInterval: cfg.RefreshMinInterval,
	})

	pipelineCfg := location.PipelineConfig{
		Join:         location.JoinStrategy(cfg.JoinStrategy),
		FetchTimeout: cfg.FetchTimeout,
		Retry: location.RetryPolicy{
			MaxRetries:      cfg.FetchRetries,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	}

	// One service per data source, all sharing the cache.
	registry := location.NewRegistry()
	registry.Register(location.JHU, location.NewProviderService(cache,
		location.NewPipeline(location.JHU, providers.NewJHUFetcher(httpClient, cfg.JHUBaseURL), pipelineCfg)))
	registry.Register(location.RKI, location.NewProviderService(cache,
		location.NewPipeline(location.RKI, providers.NewRKIFetcher(httpClient, cfg.RKIBaseURL), pipelineCfg)))

	// Optional background warm-up of the cache.
	sched := scheduler.New(registry, cfg.WarmInterval, cfg.FetchTimeout*time.Duration(cfg.FetchRetries+1))
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "coronavirus-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.FetchTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, registry, pinger)

	go func() {
		log.WithFields(log.Fields{"prefix": logPrefix, "port": cfg.Port}).Info("listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithFields(log.Fields{"prefix": logPrefix, "error": err}).Error("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithFields(log.Fields{"prefix": logPrefix, "error": err}).Error("error during shutdown")
	}
}
