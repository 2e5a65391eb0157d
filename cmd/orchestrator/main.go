package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athenasec/athena/internal/cache"
	"github.com/athenasec/athena/internal/orchestrator"
	"github.com/athenasec/athena/internal/telemetry"
	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/provider"
	"github.com/athenasec/athena/providers/claude"
	"github.com/athenasec/athena/providers/deepseek"
	"github.com/athenasec/athena/providers/gemini"
	"github.com/athenasec/athena/providers/openai"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "athena-orchestrator",
		Version:     version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetDefaultLogger(logger)

	adapters, err := buildAdapters(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build provider adapters")
	}
	if len(adapters) == 0 {
		logger.Fatal("No provider API keys configured")
	}

	var backend cache.Backend
	if cfg.Cache.UseRedis {
		redisBackend, err := cache.NewRedisBackend(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisBackend.Close()
		backend = redisBackend
		logger.WithFields(map[string]any{"addr": cfg.Redis.Addr()}).Info("Distributed cache tier enabled")
	}

	registry := prometheus.NewRegistry()
	var sink telemetry.Sink
	if cfg.Metrics.Enabled {
		sink = telemetry.NewPrometheusSink(registry)
	}

	core, err := orchestrator.New(cfg, adapters, orchestrator.Options{
		Backend: backend,
		Sink:    sink,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to assemble orchestrator")
	}

	logger.WithFields(map[string]any{
		"providers":       len(adapters),
		"max_concurrency": cfg.Scheduler.MaxConcurrency,
	}).Info("Orchestrator ready")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
		Handler: newRouter(core, registry),
	}

	go func() {
		logger.WithFields(map[string]any{"addr": server.Addr}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
}

// buildAdapters registers one adapter per configured API key, in failover
// priority order.
func buildAdapters(cfg *config.Config) ([]provider.Adapter, error) {
	var adapters []provider.Adapter

	if cfg.Providers.Claude.APIKey != "" {
		adapter, err := claude.New(cfg.Providers.Claude)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		adapter, err := openai.New(cfg.Providers.OpenAI)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Providers.DeepSeek.APIKey != "" {
		adapter, err := deepseek.New(cfg.Providers.DeepSeek)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Providers.Gemini.APIKey != "" {
		adapter, err := gemini.New(cfg.Providers.Gemini)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func newRouter(core *orchestrator.Orchestrator, registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"providers": core.ProviderHealth(),
		})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"queue": core.QueueStatus(),
			"cache": core.CacheStats(),
		})
	})

	return router
}
