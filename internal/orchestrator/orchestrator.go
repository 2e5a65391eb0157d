// Package orchestrator wires the result cache, failover coordinator and batch
// scheduler into a single entry point for analysis workloads.
package orchestrator

import (
	"context"

	"github.com/athenasec/athena/internal/cache"
	"github.com/athenasec/athena/internal/failover"
	"github.com/athenasec/athena/internal/scheduler"
	"github.com/athenasec/athena/internal/telemetry"
	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/provider"
	"github.com/athenasec/athena/pkg/resilience"
	"github.com/athenasec/athena/pkg/types"
)

// Options carries optional collaborators. Zero values disable the
// corresponding feature.
type Options struct {
	// Backend is the distributed cache tier. Nil keeps the cache local-only.
	Backend cache.Backend
	// Sink receives telemetry events. Nil disables telemetry.
	Sink telemetry.Sink
	// Logger overrides the default logger.
	Logger *logging.Logger
}

// Orchestrator coordinates batched and one-off analysis requests across AI
// providers with caching, failover and retry.
type Orchestrator struct {
	config      *config.Config
	logger      *logging.Logger
	cache       *cache.Service
	coordinator *failover.Coordinator
	scheduler   *scheduler.Scheduler
}

// New validates the configuration and assembles the orchestration pipeline.
// Adapters are tried in the given order during failover.
func New(cfg *config.Config, adapters []provider.Adapter, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	cacheService := cache.NewService(cfg.Cache, opts.Backend, logger, opts.Sink)

	coordinator, err := failover.NewCoordinator(adapters, cacheService, failover.Config{
		CallTimeout: cfg.Providers.CallTimeout,
		ResultTTL:   cfg.Providers.ResultCacheTTL,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
		},
	}, logger, opts.Sink)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(coordinator, cfg.Scheduler, logger, opts.Sink)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:      cfg,
		logger:      logger,
		cache:       cacheService,
		coordinator: coordinator,
		scheduler:   sched,
	}, nil
}

// SubmitBatch runs a batch of requests through the scheduler and blocks until
// the batch finishes or is cancelled.
func (o *Orchestrator) SubmitBatch(ctx context.Context, requests []*types.BatchRequest, opts scheduler.Options) ([]*types.BatchResponse, error) {
	return o.scheduler.SubmitBatch(ctx, requests, opts)
}

// CancelBatch cancels an in-flight batch. Unknown ids are ignored.
func (o *Orchestrator) CancelBatch(batchID string) {
	o.scheduler.CancelBatch(batchID)
}

// QueueStatus reports scheduler queue depth and lifetime counters.
func (o *Orchestrator) QueueStatus() types.QueueStatus {
	return o.scheduler.QueueStatus()
}

// AnalyzeWithFailover resolves a single request immediately, bypassing the
// batch queue but keeping cache, circuit breaker and failover semantics.
func (o *Orchestrator) AnalyzeWithFailover(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	return o.coordinator.Analyze(ctx, req)
}

// ProviderHealth reports breaker state per provider in priority order.
func (o *Orchestrator) ProviderHealth() []types.ProviderHealth {
	return o.coordinator.ProviderHealth()
}

// CacheStats reports hit, miss and eviction counters for the result cache.
func (o *Orchestrator) CacheStats() types.CacheStats {
	return o.cache.Stats()
}

// ClearCache empties both cache tiers.
func (o *Orchestrator) ClearCache(ctx context.Context) {
	o.cache.Clear(ctx)
}
