// Package failover implements the provider failover coordinator: cache-first
// analysis with circuit-breaker gating over a priority-ordered provider list.
package failover

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/athenasec/athena/internal/cache"
	"github.com/athenasec/athena/internal/telemetry"
	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/provider"
	"github.com/athenasec/athena/pkg/resilience"
	"github.com/athenasec/athena/pkg/types"
)

// Config contains coordinator configuration
type Config struct {
	// CallTimeout bounds each individual provider call
	CallTimeout time.Duration
	// ResultTTL is the cache TTL for successful results
	ResultTTL time.Duration
	// Breaker configures the per-provider circuit breakers
	Breaker resilience.CircuitBreakerConfig
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		CallTimeout: 30 * time.Second,
		ResultTTL:   1 * time.Hour,
		Breaker:     resilience.DefaultCircuitBreakerConfig(""),
	}
}

// Coordinator tries providers in priority order until one succeeds,
// consulting the result cache first and each provider's circuit breaker
// before every call.
type Coordinator struct {
	providers []provider.Adapter
	breakers  map[string]*resilience.CircuitBreaker
	cache     *cache.Service
	config    Config
	logger    *logging.Logger
	sink      telemetry.Sink
}

// NewCoordinator creates a coordinator over the given priority-ordered
// adapter list. cacheService is required; sink may be nil.
func NewCoordinator(adapters []provider.Adapter, cacheService *cache.Service, config Config, logger *logging.Logger, sink telemetry.Sink) (*Coordinator, error) {
	if len(adapters) == 0 {
		return nil, errors.NewConfigError("at least one provider adapter is required")
	}
	if cacheService == nil {
		return nil, errors.NewConfigError("cache service is required")
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 30 * time.Second
	}

	breakers := make(map[string]*resilience.CircuitBreaker, len(adapters))
	for _, adapter := range adapters {
		name := adapter.Name()
		if name == "" {
			return nil, errors.NewConfigError("provider adapter has an empty name")
		}
		if _, exists := breakers[name]; exists {
			return nil, errors.NewConfigError("duplicate provider adapter: " + name)
		}

		breakerCfg := config.Breaker
		breakerCfg.Name = name
		prevCallback := breakerCfg.OnStateChange
		breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
			switch to {
			case resilience.StateOpen:
				telemetry.Record(sink, telemetry.Event{Kind: telemetry.EventBreakerOpened, Provider: name})
			case resilience.StateClosed:
				telemetry.Record(sink, telemetry.Event{Kind: telemetry.EventBreakerClosed, Provider: name})
			}
			if prevCallback != nil {
				prevCallback(name, from, to)
			}
		}
		breakers[name] = resilience.NewCircuitBreaker(breakerCfg)
	}

	return &Coordinator{
		providers: adapters,
		breakers:  breakers,
		cache:     cacheService,
		config:    config,
		logger:    logger,
		sink:      sink,
	}, nil
}

// Analyze resolves one analysis request. A cache hit returns immediately
// without touching providers or breaker state. On a miss, providers are
// tried in priority order; the first success is written through to the cache
// and returned. When every provider is skipped or fails, the returned error
// is an *errors.AllProvidersFailedError carrying per-provider reasons.
func (c *Coordinator) Analyze(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	if req == nil {
		return nil, errors.NewValidationError("analysis request is required")
	}
	if !req.AnalysisType.Valid() {
		return nil, errors.NewValidationError("unknown analysis type: " + string(req.AnalysisType))
	}

	key := CacheKey(req.Content, req.AnalysisType, req.Options)

	if data, ok := c.cache.Get(ctx, key); ok {
		var result types.AnalysisResult
		if err := json.Unmarshal(data, &result); err == nil {
			return &result, nil
		}
		// A corrupt entry falls through to the provider path; the write-back
		// below replaces it.
		c.logger.WithComponent("failover").WithField("key", key).
			Warn("discarding undecodable cache entry")
	}

	reasons := make(map[string]error, len(c.providers))

	for _, adapter := range c.providers {
		name := adapter.Name()
		breaker := c.breakers[name]

		if !breaker.AllowRequest() {
			reasons[name] = errors.NewProviderError(name, "circuit breaker open")
			telemetry.Record(c.sink, telemetry.Event{Kind: telemetry.EventProviderSkipped, Provider: name})
			continue
		}

		result, err := c.callProvider(ctx, adapter, req)
		if err != nil {
			if ctx.Err() != nil {
				// The caller's context died mid-call. That says nothing about
				// the provider's health, so the breaker is untouched, and
				// further providers would fail the same way.
				reasons[name] = err
				break
			}

			breaker.RecordFailure()
			reasons[name] = err
			telemetry.Record(c.sink, telemetry.Event{
				Kind:         telemetry.EventProviderFailure,
				Provider:     name,
				AnalysisType: string(req.AnalysisType),
				Error:        err.Error(),
			})
			c.logger.WithComponent("failover").WithField("provider", name).WithError(err).
				Warn("provider call failed, trying next provider")
			continue
		}

		breaker.RecordSuccess()
		telemetry.Record(c.sink, telemetry.Event{
			Kind:         telemetry.EventProviderCall,
			Provider:     name,
			AnalysisType: string(req.AnalysisType),
			Duration:     result.ProcessingTime,
		})

		if data, err := json.Marshal(result); err == nil {
			c.cache.Set(ctx, key, data, c.config.ResultTTL)
		}

		return result, nil
	}

	return nil, errors.NewAllProvidersFailedError(reasons)
}

// callProvider invokes one adapter under the per-call timeout. A timeout is
// indistinguishable from a provider failure for breaker purposes.
func (c *Coordinator) callProvider(ctx context.Context, adapter provider.Adapter, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	start := time.Now()
	result, err := adapter.Analyze(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("provider call").
				WithDetail("provider", adapter.Name()).
				WithCause(err)
		}
		return nil, errors.NewProviderError(adapter.Name(), err.Error()).WithCause(err)
	}
	if result == nil {
		return nil, errors.NewProviderError(adapter.Name(), "provider returned no result")
	}

	if result.ProcessingTime == 0 {
		result.ProcessingTime = elapsed
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	result.Provider = adapter.Name()

	return result, nil
}

// ProviderHealth returns breaker snapshots in provider priority order
func (c *Coordinator) ProviderHealth() []types.ProviderHealth {
	health := make([]types.ProviderHealth, 0, len(c.providers))
	for _, adapter := range c.providers {
		health = append(health, c.breakers[adapter.Name()].Health())
	}
	return health
}

// Breaker exposes a provider's circuit breaker, used by tests and the
// orchestrator's health endpoint
func (c *Coordinator) Breaker(providerName string) *resilience.CircuitBreaker {
	return c.breakers[providerName]
}

// CacheKey derives the deterministic content-addressed cache key for a
// request: a sha256 over the content, analysis type, and the sorted option
// parameters that affect the result.
func CacheKey(content string, analysisType types.AnalysisType, options map[string]string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(analysisType))
	h.Write([]byte{0})
	h.Write([]byte(paramsSignature(options)))
	return hex.EncodeToString(h.Sum(nil))
}

// paramsSignature canonicalizes request options so that key derivation is
// independent of map iteration order. Each key and value is length-prefixed
// so option contents can never collide with the encoding itself.
func paramsSignature(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.Itoa(len(k)))
		sb.WriteByte(':')
		sb.WriteString(k)
		sb.WriteString(strconv.Itoa(len(options[k])))
		sb.WriteByte(':')
		sb.WriteString(options[k])
	}
	return sb.String()
}
