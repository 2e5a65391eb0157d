// Package cache implements the tiered result cache: a bounded in-process LRU
// tier in front of an optional distributed backend. Reads check the local
// tier first and populate it on a distributed hit; writes go through to both
// tiers. Distributed-tier failures are logged and never fatal.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/athenasec/athena/internal/telemetry"
	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/types"
)

// Service is the tiered result cache. Safe for concurrent use.
type Service struct {
	mu     sync.Mutex
	local  *lru
	hits   int64
	misses int64

	backend    Backend
	defaultTTL time.Duration
	logger     *logging.Logger
	sink       telemetry.Sink
}

// NewService creates a tiered cache. backend and sink may be nil. Zero or
// negative limits fall back to the configuration defaults so a zero-value
// CacheConfig never produces a cache that evicts every write.
func NewService(cfg config.CacheConfig, backend Backend, logger *logging.Logger, sink telemetry.Sink) *Service {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 * 1024 * 1024
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 1 * time.Hour
	}

	return &Service{
		local:      newLRU(cfg.MaxBytes, cfg.MaxEntries),
		backend:    backend,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
		sink:       sink,
	}
}

// Get returns the cached value for key, or ok=false on a miss. Expired local
// entries count as misses and are evicted in place.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	s.mu.Lock()
	value, ok := s.local.get(key, now)
	if ok {
		s.hits++
		s.mu.Unlock()
		telemetry.Record(s.sink, telemetry.Event{Kind: telemetry.EventCacheHit})
		return value, true
	}
	s.mu.Unlock()

	if s.backend != nil {
		value, found, err := s.backend.Get(ctx, key)
		if err != nil {
			s.logger.WithComponent("cache").WithError(err).
				Warn("distributed cache read failed, falling back to local tier")
		} else if found {
			// Populate the local tier so subsequent reads stay in process.
			// The remaining distributed TTL is unknown; the local copy gets
			// the default TTL and Redis remains authoritative for expiry.
			s.mu.Lock()
			s.local.set(key, value, s.defaultTTL, now)
			s.hits++
			s.mu.Unlock()
			telemetry.Record(s.sink, telemetry.Event{Kind: telemetry.EventCacheHit})
			return value, true
		}
	}

	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
	telemetry.Record(s.sink, telemetry.Event{Kind: telemetry.EventCacheMiss})
	return nil, false
}

// Set writes the value to both tiers. A distributed-tier failure is logged
// and the local write still stands.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	before := s.local.evictions
	s.local.set(key, value, ttl, time.Now())
	evicted := s.local.evictions - before
	s.mu.Unlock()

	for i := int64(0); i < evicted; i++ {
		telemetry.Record(s.sink, telemetry.Event{Kind: telemetry.EventCacheEviction})
	}

	if s.backend != nil {
		if err := s.backend.Set(ctx, key, value, ttl); err != nil {
			s.logger.WithComponent("cache").WithError(err).
				Warn("distributed cache write failed, local tier updated")
		}
	}
}

// Stats returns a snapshot of cache counters. Size and entry counts cover
// the local tier only.
func (s *Service) Stats() types.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.CacheStats{
		Hits:             s.hits,
		Misses:           s.misses,
		Evictions:        s.local.evictions,
		CurrentSizeBytes: s.local.sizeBytes,
		EntryCount:       s.local.len(),
	}
}

// Clear empties both tiers. Counters are preserved; a distributed-tier
// failure is logged and the local clear still stands.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.local.clear()
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.Clear(ctx); err != nil {
			s.logger.WithComponent("cache").WithError(err).
				Warn("distributed cache clear failed")
		}
	}
}
