package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService wraps the cache repository with metrics and makes every
// failure non-fatal: callers fall back to the database.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether dest was filled from cache.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Generation returns the counter stored at key, 0 when it was never bumped.
// ok is false when caching is off or the counter could not be read, in which
// case callers must neither read nor fill generation-scoped entries.
func (s *CacheService) Generation(ctx context.Context, key string) (gen int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	err := s.repo.Get(ctx, key, &gen)
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, appErrors.ErrCacheMiss):
		return 0, true
	default:
		s.logger.Warn("cache generation read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
}

// Bump advances the counter at key so entries keyed by older generations are
// never read again.
func (s *CacheService) Bump(ctx context.Context, key string) bool {
	if !s.Enabled() {
		return false
	}
	if _, err := s.repo.Incr(ctx, key); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
