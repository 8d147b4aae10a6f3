package rediscache

import (
	"context"

	"github.com/rs/zerolog"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/logging"
	"equity-momentum-lab/internal/storage"
)

// CacheObserver is told about every cache lookup.
type CacheObserver func(hit bool)

// CachedRunStore is a read-through cache in front of a storage.RunStore.
// Cache failures degrade to the backing store and are only logged.
type CachedRunStore struct {
	inner    storage.RunStore
	cache    *ResultCache
	observer CacheObserver
	log      zerolog.Logger
}

// Option configures a CachedRunStore.
type Option func(*CachedRunStore)

// WithObserver registers fn for cache hit/miss accounting.
func WithObserver(fn CacheObserver) Option {
	return func(s *CachedRunStore) { s.observer = fn }
}

// WithLogger sets the logger used for cache failures.
func WithLogger(log zerolog.Logger) Option {
	return func(s *CachedRunStore) { s.log = logging.Component(log, "run_cache") }
}

// NewCachedRunStore wraps inner with cache.
func NewCachedRunStore(inner storage.RunStore, cache *ResultCache, opts ...Option) *CachedRunStore {
	s := &CachedRunStore{
		inner: inner,
		cache: cache,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.RunStore = (*CachedRunStore)(nil)

// Insert writes through to the backing store, then warms the cache.
func (s *CachedRunStore) Insert(ctx context.Context, r *domain.BacktestResult) error {
	if err := s.inner.Insert(ctx, r); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, r); err != nil {
		s.log.Warn().Err(err).Str("run_id", r.RunID).Msg("cache set failed")
	}
	return nil
}

// GetByID serves from the cache, falling back to the backing store on a miss.
func (s *CachedRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	cached, found, err := s.cache.Get(ctx, runID)
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("cache get failed")
	}
	s.observe(found)
	if found {
		return cached, nil
	}

	r, err := s.inner.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, r); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("cache set failed")
	}
	return r, nil
}

// List is not cached; run listings change with every insert.
func (s *CachedRunStore) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return s.inner.List(ctx, limit)
}

func (s *CachedRunStore) observe(hit bool) {
	if s.observer != nil {
		s.observer(hit)
	}
}
