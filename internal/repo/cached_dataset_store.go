package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/pkg/cache"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// DatasetStore is anything that can resolve a dataset by name.
type DatasetStore interface {
	FindByName(ctx context.Context, name string) (*models.DatasetConfig, error)
}

const datasetCachePrefix = "insights:dataset:"

// CachedDatasetStore keeps recently used dataset configurations in Valkey.
// Misses are not cached. Cache failures fall through to the wrapped store.
type CachedDatasetStore struct {
	store  DatasetStore
	cache  cache.ValkeyCluster
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDatasetStore(store DatasetStore, c cache.ValkeyCluster, ttl time.Duration, log logger.Logger) *CachedDatasetStore {
	return &CachedDatasetStore{store: store, cache: c, ttl: ttl, logger: log}
}

func (s *CachedDatasetStore) FindByName(ctx context.Context, name string) (*models.DatasetConfig, error) {
	key := datasetCachePrefix + name
	if b, err := s.cache.Get(ctx, key); err == nil {
		var ds models.DatasetConfig
		if err := json.Unmarshal(b, &ds); err == nil {
			return &ds, nil
		}
		s.logger.Warn("Discarding undecodable cached dataset", "dataset", name)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Dataset cache read failed", "dataset", name, "error", err)
	}

	ds, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, ds, s.ttl); err != nil {
		s.logger.Warn("Dataset cache write failed", "dataset", name, "error", err)
	}
	return ds, nil
}

// Invalidate drops the cached entry for name.
func (s *CachedDatasetStore) Invalidate(ctx context.Context, name string) error {
	return s.cache.Delete(ctx, datasetCachePrefix+name)
}

func (s *CachedDatasetStore) HealthCheck(ctx context.Context) error {
	return s.cache.HealthCheck(ctx)
}
