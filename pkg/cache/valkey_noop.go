package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

type noopEntry struct {
	value     []byte
	expiresAt time.Time
}

// noopValkeyCache provides an in-memory, process-local fallback that satisfies
// ValkeyCluster when the external cache is unavailable. Data is not shared
// across replicas and is lost on restart.
type noopValkeyCache struct {
	m      map[string]noopEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger logger.Logger
}

func NewNoopValkeyCache(defaultTTL time.Duration, log logger.Logger) ValkeyCluster {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopValkeyCache{m: make(map[string]noopEntry), ttl: defaultTTL, logger: log}
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	e, ok := n.m[key]
	n.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	monitoring.RecordCacheOperation("get", "hit")
	return e.value, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = n.ttl
	}
	e := noopEntry{value: b}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = e
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

// HealthCheck always fails so readiness reports the degraded cache.
func (n *noopValkeyCache) HealthCheck(ctx context.Context) error {
	return errors.New("valkey cache unavailable: using in-memory fallback")
}
