// Package cache holds the Valkey (Redis protocol) cache used to front dataset
// configuration lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ValkeyCluster is the key/value cache used for dataset configurations.
type ValkeyCluster interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Options selects and configures the Valkey client.
type Options struct {
	Nodes    []string
	Password string
	DB       int
	TTL      time.Duration
}

const dialTimeout = 5 * time.Second

type valkeyClient struct {
	client redis.UniversalClient
	mode   string
	ttl    time.Duration
}

// Dial connects to Valkey. A single node gets a plain client, several nodes a
// cluster client. The connection is verified with PING.
func Dial(opts Options) (ValkeyCluster, error) {
	if len(opts.Nodes) == 0 {
		return nil, errors.New("valkey: no nodes configured")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        opts.Nodes,
		Password:     opts.Password,
		DB:           opts.DB,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	mode := "single"
	if _, ok := client.(*redis.ClusterClient); ok {
		mode = "cluster"
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey %s at %v: %w", mode, opts.Nodes, err)
	}
	return &valkeyClient{client: client, mode: mode, ttl: opts.TTL}, nil
}

// New dials Valkey and, when it is unreachable, returns an in-memory cache
// that upgrades itself once the server comes up.
func New(opts Options, log logger.Logger) ValkeyCluster {
	dial := func() (ValkeyCluster, error) { return Dial(opts) }
	c, err := dial()
	if err == nil {
		log.Info("Valkey cache connected", "nodes", opts.Nodes, "mode", c.(*valkeyClient).mode)
		return c
	}
	log.Warn("Valkey not reachable at startup", "nodes", opts.Nodes, "error", err)
	return newAutoSwapCache(NewNoopValkeyCache(opts.TTL, log), log, autoSwapRetryInterval, dial)
}

func (v *valkeyClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	case err != nil:
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (v *valkeyClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (v *valkeyClient) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

func (v *valkeyClient) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *valkeyClient) Close() error {
	return v.client.Close()
}

// encode stores bytes and strings as-is and everything else as JSON.
func encode(value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return json.Marshal(x)
	}
}
