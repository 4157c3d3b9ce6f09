package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/platformbuilds/mirador-insights/internal/models"
)

// TimeQuerySource returns the earliest or latest event timestamp of a
// dataset, optionally restricted to an interval. A nil result means the
// dataset (or interval) holds no events. Implementations must honour ctx.
type TimeQuerySource interface {
	FetchMinTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error)
	FetchMaxTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error)
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SourceRegistry dispatches time queries to the source named by the
// dataset's DataSource.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]TimeQuerySource
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]TimeQuerySource)}
}

func (r *SourceRegistry) Register(name string, src TimeQuerySource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
}

func (r *SourceRegistry) Get(name string) (TimeQuerySource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Names returns the registered source names in sorted order.
func (r *SourceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *SourceRegistry) lookup(dataset *models.DatasetConfig) (TimeQuerySource, error) {
	r.mu.RLock()
	src, ok := r.sources[dataset.DataSource]
	r.mu.RUnlock()
	if !ok {
		return nil, NotFoundError(StatusDatasourceNotFound,
			"data source %q of dataset %s is not configured", dataset.DataSource, dataset.Name)
	}
	return src, nil
}

func (r *SourceRegistry) FetchMinTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	src, err := r.lookup(dataset)
	if err != nil {
		return nil, err
	}
	return src.FetchMinTime(ctx, dataset, interval)
}

func (r *SourceRegistry) FetchMaxTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	src, err := r.lookup(dataset)
	if err != nil {
		return nil, err
	}
	return src.FetchMaxTime(ctx, dataset, interval)
}

// HealthCheck pings every source that supports it.
func (r *SourceRegistry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for name, src := range r.sources {
		hc, ok := src.(healthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("data source %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
