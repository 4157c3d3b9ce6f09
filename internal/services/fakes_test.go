package services

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/models"
)

// fakeResponse is what fakeSource returns for one query kind.
type fakeResponse struct {
	value *int64
	err   error
	delay time.Duration
	// ignoreCtx makes the fake sleep through cancellation
	ignoreCtx bool
}

// fakeSource answers min, max and safe-max (max with an interval) queries
// from canned responses.
type fakeSource struct {
	min, max, safeMax fakeResponse

	mu        sync.Mutex
	intervals []*models.Interval
}

func (f *fakeSource) FetchMinTime(ctx context.Context, _ *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	f.record(interval)
	return f.min.answer(ctx)
}

func (f *fakeSource) FetchMaxTime(ctx context.Context, _ *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	f.record(interval)
	if interval != nil {
		return f.safeMax.answer(ctx)
	}
	return f.max.answer(ctx)
}

func (f *fakeSource) record(interval *models.Interval) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intervals = append(f.intervals, interval)
}

func (f *fakeSource) safeInterval() *models.Interval {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.intervals {
		if i != nil {
			return i
		}
	}
	return nil
}

func (r fakeResponse) answer(ctx context.Context) (*int64, error) {
	if r.delay > 0 {
		if r.ignoreCtx {
			time.Sleep(r.delay)
		} else {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return r.value, r.err
}

func ms(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}
