package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/tracing"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultClockMargin  = time.Hour

	boundaryMin     = "min"
	boundaryMax     = "max"
	boundarySafeMax = "safe_max"
)

// FetchedBoundary holds the raw results of the three boundary queries.
type FetchedBoundary struct {
	MinTime     *int64
	MaxTime     *int64
	SafeMaxTime *int64
	// MaximumPossibleEndTime is now + clock margin, the exclusive end of the
	// safe interval.
	MaximumPossibleEndTime int64
}

// DatasetTimeResolver fetches a dataset's min, max and safe max concurrently.
type DatasetTimeResolver struct {
	source      TimeQuerySource
	timeout     time.Duration
	clockMargin time.Duration
	tracer      *tracing.InsightsTracer
	logger      logger.Logger
}

func NewDatasetTimeResolver(source TimeQuerySource, timeout, clockMargin time.Duration, tracer *tracing.InsightsTracer, log logger.Logger) *DatasetTimeResolver {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if clockMargin < 0 {
		clockMargin = DefaultClockMargin
	}
	if tracer == nil {
		tracer = tracing.NewInsightsTracer()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DatasetTimeResolver{source: source, timeout: timeout, clockMargin: clockMargin, tracer: tracer, logger: log}
}

// Resolve runs the unrestricted min, the unrestricted max and the max within
// [0, now+clockMargin) concurrently. Every query gets the same timeout; the
// first failure cancels the others and no partial result is returned.
func (r *DatasetTimeResolver) Resolve(ctx context.Context, dataset *models.DatasetConfig, now time.Time) (*FetchedBoundary, error) {
	maximumPossibleEndTime := now.UnixMilli() + r.clockMargin.Milliseconds()
	safeInterval := &models.Interval{Start: 0, End: maximumPossibleEndTime}

	var minTime, maxTime, safeMaxTime *int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		minTime, err = r.fetch(gctx, dataset, boundaryMin, func(ctx context.Context) (*int64, error) {
			return r.source.FetchMinTime(ctx, dataset, nil)
		})
		return err
	})
	g.Go(func() (err error) {
		maxTime, err = r.fetch(gctx, dataset, boundaryMax, func(ctx context.Context) (*int64, error) {
			return r.source.FetchMaxTime(ctx, dataset, nil)
		})
		return err
	})
	g.Go(func() (err error) {
		safeMaxTime, err = r.fetch(gctx, dataset, boundarySafeMax, func(ctx context.Context) (*int64, error) {
			return r.source.FetchMaxTime(ctx, dataset, safeInterval)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FetchedBoundary{
		MinTime:                minTime,
		MaxTime:                maxTime,
		SafeMaxTime:            safeMaxTime,
		MaximumPossibleEndTime: maximumPossibleEndTime,
	}, nil
}

type fetchResult struct {
	value *int64
	err   error
}

// fetch runs one query under its own deadline. A source that ignores ctx is
// abandoned at the deadline; its late result is discarded.
func (r *DatasetTimeResolver) fetch(ctx context.Context, dataset *models.DatasetConfig, kind string, query func(context.Context) (*int64, error)) (*int64, error) {
	ctx, span := r.tracer.StartBoundaryQuerySpan(ctx, dataset.Name, dataset.DataSource, kind)
	defer span.End()

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		v, err := query(qctx)
		done <- fetchResult{value: v, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-qctx.Done():
		res = fetchResult{err: qctx.Err()}
	}
	elapsed := time.Since(start)

	if res.err == nil {
		monitoring.RecordBoundaryQuery(kind, elapsed, monitoring.StatusSuccess)
		r.logger.Debug("boundary query completed", "dataset", dataset.Name, "kind", kind, "duration", elapsed)
		return res.value, nil
	}

	// qctx reports DeadlineExceeded for both its own timeout and an earlier
	// caller deadline; a failing sibling cancels with Canceled instead.
	if errors.Is(qctx.Err(), context.DeadlineExceeded) {
		monitoring.RecordBoundaryQuery(kind, elapsed, monitoring.StatusTimeout)
		monitoring.RecordBoundaryTimeout(dataset.Name)
		var terr *InsightsError
		if ctx.Err() != nil {
			terr = TimeoutError(res.err, "%s time query for dataset %s hit the request deadline", kind, dataset.Name)
		} else {
			terr = TimeoutError(res.err, "%s time query for dataset %s did not complete within %s", kind, dataset.Name, r.timeout)
		}
		r.tracer.RecordError(span, terr)
		r.logger.Error("boundary query timed out", "dataset", dataset.Name, "kind", kind, "timeout", r.timeout, "request_deadline", ctx.Err() != nil)
		return nil, terr
	}

	if ctx.Err() != nil {
		// cancelled by a failing sibling or by the caller
		return nil, ctx.Err()
	}

	monitoring.RecordBoundaryQuery(kind, elapsed, monitoring.StatusError)
	r.tracer.RecordError(span, res.err)
	return nil, fmt.Errorf("fetch %s time of dataset %s: %w", kind, dataset.Name, res.err)
}
