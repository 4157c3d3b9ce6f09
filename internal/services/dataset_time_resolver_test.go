package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

var testDataset = &models.DatasetConfig{Name: "pageviews", DataSource: "warehouse", TimeColumn: "ts"}

func TestResolve_ReturnsAllThreeBoundaries(t *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		min:     fakeResponse{value: ms(now.AddDate(-1, 0, 0))},
		max:     fakeResponse{value: ms(now.Add(-time.Minute))},
		safeMax: fakeResponse{value: ms(now.Add(-time.Minute))},
	}
	r := NewDatasetTimeResolver(src, time.Second, time.Hour, nil, logger.NewNop())

	got, err := r.Resolve(context.Background(), testDataset, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(-1, 0, 0).UnixMilli(), *got.MinTime)
	assert.Equal(t, now.Add(-time.Minute).UnixMilli(), *got.MaxTime)
	assert.Equal(t, now.Add(-time.Minute).UnixMilli(), *got.SafeMaxTime)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), got.MaximumPossibleEndTime)

	safe := src.safeInterval()
	require.NotNil(t, safe)
	assert.Equal(t, int64(0), safe.Start)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), safe.End)
}

func TestResolve_AbsentValuesStayNil(t *testing.T) {
	r := NewDatasetTimeResolver(&fakeSource{}, time.Second, time.Hour, nil, logger.NewNop())

	got, err := r.Resolve(context.Background(), testDataset, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got.MinTime)
	assert.Nil(t, got.MaxTime)
	assert.Nil(t, got.SafeMaxTime)
}

func TestResolve_QueriesRunConcurrently(t *testing.T) {
	delay := 150 * time.Millisecond
	src := &fakeSource{
		min:     fakeResponse{delay: delay},
		max:     fakeResponse{delay: delay},
		safeMax: fakeResponse{delay: delay},
	}
	r := NewDatasetTimeResolver(src, 2*time.Second, time.Hour, nil, logger.NewNop())

	start := time.Now()
	_, err := r.Resolve(context.Background(), testDataset, time.Now())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*delay)
}

func TestResolve_TimeoutFailsWholeResolution(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		min:     fakeResponse{value: ms(now), delay: time.Hour},
		max:     fakeResponse{value: ms(now)},
		safeMax: fakeResponse{value: ms(now)},
	}
	r := NewDatasetTimeResolver(src, 50*time.Millisecond, time.Hour, nil, logger.NewNop())

	got, err := r.Resolve(context.Background(), testDataset, now)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, StatusTimeout, StatusOf(err))
}

func TestResolve_AbandonsSourceIgnoringContext(t *testing.T) {
	src := &fakeSource{max: fakeResponse{delay: 500 * time.Millisecond, ignoreCtx: true}}
	r := NewDatasetTimeResolver(src, 30*time.Millisecond, time.Hour, nil, logger.NewNop())

	start := time.Now()
	_, err := r.Resolve(context.Background(), testDataset, time.Now())
	require.Error(t, err)
	assert.Equal(t, StatusTimeout, StatusOf(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestResolve_SourceErrorIsWrapped(t *testing.T) {
	boom := errors.New("table does not exist")
	src := &fakeSource{safeMax: fakeResponse{err: boom}}
	r := NewDatasetTimeResolver(src, time.Second, time.Hour, nil, logger.NewNop())

	_, err := r.Resolve(context.Background(), testDataset, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pageviews")
	assert.Equal(t, StatusUnknown, StatusOf(err))
}

func TestResolve_ClassifiedSourceErrorKeepsStatus(t *testing.T) {
	src := &fakeSource{min: fakeResponse{err: ConfigurationError("timeColumn is not configured")}}
	r := NewDatasetTimeResolver(src, time.Second, time.Hour, nil, logger.NewNop())

	_, err := r.Resolve(context.Background(), testDataset, time.Now())
	assert.Equal(t, StatusMissingConfigurationField, StatusOf(err))
}

func TestResolve_CallerCancellation(t *testing.T) {
	src := &fakeSource{min: fakeResponse{delay: time.Hour}}
	r := NewDatasetTimeResolver(src, time.Minute, time.Hour, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := r.Resolve(ctx, testDataset, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, StatusTimeout, StatusOf(err))
}

func TestResolve_CallerDeadlineIsTimeout(t *testing.T) {
	src := &fakeSource{min: fakeResponse{delay: time.Hour}}
	r := NewDatasetTimeResolver(src, time.Minute, time.Hour, nil, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, testDataset, time.Now())
	require.Error(t, err)
	var ie *InsightsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, StatusTimeout, ie.Status)
	assert.Contains(t, ie.Message, "request deadline")
}

func TestNewDatasetTimeResolver_Defaults(t *testing.T) {
	r := NewDatasetTimeResolver(&fakeSource{}, 0, -1, nil, nil)
	assert.Equal(t, DefaultFetchTimeout, r.timeout)
	assert.Equal(t, DefaultClockMargin, r.clockMargin)
	assert.NotNil(t, r.logger)
	assert.NotNil(t, r.tracer)
}
