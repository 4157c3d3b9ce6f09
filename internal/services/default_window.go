package services

import (
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
)

type lookbackRule struct {
	maxGranularity time.Duration
	lookback       timeutil.Period
}

var (
	// calendarLookback applies to any granularity with a month or year part.
	calendarLookback = timeutil.Years(4)
	// fallbackLookback applies to fixed granularities longer than a week.
	fallbackLookback = timeutil.Years(3)

	lookbackRules = []lookbackRule{
		{10 * time.Millisecond, timeutil.Seconds(20)},
		{100 * time.Millisecond, timeutil.Minutes(4)},
		{time.Second, timeutil.Minutes(30)},
		{15 * time.Second, timeutil.Hours(8)},
		{time.Minute, timeutil.Days(2)},
		{5 * time.Minute, timeutil.Days(7)},
		{15 * time.Minute, timeutil.Days(14)},
		{time.Hour, timeutil.Months(2)},
		{24 * time.Hour, timeutil.Months(6)},
		{7 * 24 * time.Hour, timeutil.Years(2)},
	}
)

// DefaultChartTimeframe returns how far back the default chart reaches for a
// granularity.
func DefaultChartTimeframe(granularity timeutil.Period) timeutil.Period {
	if granularity.IsCalendar() {
		return calendarLookback
	}
	d, _ := granularity.StandardDuration()
	for _, rule := range lookbackRules {
		if d <= rule.maxGranularity {
			return rule.lookback
		}
	}
	return fallbackLookback
}

// DefaultWindowCalculator derives the initial chart range of a dataset.
type DefaultWindowCalculator struct {
	defaultLocation *time.Location
}

// NewDefaultWindowCalculator uses loc when an alert names no timezone.
func NewDefaultWindowCalculator(loc *time.Location) *DefaultWindowCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &DefaultWindowCalculator{defaultLocation: loc}
}

// Compute returns [start, end) aligned on granularity buckets in the given
// timezone. The window ends with the bucket holding datasetEnd and reaches
// back by DefaultChartTimeframe, but never into the first, partially filled
// bucket of the dataset unless the dataset is too short to leave another.
func (c *DefaultWindowCalculator) Compute(datasetStart, datasetEnd int64, timezone string, granularity timeutil.Period) (models.DefaultWindow, error) {
	if granularity.IsZero() {
		return models.DefaultWindow{}, InvalidConfigurationError(nil, "granularity must not be zero")
	}
	loc, err := timeutil.ResolveLocation(timezone, c.defaultLocation)
	if err != nil {
		return models.DefaultWindow{}, InvalidConfigurationError(err, "timezone %q is not a valid zone id", timezone)
	}

	endBucketStart, err := timeutil.FloorByPeriod(timeutil.FromEpochMillis(datasetEnd, loc), granularity)
	if err != nil {
		return models.DefaultWindow{}, fmt.Errorf("floor dataset end: %w", err)
	}

	lookback := DefaultChartTimeframe(granularity)
	start := lookback.Minus(endBucketStart)
	if start.UnixMilli() < datasetStart {
		firstBucket, err := timeutil.FloorByPeriod(timeutil.FromEpochMillis(datasetStart, loc), granularity)
		if err != nil {
			return models.DefaultWindow{}, fmt.Errorf("floor dataset start: %w", err)
		}
		start = granularity.Plus(firstBucket)
		if start.After(endBucketStart) {
			start = endBucketStart
		}
	}
	end := granularity.Plus(endBucketStart)

	return models.DefaultWindow{
		StartTime:   start.UnixMilli(),
		EndTime:     end.UnixMilli(),
		Granularity: granularity.String(),
		Lookback:    lookback.String(),
		Timezone:    loc.String(),
	}, nil
}
