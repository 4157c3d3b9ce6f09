package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// text layouts accepted for TIMESTAMP columns returned as strings
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

const sqliteTimestampLayout = "2006-01-02 15:04:05.000"

// SQLTimeService answers boundary queries with MIN/MAX over the dataset's
// time column.
type SQLTimeService struct {
	name   string
	client *sqlstore.Client
	logger logger.Logger
}

func NewSQLTimeService(name string, client *sqlstore.Client, log logger.Logger) *SQLTimeService {
	return &SQLTimeService{name: name, client: client, logger: log}
}

func (s *SQLTimeService) FetchMinTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	return s.fetch(ctx, "MIN", dataset, interval)
}

func (s *SQLTimeService) FetchMaxTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	return s.fetch(ctx, "MAX", dataset, interval)
}

func (s *SQLTimeService) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *SQLTimeService) fetch(ctx context.Context, aggregate string, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	query, args, err := s.buildQuery(aggregate, dataset, interval)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var raw any
	err = s.client.DB.QueryRowContext(ctx, query, args...).Scan(&raw)
	monitoring.RecordDBOperation(strings.ToLower(aggregate), dataset.EffectiveTable(), time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%s query on %s failed: %w", aggregate, dataset.EffectiveTable(), err)
	}
	s.logger.Debug("SQL boundary query executed", "source", s.name, "dataset", dataset.Name,
		"aggregate", aggregate, "took", time.Since(start))

	if raw == nil {
		return nil, nil
	}
	ms, err := s.toEpochMillis(raw, dataset)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}
	return &ms, nil
}

func (s *SQLTimeService) buildQuery(aggregate string, dataset *models.DatasetConfig, interval *models.Interval) (string, []any, error) {
	table := dataset.EffectiveTable()
	if !identifierPattern.MatchString(table) {
		return "", nil, InvalidConfigurationError(nil, "dataset %s: invalid table name %q", dataset.Name, table)
	}
	if dataset.TimeColumn == "" {
		return "", nil, ConfigurationError("dataset %s: timeColumn is not configured", dataset.Name)
	}
	if !identifierPattern.MatchString(dataset.TimeColumn) || strings.Contains(dataset.TimeColumn, ".") {
		return "", nil, InvalidConfigurationError(nil, "dataset %s: invalid time column %q", dataset.Name, dataset.TimeColumn)
	}

	col := sqlstore.QuoteIdentifier(s.client.Driver, dataset.TimeColumn)
	query := fmt.Sprintf("SELECT %s(%s) FROM %s", aggregate, col, sqlstore.QuoteIdentifier(s.client.Driver, table))
	if interval == nil {
		return query, nil, nil
	}

	lo, err := s.bound(interval.Start, dataset)
	if err != nil {
		return "", nil, err
	}
	hi, err := s.bound(interval.End, dataset)
	if err != nil {
		return "", nil, err
	}
	query += fmt.Sprintf(" WHERE %s >= ? AND %s < ?", col, col)
	return s.client.Rebind(query), []any{lo, hi}, nil
}

// bound converts epoch millis into the column's representation.
func (s *SQLTimeService) bound(ms int64, dataset *models.DatasetConfig) (any, error) {
	switch dataset.EffectiveTimeFormat() {
	case models.TimeFormatEpochMillis:
		return ms, nil
	case models.TimeFormatEpochSeconds:
		return ms / 1000, nil
	case models.TimeFormatTimestamp:
		loc, err := timeutil.ResolveLocation(dataset.Timezone, time.UTC)
		if err != nil {
			return nil, InvalidConfigurationError(err, "dataset %s: invalid timezone", dataset.Name)
		}
		t := time.UnixMilli(ms).In(loc)
		if s.client.Driver == sqlstore.DriverSQLite {
			return t.Format(sqliteTimestampLayout), nil
		}
		return t, nil
	}
	return nil, InvalidConfigurationError(nil, "dataset %s: unsupported time format %q", dataset.Name, dataset.TimeFormat)
}

func (s *SQLTimeService) toEpochMillis(raw any, dataset *models.DatasetConfig) (int64, error) {
	format := dataset.EffectiveTimeFormat()
	if format == models.TimeFormatTimestamp {
		loc, err := timeutil.ResolveLocation(dataset.Timezone, time.UTC)
		if err != nil {
			return 0, InvalidConfigurationError(err, "dataset %s: invalid timezone", dataset.Name)
		}
		t, err := asTime(raw, loc)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	}

	n, err := asFloat(raw)
	if err != nil {
		return 0, err
	}
	if format == models.TimeFormatEpochSeconds {
		n *= 1000
	}
	return int64(math.Round(n)), nil
}

func asFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unexpected numeric time value of type %T", raw)
}

// asTime reads a TIMESTAMP result. Driver-decoded times are taken as is;
// text without an offset is read in the dataset's timezone.
func asTime(raw any, loc *time.Location) (time.Time, error) {
	var text string
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp value of type %T", raw)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", text)
}
