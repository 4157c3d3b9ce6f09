package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/repo"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

func testCatalog(t *testing.T) *repo.Catalog {
	t.Helper()
	c, err := repo.NewCatalog(&repo.CatalogFile{
		Datasets: []models.DatasetConfig{
			{Name: "pageviews", DataSource: "warehouse", TimeColumn: "ts"},
			{Name: "orphan", TimeColumn: "ts"},
		},
		Templates: []models.AlertTemplate{{
			Name: "daily",
			Metadata: map[string]interface{}{
				"dataset":     map[string]interface{}{"name": "${dataset}"},
				"granularity": "${monitoringGranularity}",
				"timezone":    "${timezone}",
			},
			DefaultProperties: map[string]interface{}{
				"timezone":              "UTC",
				"monitoringGranularity": "P1D",
			},
		}},
		Alerts: []models.AlertSpec{{
			ID:                 "42",
			Name:               "pageviews-drop",
			Template:           &models.AlertTemplate{Name: "daily"},
			TemplateProperties: map[string]interface{}{"dataset": "pageviews"},
		}},
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func newTestProvider(t *testing.T, src TimeQuerySource, now time.Time, log logger.Logger) *AlertInsightsProvider {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(now)
	cat := testCatalog(t)
	return NewAlertInsightsProvider(ProviderDeps{
		Renderer: NewAlertTemplateRenderer(cat),
		Datasets: cat,
		Alerts:   cat,
		Resolver: NewDatasetTimeResolver(src, 200*time.Millisecond, time.Hour, nil, log),
		Window:   NewDefaultWindowCalculator(time.UTC),
		Clock:    clock,
		Logger:   log,
	})
}

func dailyAlert(props map[string]interface{}) *models.AlertSpec {
	return &models.AlertSpec{
		Name:               "inline",
		Template:           &models.AlertTemplate{Name: "daily"},
		TemplateProperties: props,
	}
}

func TestGetInsights_Complete(t *testing.T) {
	now := utc(2024, time.February, 1, 0)
	src := &fakeSource{
		min:     fakeResponse{value: ms(utc(2024, time.January, 1, 0))},
		max:     fakeResponse{value: ms(utc(2024, time.January, 31, 0).Add(-time.Millisecond))},
		safeMax: fakeResponse{value: ms(utc(2024, time.January, 31, 0).Add(-time.Millisecond))},
	}
	p := newTestProvider(t, src, now, logger.NewNop())

	got, err := p.GetInsights(context.Background(), dailyAlert(map[string]interface{}{"dataset": "pageviews"}))
	require.NoError(t, err)
	assert.Equal(t, "pageviews", got.TemplateWithProperties.Metadata.DatasetName())
	assert.Equal(t, utc(2024, time.January, 1, 0).UnixMilli(), *got.DatasetStartTime)
	assert.Nil(t, got.SuspiciousDatasetEndTime)
	assert.Equal(t, utc(2024, time.January, 2, 0).UnixMilli(), *got.DefaultStartTime)
	assert.Equal(t, utc(2024, time.January, 31, 0).UnixMilli(), *got.DefaultEndTime)

	// the safe interval ends one clock margin after the mocked now
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), src.safeInterval().End)
}

func TestGetInsights_SuspiciousMaxTime(t *testing.T) {
	now := utc(2024, time.March, 10, 8)
	raw := now.Add(48 * time.Hour)
	safe := now.Add(-5 * time.Minute)
	src := &fakeSource{
		min:     fakeResponse{value: ms(now.AddDate(0, -3, 0))},
		max:     fakeResponse{value: ms(raw)},
		safeMax: fakeResponse{value: ms(safe)},
	}
	log := logger.NewMockLogger()
	p := newTestProvider(t, src, now, log)

	got, err := p.GetInsights(context.Background(), dailyAlert(map[string]interface{}{"dataset": "pageviews"}))
	require.NoError(t, err)
	assert.Equal(t, safe.UnixMilli(), *got.DatasetEndTime)
	assert.Equal(t, raw.UnixMilli(), *got.SuspiciousDatasetEndTime)
	assert.Equal(t, utc(2024, time.March, 11, 0).UnixMilli(), *got.DefaultEndTime)
	assert.Equal(t, 1, log.Count("warn"))
}

func TestGetInsights_DegradedWithoutTimes(t *testing.T) {
	src := &fakeSource{max: fakeResponse{value: ms(utc(2024, time.January, 5, 0))}}
	p := newTestProvider(t, src, utc(2024, time.February, 1, 0), logger.NewNop())

	// no granularity is needed when no window can be computed
	got, err := p.GetInsights(context.Background(), dailyAlert(map[string]interface{}{
		"dataset": "pageviews", "monitoringGranularity": "weekly",
	}))
	require.NoError(t, err)
	assert.Nil(t, got.DatasetStartTime)
	assert.NotNil(t, got.DatasetEndTime)
	assert.Nil(t, got.DefaultStartTime)
	assert.Nil(t, got.DefaultEndTime)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "datasetStartTime")
	assert.NotContains(t, string(b), "defaultStartTime")
}

func TestGetInsights_Errors(t *testing.T) {
	full := &fakeSource{
		min:     fakeResponse{value: ms(utc(2024, time.January, 1, 0))},
		max:     fakeResponse{value: ms(utc(2024, time.January, 20, 0))},
		safeMax: fakeResponse{value: ms(utc(2024, time.January, 20, 0))},
	}
	now := utc(2024, time.February, 1, 0)

	tests := []struct {
		name  string
		src   TimeQuerySource
		alert *models.AlertSpec
		want  Status
	}{
		{"nil alert", full, nil, StatusInvalidRequest},
		{"unknown template", full, &models.AlertSpec{Template: &models.AlertTemplate{Name: "nope"}}, StatusTemplateNotFound},
		{"missing property", full, dailyAlert(nil), StatusTemplateMissingProperty},
		{"unknown dataset", full, dailyAlert(map[string]interface{}{"dataset": "nope"}), StatusDatasetNotFound},
		{"dataset without datasource", full, dailyAlert(map[string]interface{}{"dataset": "orphan"}), StatusMissingConfigurationField},
		{"invalid granularity", full, dailyAlert(map[string]interface{}{"dataset": "pageviews", "monitoringGranularity": "daily"}), StatusInvalidConfigurationField},
		{"invalid timezone", full, dailyAlert(map[string]interface{}{"dataset": "pageviews", "timezone": "Moon/Base"}), StatusInvalidConfigurationField},
		{"empty granularity", full, dailyAlert(map[string]interface{}{"dataset": "pageviews", "monitoringGranularity": ""}), StatusMissingConfigurationField},
		{"empty dataset name", full, dailyAlert(map[string]interface{}{"dataset": ""}), StatusMissingConfigurationField},
		{"boundary query timeout", &fakeSource{min: fakeResponse{delay: time.Hour}}, dailyAlert(map[string]interface{}{"dataset": "pageviews"}), StatusTimeout},
		{"boundary query failure", &fakeSource{max: fakeResponse{err: errors.New("connection refused")}}, dailyAlert(map[string]interface{}{"dataset": "pageviews"}), StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.src, now, logger.NewNop())
			got, err := p.GetInsights(context.Background(), tt.alert)
			assert.Nil(t, got)
			require.Error(t, err)
			var ie *InsightsError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.want, ie.Status)
		})
	}
}

func TestGetInsights_RequestDeadlineIsTimeout(t *testing.T) {
	src := &fakeSource{
		min:     fakeResponse{delay: time.Hour},
		max:     fakeResponse{value: ms(utc(2024, time.January, 31, 0))},
		safeMax: fakeResponse{value: ms(utc(2024, time.January, 31, 0))},
	}
	p := newTestProvider(t, src, utc(2024, time.February, 1, 0), logger.NewNop())

	// the request deadline fires well before the 200ms per-query timeout
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got, err := p.GetInsights(ctx, dailyAlert(map[string]interface{}{"dataset": "pageviews"}))
	assert.Nil(t, got)
	var ie *InsightsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, StatusTimeout, ie.Status)
	assert.Equal(t, http.StatusGatewayTimeout, ie.HTTPStatus())
}

func TestGetInsights_LookupFailureIsUnknown(t *testing.T) {
	cat := testCatalog(t)
	p := NewAlertInsightsProvider(ProviderDeps{
		Renderer: NewAlertTemplateRenderer(cat),
		Datasets: failingDatasets{},
		Resolver: NewDatasetTimeResolver(&fakeSource{}, time.Second, time.Hour, nil, nil),
	})
	_, err := p.GetInsights(context.Background(), dailyAlert(map[string]interface{}{"dataset": "pageviews"}))
	assert.Equal(t, StatusUnknown, StatusOf(err))
}

type failingDatasets struct{}

func (failingDatasets) FindByName(context.Context, string) (*models.DatasetConfig, error) {
	return nil, errors.New("database is locked")
}

func TestGetInsightsForAlert(t *testing.T) {
	src := &fakeSource{
		min:     fakeResponse{value: ms(utc(2023, time.January, 1, 0))},
		max:     fakeResponse{value: ms(utc(2024, time.January, 20, 6))},
		safeMax: fakeResponse{value: ms(utc(2024, time.January, 20, 6))},
	}
	p := newTestProvider(t, src, utc(2024, time.February, 1, 0), logger.NewNop())

	got, err := p.GetInsightsForAlert(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "daily", got.TemplateWithProperties.Name)
	assert.Equal(t, utc(2023, time.July, 20, 0).UnixMilli(), *got.DefaultStartTime)
	assert.Equal(t, utc(2024, time.January, 21, 0).UnixMilli(), *got.DefaultEndTime)

	_, err = p.GetInsightsForAlert(context.Background(), "404")
	assert.Equal(t, StatusAlertNotFound, StatusOf(err))
}
