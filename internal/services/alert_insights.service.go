package services

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/repo"
	"github.com/platformbuilds/mirador-insights/internal/tracing"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// DatasetConfigLookup finds dataset configurations by name; unknown names
// return repo.ErrNotFound.
type DatasetConfigLookup interface {
	FindByName(ctx context.Context, name string) (*models.DatasetConfig, error)
}

// AlertLookup finds saved alerts by id; unknown ids return repo.ErrNotFound.
type AlertLookup interface {
	FindAlert(ctx context.Context, id string) (*models.AlertSpec, error)
}

// BoundaryResolver fetches the raw boundaries of a dataset.
type BoundaryResolver interface {
	Resolve(ctx context.Context, dataset *models.DatasetConfig, now time.Time) (*FetchedBoundary, error)
}

const (
	outcomeComplete = "complete"
	outcomeDegraded = "degraded"
)

type ProviderDeps struct {
	Renderer TemplateRenderer
	Datasets DatasetConfigLookup
	Alerts   AlertLookup
	Resolver BoundaryResolver
	Window   *DefaultWindowCalculator
	Clock    quartz.Clock
	Tracer   *tracing.InsightsTracer
	Logger   logger.Logger
}

// AlertInsightsProvider computes the dataset time range and default chart
// window of an alert.
type AlertInsightsProvider struct {
	renderer TemplateRenderer
	datasets DatasetConfigLookup
	alerts   AlertLookup
	resolver BoundaryResolver
	window   *DefaultWindowCalculator
	clock    quartz.Clock
	tracer   *tracing.InsightsTracer
	logger   logger.Logger
}

func NewAlertInsightsProvider(deps ProviderDeps) *AlertInsightsProvider {
	p := &AlertInsightsProvider{
		renderer: deps.Renderer,
		datasets: deps.Datasets,
		alerts:   deps.Alerts,
		resolver: deps.Resolver,
		window:   deps.Window,
		clock:    deps.Clock,
		tracer:   deps.Tracer,
		logger:   deps.Logger,
	}
	if p.window == nil {
		p.window = NewDefaultWindowCalculator(time.UTC)
	}
	if p.clock == nil {
		p.clock = quartz.NewReal()
	}
	if p.tracer == nil {
		p.tracer = tracing.NewInsightsTracer()
	}
	if p.logger == nil {
		p.logger = logger.NewNop()
	}
	return p
}

// GetInsightsForAlert computes insights for a saved alert.
func (p *AlertInsightsProvider) GetInsightsForAlert(ctx context.Context, alertID string) (*models.AlertInsights, error) {
	if p.alerts == nil {
		return nil, NotFoundError(StatusAlertNotFound, "alert %s not found", alertID)
	}
	alert, err := p.alerts.FindAlert(ctx, alertID)
	if errors.Is(err, repo.ErrNotFound) {
		monitoring.RecordInsightsRequest(string(StatusAlertNotFound))
		return nil, NotFoundError(StatusAlertNotFound, "alert %s not found", alertID)
	}
	if err != nil {
		ierr := AsInsightsError(err, "failed to load alert %s", alertID)
		monitoring.RecordInsightsRequest(string(ierr.Status))
		return nil, ierr
	}
	return p.GetInsights(ctx, alert)
}

// GetInsights computes insights for an alert definition. Every error it
// returns is an *InsightsError.
func (p *AlertInsightsProvider) GetInsights(ctx context.Context, alert *models.AlertSpec) (*models.AlertInsights, error) {
	templateName := ""
	if alert != nil && alert.Template != nil {
		templateName = alert.Template.Name
	}
	ctx, span := p.tracer.StartInsightsSpan(ctx, alertLabel(alert), templateName)
	defer span.End()

	insights, err := p.buildInsights(ctx, alert)
	if err != nil {
		ierr := AsInsightsError(err, "failed to compute insights for alert %s", alertLabel(alert))
		p.tracer.RecordError(span, ierr)
		monitoring.RecordInsightsRequest(string(ierr.Status))
		p.logger.Error("Alert insights failed", "alert", alertLabel(alert), "status", ierr.Status, "error", ierr)
		return nil, ierr
	}

	outcome := outcomeComplete
	if insights.DefaultStartTime == nil {
		outcome = outcomeDegraded
	}
	monitoring.RecordInsightsRequest(outcome)
	return insights, nil
}

func (p *AlertInsightsProvider) buildInsights(ctx context.Context, alert *models.AlertSpec) (*models.AlertInsights, error) {
	rendered, err := p.renderer.Render(ctx, alert, models.Interval{})
	if err != nil {
		return nil, err
	}
	metadata := rendered.Metadata

	datasetName := metadata.DatasetName()
	if datasetName == "" {
		return nil, ConfigurationError("dataset name not found in alert metadata")
	}
	dataset, err := p.datasets.FindByName(ctx, datasetName)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NotFoundError(StatusDatasetNotFound, "dataset %s not found", datasetName)
	}
	if err != nil {
		return nil, err
	}
	if dataset.DataSource == "" {
		return nil, ConfigurationError("datasource is not set in configuration of dataset %s", datasetName)
	}

	fetched, err := p.resolver.Resolve(ctx, dataset, p.clock.Now())
	if err != nil {
		return nil, err
	}
	boundary := ReconcileBoundary(dataset.Name, *fetched, fetched.MaximumPossibleEndTime)
	if boundary.SuspiciousMaxTime != nil {
		monitoring.RecordSuspiciousMaxTime(dataset.Name)
		p.logger.Warn("Dataset max time is too big; most likely a data issue, using the max time before the safe end time",
			"dataset", dataset.Name,
			"maxTime", *boundary.SuspiciousMaxTime,
			"safeEndTime", fetched.MaximumPossibleEndTime,
			"safeMaxTime", boundary.MaxTime,
		)
	}

	insights := &models.AlertInsights{
		TemplateWithProperties:   rendered,
		DatasetStartTime:         boundary.MinTime,
		DatasetEndTime:           boundary.MaxTime,
		SuspiciousDatasetEndTime: boundary.SuspiciousMaxTime,
	}
	if boundary.MinTime == nil || boundary.MaxTime == nil {
		p.logger.Info("Dataset has no usable time range; default window omitted", "dataset", dataset.Name)
		return insights, nil
	}

	if metadata.Granularity == "" {
		return nil, ConfigurationError("granularity not found in alert metadata")
	}
	granularity, err := timeutil.ParsePeriod(metadata.Granularity)
	if err != nil {
		return nil, InvalidConfigurationError(err, "invalid granularity %q in alert metadata", metadata.Granularity)
	}
	window, err := p.window.Compute(*boundary.MinTime, *boundary.MaxTime, metadata.Timezone, granularity)
	if err != nil {
		return nil, err
	}
	insights.DefaultStartTime = models.Int64Ptr(window.StartTime)
	insights.DefaultEndTime = models.Int64Ptr(window.EndTime)
	return insights, nil
}
