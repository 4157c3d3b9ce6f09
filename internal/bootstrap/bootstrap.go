// Package bootstrap assembles the insights pipeline from configuration. The
// server and insightsctl share it so both resolve datasets and data sources
// the same way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/coder/quartz"

	"github.com/platformbuilds/mirador-insights/internal/api/handlers"
	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/discovery"
	"github.com/platformbuilds/mirador-insights/internal/repo"
	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
	"github.com/platformbuilds/mirador-insights/internal/tracing"
	"github.com/platformbuilds/mirador-insights/pkg/cache"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const datasourceTypeVictoriaMetrics = "victoriametrics"

// App is the wired pipeline. Close releases every connection it opened.
type App struct {
	Config      *config.Config
	Logger      logger.Logger
	Catalog     *repo.Catalog
	DatasetRepo *repo.DatasetRepo
	Datasets    services.DatasetConfigLookup
	Sources     *services.SourceRegistry
	Cache       cache.ValkeyCluster
	Window      *services.DefaultWindowCalculator
	Provider    *services.AlertInsightsProvider

	clock    quartz.Clock
	resolver discovery.Resolver
	closers  []func() error
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Clock  quartz.Clock
	Tracer *tracing.InsightsTracer
	// Resolver replaces the system DNS resolver for endpoint discovery.
	Resolver discovery.Resolver
}

// Build opens the catalog, dataset store, cache and data sources named in cfg
// and wires the insights provider over them. On error everything opened so
// far is closed.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: log}
	if err := app.build(ctx, opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg, log := a.Config, a.Logger
	a.clock, a.resolver = opts.Clock, opts.Resolver

	if err := a.openCatalog(); err != nil {
		return err
	}

	if cfg.Cache.Enabled {
		a.Cache = cache.New(cache.Options{
			Nodes:    cfg.Cache.Nodes,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.GetCacheTTL(),
		}, log)
		switch c := a.Cache.(type) {
		case interface{ Stop() }:
			a.closers = append(a.closers, func() error { c.Stop(); return nil })
		case io.Closer:
			a.closers = append(a.closers, c.Close)
		}
	}

	if err := a.openDatasetStore(ctx); err != nil {
		return err
	}

	a.Sources = services.NewSourceRegistry()
	for _, ds := range cfg.Datasources {
		if err := a.registerSource(ctx, ds); err != nil {
			return err
		}
	}

	loc, err := cfg.DefaultLocation()
	if err != nil {
		return fmt.Errorf("insights.default_timezone: %w", err)
	}
	a.Window = services.NewDefaultWindowCalculator(loc)

	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NewInsightsTracer()
	}
	resolver := services.NewDatasetTimeResolver(a.Sources, cfg.FetchTimeout(), cfg.ClockMargin(), tracer, log)

	a.Provider = services.NewAlertInsightsProvider(services.ProviderDeps{
		Renderer: services.NewAlertTemplateRenderer(a.Catalog),
		Datasets: a.Datasets,
		Alerts:   a.Catalog,
		Resolver: resolver,
		Window:   a.Window,
		Clock:    opts.Clock,
		Tracer:   tracer,
		Logger:   log,
	})

	log.Info("Insights pipeline ready",
		"dataset_store", cfg.DatasetStore.Backend,
		"datasources", a.Sources.Names(),
		"cache", cfg.Cache.Enabled,
		"default_timezone", loc.String(),
	)
	return nil
}

func (a *App) openCatalog() error {
	if a.Config.Catalog.Path == "" {
		a.Logger.Warn("No catalog configured; only inline templates can be rendered")
		c, err := repo.NewCatalog(&repo.CatalogFile{}, a.Logger)
		if err != nil {
			return err
		}
		a.Catalog = c
		return nil
	}

	c, err := repo.LoadCatalog(a.Config.Catalog.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	a.Catalog = c
	return nil
}

func (a *App) openDatasetStore(ctx context.Context) error {
	cfg := a.Config.DatasetStore
	if cfg.Backend != "sql" {
		a.Datasets = a.Catalog
		return nil
	}

	client, err := sqlstore.Open(ctx, cfg.SQL)
	if err != nil {
		return fmt.Errorf("failed to open dataset store: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	if cfg.AutoMigrate {
		if err := repo.Migrate(client, repo.LatestVersion, a.Logger); err != nil {
			return fmt.Errorf("failed to migrate dataset store: %w", err)
		}
	}

	a.DatasetRepo = repo.NewDatasetRepo(client, a.Logger)
	a.Datasets = a.DatasetRepo
	if cfg.Cached && a.Cache != nil {
		a.Datasets = repo.NewCachedDatasetStore(a.DatasetRepo, a.Cache, a.Config.GetCacheTTL(), a.Logger)
	}
	return nil
}

func (a *App) registerSource(ctx context.Context, ds config.DatasourceConfig) error {
	if ds.Type == datasourceTypeVictoriaMetrics {
		vm, err := services.NewVictoriaMetricsService(ds.Name, ds.VictoriaMetrics, a.Logger)
		if err != nil {
			return fmt.Errorf("datasource %s: %w", ds.Name, err)
		}
		a.Sources.Register(ds.Name, vm)
		if ds.VictoriaMetrics.Discovery.Enabled {
			discoveryCtx, cancel := context.WithCancel(ctx)
			a.closers = append(a.closers, func() error { cancel(); return nil })
			discovery.NewDNSDiscovery(ds.Name, ds.VictoriaMetrics.Discovery, vm, a.Logger, discovery.Options{Clock: a.clock, Resolver: a.resolver}).
				Start(discoveryCtx)
		}
		return nil
	}

	sqlCfg := ds.SQL
	sqlCfg.Driver = ds.EffectiveDriver()
	client, err := sqlstore.Open(ctx, sqlCfg)
	if err != nil {
		return fmt.Errorf("datasource %s: %w", ds.Name, err)
	}
	a.closers = append(a.closers, client.Close)
	a.Sources.Register(ds.Name, services.NewSQLTimeService(ds.Name, client, a.Logger))
	return nil
}

// ReadinessChecks returns the probes /ready runs. Data sources and the
// dataset store are critical; the cache only degrades the service.
func (a *App) ReadinessChecks() []handlers.ReadinessCheck {
	checks := []handlers.ReadinessCheck{
		{Name: "datasources", Critical: true, Probe: a.Sources.HealthCheck},
	}
	if hc, ok := a.Datasets.(interface{ HealthCheck(context.Context) error }); ok {
		checks = append(checks, handlers.ReadinessCheck{Name: "dataset_store", Critical: true, Probe: hc.HealthCheck})
	}
	if a.Cache != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "cache", Probe: a.Cache.HealthCheck})
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
