package config

import (
	"fmt"
	"net/url"
	"time"
)

var (
	sqlDrivers      = []string{"mysql", "postgresql", "sqlite"}
	datasourceTypes = []string{"mysql", "postgresql", "sqlite", "victoriametrics"}
	logLevels       = []string{"debug", "info", "warn", "error", "fatal"}
	environments    = []string{"development", "staging", "production", "test"}
)

// ValidateEndpoint validates that an endpoint is properly formatted
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https scheme")
	}

	if parsed.Host == "" {
		return fmt.Errorf("endpoint must include host")
	}

	return nil
}

// ValidateSQLConfig checks that a SQL connection can be built.
func ValidateSQLConfig(cfg SQLConfig) error {
	if !contains(sqlDrivers, cfg.Driver) {
		return fmt.Errorf("unsupported sql driver %q (allowed: mysql, postgresql, sqlite)", cfg.Driver)
	}
	if cfg.DSN == "" && cfg.Driver == "sqlite" {
		return fmt.Errorf("sqlite requires a dsn (file path or :memory:)")
	}
	if cfg.DSN == "" && cfg.Host == "" {
		return fmt.Errorf("either dsn or host is required")
	}
	return nil
}

func validateInsights(cfg InsightsConfig) error {
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("insights.fetch_timeout must be positive, got %d", cfg.FetchTimeout)
	}
	if cfg.ClockMargin < 0 {
		return fmt.Errorf("insights.clock_margin must not be negative, got %d", cfg.ClockMargin)
	}
	if cfg.DefaultTimezone != "" {
		if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
			return fmt.Errorf("insights.default_timezone: %w", err)
		}
	}
	return nil
}

func validateDatasources(sources []DatasourceConfig) error {
	seen := make(map[string]bool, len(sources))
	for i, ds := range sources {
		if ds.Name == "" {
			return fmt.Errorf("datasources[%d]: name is required", i)
		}
		if seen[ds.Name] {
			return fmt.Errorf("datasources[%d]: duplicate name %q", i, ds.Name)
		}
		seen[ds.Name] = true

		if !contains(datasourceTypes, ds.Type) {
			return fmt.Errorf("datasource %s: unsupported type %q", ds.Name, ds.Type)
		}

		if ds.Type == "victoriametrics" {
			disc := ds.VictoriaMetrics.Discovery
			if disc.Enabled {
				if disc.Service == "" {
					return fmt.Errorf("datasource %s: discovery.service is required", ds.Name)
				}
				if !disc.UseSRV && disc.Port <= 0 {
					return fmt.Errorf("datasource %s: discovery.port is required unless use_srv is set", ds.Name)
				}
			} else if len(ds.VictoriaMetrics.Endpoints) == 0 {
				return fmt.Errorf("datasource %s: at least one VictoriaMetrics endpoint is required", ds.Name)
			}
			for _, ep := range ds.VictoriaMetrics.Endpoints {
				if err := ValidateEndpoint(ep); err != nil {
					return fmt.Errorf("datasource %s: invalid endpoint %s: %w", ds.Name, ep, err)
				}
			}
			continue
		}

		sqlCfg := ds.SQL
		sqlCfg.Driver = ds.EffectiveDriver()
		if err := ValidateSQLConfig(sqlCfg); err != nil {
			return fmt.Errorf("datasource %s: %w", ds.Name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch {
	case cfg.Port < 1 || cfg.Port > 65535:
		return fmt.Errorf("invalid port number: %d", cfg.Port)
	case !contains(logLevels, cfg.LogLevel):
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	case !contains(environments, cfg.Environment):
		return fmt.Errorf("invalid environment: %s", cfg.Environment)
	}

	if err := validateInsights(cfg.Insights); err != nil {
		return err
	}
	if err := validateDatasources(cfg.Datasources); err != nil {
		return err
	}

	switch cfg.DatasetStore.Backend {
	case "catalog":
	case "sql":
		if err := ValidateSQLConfig(cfg.DatasetStore.SQL); err != nil {
			return fmt.Errorf("dataset_store.sql: %w", err)
		}
	default:
		return fmt.Errorf("invalid dataset_store backend: %s", cfg.DatasetStore.Backend)
	}

	if cfg.Cache.Enabled {
		if len(cfg.Cache.Nodes) == 0 {
			return fmt.Errorf("cache.nodes: at least one Valkey node is required")
		}
		if cfg.Cache.TTL < 1 {
			return fmt.Errorf("cache TTL must be at least 1 second")
		}
	}

	if r := cfg.Monitoring.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("monitoring sample ratio must be between 0 and 1")
	}
	return nil
}
