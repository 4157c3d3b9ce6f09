package config

import (
	"strings"
	"time"
)

const (
	DefaultFetchTimeoutMS = 30000
	DefaultClockMarginMS  = 3600000
	DefaultCacheTTL       = 300
)

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FetchTimeout is the per-query boundary timeout.
func (c *Config) FetchTimeout() time.Duration {
	ms := c.Insights.FetchTimeout
	if ms <= 0 {
		ms = DefaultFetchTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

// ClockMargin is how far ahead of now a dataset max may lie and still be
// trusted.
func (c *Config) ClockMargin() time.Duration {
	return time.Duration(c.Insights.ClockMargin) * time.Millisecond
}

// DefaultLocation loads the default chart timezone, UTC when unset.
func (c *Config) DefaultLocation() (*time.Location, error) {
	if c.Insights.DefaultTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Insights.DefaultTimezone)
}

// GetCacheTTL returns the cache TTL as a duration
func (c *Config) GetCacheTTL() time.Duration {
	ttl := c.Cache.TTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return time.Duration(ttl) * time.Second
}

// Datasource returns the datasource with the given name.
func (c *Config) Datasource(name string) (DatasourceConfig, bool) {
	for _, ds := range c.Datasources {
		if ds.Name == name {
			return ds, true
		}
	}
	return DatasourceConfig{}, false
}

// EffectiveDriver returns the SQL driver of a datasource, derived from its
// type when not set explicitly.
func (d DatasourceConfig) EffectiveDriver() string {
	if d.SQL.Driver != "" {
		return strings.ToLower(d.SQL.Driver)
	}
	return strings.ToLower(d.Type)
}
