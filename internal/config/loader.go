package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MIRADOR_INSIGHTS"

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml, or the file named by CONFIG_PATH)
// 3. Default values
func Load() (*Config, error) {
	v := newViper()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mirador-insights/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	return finish(v)
}

// LoadFromFile loads the given file on top of defaults and environment
// variables. The file must exist.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("insights.fetch_timeout", DefaultFetchTimeoutMS)
	v.SetDefault("insights.clock_margin", DefaultClockMarginMS)
	v.SetDefault("insights.default_timezone", "UTC")

	v.SetDefault("catalog.path", "./configs/catalog.yaml")
	v.SetDefault("catalog.watch", true)

	v.SetDefault("dataset_store.backend", "catalog")
	v.SetDefault("dataset_store.auto_migrate", false)
	v.SetDefault("dataset_store.cached", false)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.nodes", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.db", 0)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.tracing_enabled", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4317")
	v.SetDefault("monitoring.otlp_insecure", true)
	v.SetDefault("monitoring.sample_ratio", 1.0)
}

// envOverride maps a bare environment variable onto a config key. Values of
// kind "int" that fail to parse are ignored; "list" splits on commas. implies
// is set to true alongside the key.
type envOverride struct {
	env     string
	key     string
	kind    string
	implies string
}

var envOverrides = []envOverride{
	{env: "PORT", key: "port", kind: "int"},
	{env: "ENVIRONMENT", key: "environment"},
	{env: "LOG_LEVEL", key: "log_level"},
	{env: "CATALOG_PATH", key: "catalog.path"},
	{env: "INSIGHTS_FETCH_TIMEOUT_MS", key: "insights.fetch_timeout", kind: "int"},
	{env: "INSIGHTS_DEFAULT_TIMEZONE", key: "insights.default_timezone"},
	{env: "DATASET_STORE_DSN", key: "dataset_store.sql.dsn"},
	{env: "VALKEY_CACHE_NODES", key: "cache.nodes", kind: "list", implies: "cache.enabled"},
	{env: "CACHE_TTL", key: "cache.ttl", kind: "int"},
	{env: "OTEL_EXPORTER_OTLP_ENDPOINT", key: "monitoring.otlp_endpoint", implies: "monitoring.tracing_enabled"},
}

func overrideWithEnvVars(v *viper.Viper) {
	for _, o := range envOverrides {
		raw := os.Getenv(o.env)
		if raw == "" {
			continue
		}
		switch o.kind {
		case "int":
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			v.Set(o.key, n)
		case "list":
			v.Set(o.key, splitList(raw))
		default:
			v.Set(o.key, raw)
		}
		if o.implies != "" {
			v.Set(o.implies, true)
		}
	}
}
