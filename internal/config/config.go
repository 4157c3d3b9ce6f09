package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Insights     InsightsConfig     `mapstructure:"insights" yaml:"insights"`
	Catalog      CatalogConfig      `mapstructure:"catalog" yaml:"catalog"`
	DatasetStore DatasetStoreConfig `mapstructure:"dataset_store" yaml:"dataset_store"`
	Datasources  []DatasourceConfig `mapstructure:"datasources" yaml:"datasources"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring"`
}

// InsightsConfig tunes boundary resolution and default window computation.
type InsightsConfig struct {
	FetchTimeout    int    `mapstructure:"fetch_timeout" yaml:"fetch_timeout"` // milliseconds, per boundary query
	ClockMargin     int    `mapstructure:"clock_margin" yaml:"clock_margin"`   // milliseconds tolerated ahead of now
	DefaultTimezone string `mapstructure:"default_timezone" yaml:"default_timezone"`
}

// CatalogConfig points at the YAML file holding datasets, templates and alerts.
type CatalogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// DatasetStoreConfig selects where dataset configurations are looked up.
type DatasetStoreConfig struct {
	Backend     string    `mapstructure:"backend" yaml:"backend"` // catalog | sql
	SQL         SQLConfig `mapstructure:"sql" yaml:"sql"`
	AutoMigrate bool      `mapstructure:"auto_migrate" yaml:"auto_migrate"`
	Cached      bool      `mapstructure:"cached" yaml:"cached"`
}

// DatasourceConfig declares a backend that datasets reference by name.
type DatasourceConfig struct {
	Name            string                `mapstructure:"name" yaml:"name"`
	Type            string                `mapstructure:"type" yaml:"type"` // mysql | postgresql | sqlite | victoriametrics
	SQL             SQLConfig             `mapstructure:"sql" yaml:"sql"`
	VictoriaMetrics VictoriaMetricsConfig `mapstructure:"victoria_metrics" yaml:"victoria_metrics"`
}

// SQLConfig describes a database/sql connection. DSN wins over the discrete
// fields when both are set.
type SQLConfig struct {
	Driver          string            `mapstructure:"driver" yaml:"driver"` // mysql | postgresql | sqlite
	DSN             string            `mapstructure:"dsn" yaml:"dsn"`
	Host            string            `mapstructure:"host" yaml:"host"`
	Port            int               `mapstructure:"port" yaml:"port"`
	User            string            `mapstructure:"user" yaml:"user"`
	Password        string            `mapstructure:"password" yaml:"password"`
	Database        string            `mapstructure:"database" yaml:"database"`
	Params          map[string]string `mapstructure:"params" yaml:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // seconds
}

type VictoriaMetricsConfig struct {
	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"`
	Timeout   int      `mapstructure:"timeout" yaml:"timeout"` // milliseconds
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`
	AccountID string   `mapstructure:"account_id" yaml:"account_id"`
	// MaxLookback bounds unrestricted boundary queries, as an ISO-8601 period.
	MaxLookback string             `mapstructure:"max_lookback" yaml:"max_lookback"`
	Discovery   DNSDiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// DNSDiscoveryConfig resolves VictoriaMetrics endpoints from a (headless)
// Kubernetes Service instead of a static list.
type DNSDiscoveryConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Service        string `mapstructure:"service" yaml:"service"` // e.g. vmselect.vm.svc.cluster.local
	Port           int    `mapstructure:"port" yaml:"port"`
	Scheme         string `mapstructure:"scheme" yaml:"scheme"` // http | https
	RefreshSeconds int    `mapstructure:"refresh_seconds" yaml:"refresh_seconds"`
	UseSRV         bool   `mapstructure:"use_srv" yaml:"use_srv"`
}

// CacheConfig handles Valkey cluster caching configuration
type CacheConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath       string  `mapstructure:"metrics_path" yaml:"metrics_path"`
	PrometheusEnabled bool    `mapstructure:"prometheus_enabled" yaml:"prometheus_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure      bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio       float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}
