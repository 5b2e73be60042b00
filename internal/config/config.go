// Package config is politecrawl's typed configuration, adapted from
// the teacher's internal/config/config.go: the same mapstructure/yaml
// tagged struct tree and viper-backed loader, regrouped around the
// consumed-interface fields spec.md §6 names (Crawl.MaxHostQPS,
// Crawl.MaxCrawledUrls, Fetcher.ProxyAll, GeoIP.ProxyGeoIP) plus the
// ambient sections (logging, metrics, snapshot) every runnable build
// of this module still needs.
package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for politecrawl.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"    yaml:"crawl"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	GeoIP    GeoIPConfig    `mapstructure:"geoip"    yaml:"geoip"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
}

// CrawlConfig controls the scheduler (spec §4.1, §6).
type CrawlConfig struct {
	MaxHostQPS              float64       `mapstructure:"max_host_qps"              yaml:"max_host_qps"`
	MaxCrawledUrls          int           `mapstructure:"max_crawled_urls"          yaml:"max_crawled_urls"`
	Concurrency             int           `mapstructure:"concurrency"               yaml:"concurrency"`
	UserAgent               string        `mapstructure:"user_agent"                yaml:"user_agent"`
	CompressionDisabled     bool          `mapstructure:"compression_disabled"      yaml:"compression_disabled"`
	UpgradeInsecureRequests bool          `mapstructure:"upgrade_insecure_requests" yaml:"upgrade_insecure_requests"`
	MaxDepth                int           `mapstructure:"max_depth"                 yaml:"max_depth"`
	CheckpointInterval      time.Duration `mapstructure:"checkpoint_interval"       yaml:"checkpoint_interval"`
}

// FetcherConfig controls the fetch executor (spec §4.2, §6).
type FetcherConfig struct {
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxPageSize     int64         `mapstructure:"max_page_size"     yaml:"max_page_size"` // -1 => unbounded
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	ProxyAll        string        `mapstructure:"proxy_all"         yaml:"proxy_all"` // empty => direct
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// GeoIPConfig controls whether the configured proxy is trusted to
// also resolve geo-targeted DNS (spec §4.3's prefetchDNS formula).
type GeoIPConfig struct {
	ProxyGeoIP bool `mapstructure:"proxy_geoip" yaml:"proxy_geoip"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the stats sink's Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// SnapshotConfig controls where crawl state is persisted (spec §4.5).
type SnapshotConfig struct {
	Path            string `mapstructure:"path"              yaml:"path"`
	SaveOnInterrupt bool   `mapstructure:"save_on_interrupt" yaml:"save_on_interrupt"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxHostQPS:         1.0,
			MaxCrawledUrls:     0,
			Concurrency:        10,
			UserAgent:          "politecrawl/1.0",
			MaxDepth:           5,
			CheckpointInterval: 60 * time.Second,
		},
		Fetcher: FetcherConfig{
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxPageSize:     10 * 1024 * 1024,
			RequestTimeout:  30 * time.Second,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		GeoIP: GeoIPConfig{
			ProxyGeoIP: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Snapshot: SnapshotConfig{
			Path:            "./politecrawl.snapshot",
			SaveOnInterrupt: true,
		},
	}
}
