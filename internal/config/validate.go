package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.MaxHostQPS <= 0 {
		return fmt.Errorf("crawl.max_host_qps must be > 0, got %v", cfg.Crawl.MaxHostQPS)
	}
	if cfg.Crawl.MaxCrawledUrls < 0 {
		return fmt.Errorf("crawl.max_crawled_urls must be >= 0 (0 means unlimited), got %d", cfg.Crawl.MaxCrawledUrls)
	}
	if cfg.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be >= 1, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.Concurrency > 1000 {
		return fmt.Errorf("crawl.concurrency must be <= 1000, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.UserAgent == "" {
		return fmt.Errorf("crawl.user_agent must not be empty")
	}
	if cfg.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0, got %d", cfg.Crawl.MaxDepth)
	}

	if cfg.Fetcher.MaxPageSize != -1 && cfg.Fetcher.MaxPageSize <= 0 {
		return fmt.Errorf("fetcher.max_page_size must be -1 (unbounded) or > 0, got %d", cfg.Fetcher.MaxPageSize)
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.ProxyAll != "" {
		if _, err := url.Parse(cfg.Fetcher.ProxyAll); err != nil {
			return fmt.Errorf("invalid fetcher.proxy_all %q: %w", cfg.Fetcher.ProxyAll, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path must not be empty")
	}

	return nil
}

// ValidateURL checks if a URL string is valid as a crawl seed.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
