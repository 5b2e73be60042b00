package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsZeroHostQPS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.MaxHostQPS = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for a zero max_host_qps")
	}
}

func TestValidateAllowsUnboundedMaxPageSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetcher.MaxPageSize = -1
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected -1 max_page_size to validate, got %v", err)
	}
}

func TestValidateRejectsNegativeMaxCrawledUrls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.MaxCrawledUrls = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for a negative max_crawled_urls")
	}
}

func TestValidateRejectsBadProxyURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetcher.ProxyAll = "://not-a-url"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for a malformed proxy_all URL")
	}
}

func TestValidateURLRejectsNonHTTPScheme(t *testing.T) {
	if err := ValidateURL("ftp://example.com/"); err == nil {
		t.Fatal("expected an error for a non-http(s) scheme")
	}
}

func TestValidateURLAcceptsHTTPS(t *testing.T) {
	if err := ValidateURL("https://example.com/path"); err != nil {
		t.Fatalf("expected a valid https URL to pass, got %v", err)
	}
}
