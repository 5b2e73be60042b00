// Package headerpolicy derives request headers and proxy/DNS
// decisions from a per-crawler policy record (spec §4.3), grounded on
// the teacher's header-setting block in internal/fetcher/http.go
// (User-Agent, Accept-Encoding, Accept, Connection) generalized behind
// a single Policy -> Derive() call instead of being inlined at each
// Fetch call site.
package headerpolicy

import (
	"net/http"
	"net/url"
)

// Policy is the per-crawler configuration headerpolicy reads from
// (spec §6 Config consumed-interface fields relevant to header
// derivation and DNS/proxy routing).
type Policy struct {
	UserAgent               string
	CompressionDisabled     bool
	UpgradeInsecureRequests bool
	ProxyAll                *url.URL
	ProxyGeoIP              bool
}

// Derive returns the header set, the proxy to use (nil means direct),
// and whether DNS should be prefetched, per spec §4.3:
// prefetchDNS = ¬proxyAll ∨ proxyGeoIP.
func Derive(p Policy) (http.Header, *url.URL, bool) {
	headers := make(http.Header)

	ua := p.UserAgent
	if ua == "" {
		ua = "politecrawl/1.0"
	}
	headers.Set("User-Agent", ua)

	if p.CompressionDisabled {
		headers.Set("Accept-Encoding", "identity")
	} else {
		headers.Set("Accept-Encoding", "gzip, deflate, br")
	}
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	if p.UpgradeInsecureRequests {
		headers.Set("Upgrade-Insecure-Requests", "1")
	}

	prefetchDNS := p.ProxyAll == nil || p.ProxyGeoIP

	return headers, p.ProxyAll, prefetchDNS
}

// UpgradeScheme is cocrawler's upgrade_scheme(url), ported per
// SPEC_FULL §4: an identity function today. Its presence marks the
// seam for a future HSTS-preload lookup (spec §9 open question); no
// such lookup is implemented.
func UpgradeScheme(u *url.URL) *url.URL {
	return u
}
