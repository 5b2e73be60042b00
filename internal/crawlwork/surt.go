// Package crawlwork holds the data types shared by every scheduling and
// fetching component: the work item triple, its ridealong metadata, and
// the fetcher's classified response.
package crawlwork

import (
	"net/url"
	"strings"
)

// SURT computes the Sort-friendly URI Reordering Transcription key used
// as the heap tie-breaker and ridealong lookup key: reversed,
// comma-joined host labels, a ')' separator, then the path and query.
//
// "https://www.example.com/a/b?x=1" -> "com,example,www)/a/b?x=1"
func SURT(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return strings.Join(labels, ",") + ")" + path
}

// SplitHost extracts the host portion of a SURT key by splitting on the
// first ')', per spec §4.1 step 3. Absent a ')' the whole key is
// returned as the host (defensive: every key produced by SURT has one).
func SplitHost(key string) string {
	if idx := strings.IndexByte(key, ')'); idx >= 0 {
		return key[:idx]
	}
	return key
}
