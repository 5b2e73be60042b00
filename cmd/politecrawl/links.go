package main

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/arclane/politecrawl/internal/demosink"
)

// extractLinks finds every <a href> on a fetched page and resolves it
// against source, the way the teacher's CSSParser.extractLinks does,
// adapted to produce demosink.DiscoveredLink records carrying the
// anchor text the demo sink persists.
func extractLinks(body []byte, source *url.URL, depth int) []demosink.DiscoveredLink {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []demosink.DiscoveredLink
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "data:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := source.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		links = append(links, demosink.DiscoveredLink{
			SourceURL:  source.String(),
			LinkURL:    resolved.String(),
			AnchorText: strings.TrimSpace(sel.Text()),
			Depth:      depth,
			FoundAt:    time.Now(),
		})
	})
	return links
}
