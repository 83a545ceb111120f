package gositemaptree

import (
	"strings"

	"github.com/temoto/robotstxt"
)

const legacySitemapKey = "site-map"

// parseRobotsTxtSitemaps extracts the sitemap URLs a robots.txt
// declares, in declaration order, first occurrence winning. URL case is
// preserved. All other directives (User-agent, Allow, Disallow,
// comments) are ignored.
func parseRobotsTxtSitemaps(body []byte) []string {
	data, err := robotstxt.FromBytes(normalizeLegacySitemapKeys(body))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(data.Sitemaps))
	urls := make([]string, 0, len(data.Sitemaps))
	for _, raw := range data.Sitemaps {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		urls = append(urls, trimmed)
	}
	return urls
}

// normalizeLegacySitemapKeys rewrites the legacy "Site-map:" directive
// key to "Sitemap:" so the robots.txt parser recognises it. Values are
// left untouched and line order is preserved.
func normalizeLegacySitemapKeys(body []byte) []byte {
	text := string(body)
	if !strings.Contains(strings.ToLower(text), legacySitemapKey) {
		return body
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) < len(legacySitemapKey) {
			continue
		}
		if !strings.EqualFold(trimmed[:len(legacySitemapKey)], legacySitemapKey) {
			continue
		}
		rest := strings.TrimLeft(trimmed[len(legacySitemapKey):], " \t")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		lines[i] = "Sitemap" + rest
	}
	return []byte(strings.Join(lines, "\n"))
}
