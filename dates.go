package gositemaptree

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// iso8601Layouts is the fast path covering the formats the sitemaps
// protocol actually prescribes (W3C datetime profile of ISO 8601).
var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseSitemapDate is total: strict ISO 8601 first, then a permissive
// free-form parse. Anything unparseable is reported as absent.
func parseSitemapDate(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	for _, layout := range iso8601Layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed
		}
	}
	parsed, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return nil
	}
	return &parsed
}
