package gositemaptree

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// RecurseCallback decides per URL whether a discovered sub-sitemap is
// fetched; returning false drops it silently. parentURLs is the set of
// final URLs of every enclosing sitemap.
type RecurseCallback func(url string, recursionLevel int, parentURLs map[string]struct{}) bool

// RecurseListCallback replaces the full list of an index's declared
// children before the per-URL callback runs. The returned list must be
// a (possibly re-ordered) subset of the input.
type RecurseListCallback func(urls []string, recursionLevel int, parentURLs map[string]struct{}) []string

const (
	reasonDepthExceeded    = "recursion depth exceeded"
	reasonRecursiveSitemap = "recursive sitemap"
)

// fetchFrame is the state carried through one recursion step: the
// candidate's depth and the ancestor URL set, passed by value so no
// node holds a back-reference to its parent.
type fetchFrame struct {
	depth     int
	ancestors map[string]struct{}
	// probe marks discovery attempts (robots.txt and well-known paths)
	// whose 404s are silenced.
	probe bool
}

func (f fetchFrame) child(parentURL string) fetchFrame {
	ancestors := make(map[string]struct{}, len(f.ancestors)+1)
	maps.Copy(ancestors, f.ancestors)
	ancestors[parentURL] = struct{}{}
	return fetchFrame{depth: f.depth + 1, ancestors: ancestors}
}

func (f fetchFrame) probing() fetchFrame {
	f.probe = true
	return f
}

// fetchSitemap fetches one candidate URL and parses it into a sitemap
// entity, enforcing the depth bound and both cycle checks. It returns
// nil only for a silenced 404 of a discovery probe (robots.txt or a
// well-known path); every other failure is
// localised into an InvalidSitemap so siblings keep parsing.
func (b *TreeBuilder) fetchSitemap(ctx context.Context, rawURL string, frame fetchFrame) Sitemap {
	if frame.depth >= b.maxDepth {
		b.logger.Debug("not fetching, recursion depth exceeded", "url", rawURL, "depth", frame.depth)
		return newInvalidSitemap(rawURL, reasonDepthExceeded)
	}
	if _, ok := frame.ancestors[rawURL]; ok {
		return newInvalidSitemap(rawURL, reasonRecursiveSitemap)
	}

	resp, err := b.client.Get(ctx, rawURL)
	if err != nil {
		return newInvalidSitemapCause(rawURL, err)
	}
	if !resp.Success() {
		if frame.probe && resp.StatusCode == http.StatusNotFound {
			b.logger.Debug("sitemap not found (probe)", "url", rawURL)
			return nil
		}
		statusErr := &ErrHTTPStatus{URL: resp.FinalURL, StatusCode: resp.StatusCode, Status: resp.Status}
		return newInvalidSitemap(resp.FinalURL, statusErr.Error())
	}
	if _, ok := frame.ancestors[resp.FinalURL]; ok {
		return newInvalidSitemap(resp.FinalURL, reasonRecursiveSitemap)
	}
	return b.classify(ctx, resp.FinalURL, resp.Body, frame)
}

// classify routes a fetched body to the right parser: a robots.txt
// path wins regardless of content, anything that looks like XML goes
// through the XML dispatcher, and everything else is treated as a
// plain-text sitemap (possibly empty, still valid).
func (b *TreeBuilder) classify(ctx context.Context, finalURL string, body []byte, frame fetchFrame) Sitemap {
	if isRobotsTxtURL(finalURL) {
		childURLs := parseRobotsTxtSitemaps(body)
		return newIndexRobotsTxtSitemap(finalURL, b.fetchChildren(ctx, childURLs, finalURL, frame))
	}
	if looksLikeXML(body) {
		result, err := parseXMLDoc(body, b.logger)
		if err != nil {
			return newInvalidSitemap(finalURL, fmt.Sprintf("XML parse failed: %v", err))
		}
		if result.kind == docSitemapIndex {
			return newIndexXMLSitemap(finalURL, b.fetchChildren(ctx, result.childURLs, finalURL, frame))
		}
		return b.buildPagesSitemap(finalURL, result.pages, pagesVariantForDoc(result.kind))
	}
	return b.buildPagesSitemap(finalURL, textPages(parseTextSitemapURLs(body)), variantText)
}

// fetchChildren applies the list filter, then the per-URL filter, then
// fetches each surviving child in declaration order.
func (b *TreeBuilder) fetchChildren(ctx context.Context, childURLs []string, parentURL string, frame fetchFrame) []Sitemap {
	childFrame := frame.child(parentURL)

	seen := make(map[string]struct{}, len(childURLs))
	urls := make([]string, 0, len(childURLs))
	for _, raw := range childURLs {
		resolved := resolveChildURL(parentURL, raw)
		if resolved == "" {
			b.logger.Debug("skipping unparseable sub-sitemap URL", "url", raw, "parent", parentURL)
			continue
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	}

	if b.opts.RecurseListCallback != nil {
		urls = b.opts.RecurseListCallback(urls, childFrame.depth, childFrame.ancestors)
	}

	var subs []Sitemap
	for _, u := range urls {
		if b.opts.RecurseCallback != nil && !b.opts.RecurseCallback(u, childFrame.depth, childFrame.ancestors) {
			b.logger.Debug("sub-sitemap dropped by recurse callback", "url", u)
			continue
		}
		if s := b.fetchSitemap(ctx, u, childFrame); s != nil {
			subs = append(subs, s)
		}
	}
	return dedupeSiblings(subs, b.logger)
}

// dedupeSiblings enforces unique direct-child URLs, first seen winning.
// Redirects can collapse distinct declared URLs onto one final URL.
func dedupeSiblings(subs []Sitemap, logger *slog.Logger) []Sitemap {
	seen := make(map[string]struct{}, len(subs))
	out := subs[:0]
	for _, s := range subs {
		if _, ok := seen[s.URL()]; ok {
			logger.Debug("dropping duplicate sibling sitemap", "url", s.URL())
			_ = s.Close()
			continue
		}
		seen[s.URL()] = struct{}{}
		out = append(out, s)
	}
	return out
}

type pagesVariant int

const (
	variantXML pagesVariant = iota
	variantText
	variantRSS
	variantAtom
)

func pagesVariantForDoc(kind xmlDocKind) pagesVariant {
	switch kind {
	case docRSS:
		return variantRSS
	case docAtom:
		return variantAtom
	default:
		return variantXML
	}
}

// buildPagesSitemap persists the page list through the page store and
// wraps it in the matching leaf variant.
func (b *TreeBuilder) buildPagesSitemap(finalURL string, pages []Page, variant pagesVariant) Sitemap {
	store, err := newPageStore(pages, b.logger)
	if err != nil {
		return newInvalidSitemap(finalURL, err.Error())
	}
	return wrapPagesSitemap(finalURL, store, variant)
}

func wrapPagesSitemap(url string, store *pageStore, variant pagesVariant) Sitemap {
	base := pagesSitemap{url: url, store: store}
	switch variant {
	case variantText:
		return &PagesTextSitemap{base}
	case variantRSS:
		return &PagesRSSSitemap{base}
	case variantAtom:
		return &PagesAtomSitemap{base}
	default:
		return &PagesXMLSitemap{base}
	}
}

func isRobotsTxtURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), "robots.txt")
}

// resolveChildURL resolves a declared sub-sitemap location against the
// URL of the sitemap that declared it.
func resolveChildURL(baseURL, loc string) string {
	trimmed := strings.TrimSpace(loc)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() {
		parsed.Fragment = ""
		return parsed.String()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	return resolved.String()
}
