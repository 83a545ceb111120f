// Package gositemaptree discovers, fetches and parses the sitemap
// hierarchy of a website into an in-memory tree. Interior nodes are
// index sitemaps (robots.txt, XML sitemap indexes, or the synthetic
// root); leaves are page sitemaps (XML urlset, plain text, RSS 2.0,
// Atom 0.3/1.0) enumerating page records. Page lists are spilled to
// scratch files so peak memory stays bounded regardless of site size.
package gositemaptree

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
)

const defaultMaxDepth = 10

// defaultKnownPaths are probed under the homepage when robots.txt does
// not lead to them first.
var defaultKnownPaths = []string{
	"sitemap.xml",
	"sitemap_index.xml",
	"sitemap-index.xml",
	"sitemap.xml.gz",
	"sitemap_index.xml.gz",
	"sitemap-index.xml.gz",
	"sitemap_news.xml",
}

// Options configures tree discovery, recursion limits, and filtering.
type Options struct {
	// WebClient performs the fetches. Defaults to NewHTTPWebClient.
	WebClient WebClient
	// SkipRobotsTxt disables discovery through /robots.txt.
	SkipRobotsTxt bool
	// SkipKnownPaths disables probing the well-known sitemap paths.
	SkipKnownPaths bool
	// ExtraKnownPaths is appended to the default well-known list.
	ExtraKnownPaths []string
	// RecurseCallback filters individual sub-sitemap URLs.
	RecurseCallback RecurseCallback
	// RecurseListCallback filters whole declared child lists.
	RecurseListCallback RecurseListCallback
	// MaxDepth bounds index recursion. Defaults to 10.
	MaxDepth int
	Logger   *slog.Logger
}

// TreeBuilder assembles sitemap trees for homepages.
type TreeBuilder struct {
	opts     Options
	client   WebClient
	logger   *slog.Logger
	maxDepth int
}

// New builds a TreeBuilder with safe defaults applied.
func New(opts Options) *TreeBuilder {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.WebClient == nil {
		opts.WebClient = NewHTTPWebClient(ClientOptions{Logger: opts.Logger})
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	return &TreeBuilder{
		opts:     opts,
		client:   opts.WebClient,
		logger:   opts.Logger,
		maxDepth: opts.MaxDepth,
	}
}

// SitemapTreeForHomepage discovers and parses the sitemap tree of a
// website with default options.
func SitemapTreeForHomepage(ctx context.Context, homepageURL string) (*IndexWebsiteSitemap, error) {
	return New(Options{}).TreeForHomepage(ctx, homepageURL)
}

// TreeForHomepage seeds discovery from robots.txt and the well-known
// paths and mounts everything found under a synthetic root whose URL is
// the homepage. Fetch and parse failures become InvalidSitemap nodes;
// an error is returned only for an unusable homepage URL or when every
// discovery attempt fails at the transport level (the homepage itself
// is unreachable).
func (b *TreeBuilder) TreeForHomepage(ctx context.Context, homepageURL string) (*IndexWebsiteSitemap, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	home, base, err := normalizeHomepageURL(homepageURL)
	if err != nil {
		return nil, err
	}

	rootFrame := fetchFrame{ancestors: map[string]struct{}{}}
	childFrame := rootFrame.child(home).probing()

	var subs []Sitemap
	robotsSeen := make(map[string]struct{})

	if !b.opts.SkipRobotsTxt {
		robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
		if robots := b.fetchSitemap(ctx, robotsURL, childFrame); robots != nil {
			subs = append(subs, robots)
			robotsSeen[robots.URL()] = struct{}{}
			_ = AllSitemaps(robots, func(s Sitemap) error {
				robotsSeen[s.URL()] = struct{}{}
				return nil
			})
		}
	}

	if !b.opts.SkipKnownPaths {
		paths := append(slices.Clone(defaultKnownPaths), b.opts.ExtraKnownPaths...)
		for _, path := range paths {
			candidate := base.ResolveReference(&url.URL{Path: "/" + strings.TrimPrefix(path, "/")}).String()
			if _, ok := robotsSeen[candidate]; ok {
				b.logger.Debug("well-known path already reached via robots.txt", "url", candidate)
				continue
			}
			s := b.fetchSitemap(ctx, candidate, childFrame)
			if s == nil {
				continue
			}
			if _, ok := robotsSeen[s.URL()]; ok {
				b.logger.Debug("well-known path resolved into the robots.txt subtree", "url", s.URL())
				_ = s.Close()
				continue
			}
			subs = append(subs, s)
		}
	}

	if err := homepageUnreachable(home, subs); err != nil {
		return nil, err
	}
	return newIndexWebsiteSitemap(home, dedupeSiblings(subs, b.logger)), nil
}

// homepageUnreachable reports whether every discovery attempt failed
// with a transport-level error. A reachable but sitemapless site is
// different: its probes are silenced to nothing instead of producing
// InvalidSitemap children.
func homepageUnreachable(home string, subs []Sitemap) error {
	var first *ErrTransport
	for _, s := range subs {
		invalid, ok := s.(*InvalidSitemap)
		if !ok {
			return nil
		}
		var transportErr *ErrTransport
		if invalid.cause == nil || !errors.As(invalid.cause, &transportErr) {
			return nil
		}
		if first == nil {
			first = transportErr
		}
	}
	if first == nil {
		return nil
	}
	return &ErrHomepageUnreachable{URL: home, Err: first}
}

// SitemapFromString parses a single document without touching the
// network. Declared children of index documents become InvalidSitemap
// entries.
func SitemapFromString(body string) Sitemap {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	raw := []byte(body)

	if looksLikeXML(raw) {
		result, err := parseXMLDoc(raw, logger)
		if err != nil {
			return newInvalidSitemap("", "XML parse failed: "+err.Error())
		}
		if result.kind == docSitemapIndex {
			subs := make([]Sitemap, 0, len(result.childURLs))
			for _, child := range result.childURLs {
				subs = append(subs, newInvalidSitemap(child, "sub-sitemap not fetched (no web client)"))
			}
			return newIndexXMLSitemap("", subs)
		}
		return buildStandalonePagesSitemap(result.pages, pagesVariantForDoc(result.kind), logger)
	}

	if hasSitemapDirective(raw) {
		urls := parseRobotsTxtSitemaps(raw)
		subs := make([]Sitemap, 0, len(urls))
		for _, child := range urls {
			subs = append(subs, newInvalidSitemap(child, "sub-sitemap not fetched (no web client)"))
		}
		return newIndexRobotsTxtSitemap("", subs)
	}

	return buildStandalonePagesSitemap(textPages(parseTextSitemapURLs(raw)), variantText, logger)
}

func buildStandalonePagesSitemap(pages []Page, variant pagesVariant, logger *slog.Logger) Sitemap {
	store, err := newPageStore(pages, logger)
	if err != nil {
		return newInvalidSitemap("", err.Error())
	}
	return wrapPagesSitemap("", store, variant)
}

// hasSitemapDirective reports whether any line carries a robots.txt
// sitemap directive key.
func hasSitemapDirective(body []byte) bool {
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		for _, key := range []string{"sitemap", "site-map"} {
			if len(trimmed) < len(key) {
				continue
			}
			if !strings.EqualFold(trimmed[:len(key)], key) {
				continue
			}
			if rest := strings.TrimLeft(trimmed[len(key):], " \t"); strings.HasPrefix(rest, ":") {
				return true
			}
		}
	}
	return false
}

func normalizeHomepageURL(rawURL string) (string, *url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", nil, &ErrInvalidURL{URL: rawURL, Err: errors.New("empty URL")}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", nil, &ErrInvalidURL{URL: rawURL, Err: err}
	}
	if parsed.Scheme == "" {
		if parsed, err = url.Parse("https://" + trimmed); err != nil {
			return "", nil, &ErrInvalidURL{URL: rawURL, Err: err}
		}
	}
	if parsed.Host == "" {
		return "", nil, &ErrInvalidURL{URL: rawURL, Err: errors.New("missing host")}
	}
	parsed.Fragment = ""
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return parsed.String(), base, nil
}
