package gositemaptree

import (
	"errors"
)

// Sitemap is the capability contract shared by every tree node. Index
// variants report sub-sitemaps and no pages; page variants report pages
// and no sub-sitemaps; InvalidSitemap reports neither. Callers never
// need to branch on the concrete variant.
type Sitemap interface {
	// URL is the canonical final URL the node was fetched from.
	URL() string
	// SubSitemaps returns the node's direct children in declaration
	// order, empty where not applicable.
	SubSitemaps() []Sitemap
	// Pages reloads the node's page records in declaration order,
	// empty where not applicable.
	Pages() ([]Page, error)
	// ToDict renders the node and its descendants as a generic
	// dictionary, page data inline.
	ToDict() map[string]any
	// Close releases resources held by the node and its descendants.
	// It is idempotent.
	Close() error
}

// indexSitemap is the shared body of the index-type variants.
type indexSitemap struct {
	url  string
	subs []Sitemap
}

func (s *indexSitemap) URL() string            { return s.url }
func (s *indexSitemap) SubSitemaps() []Sitemap { return s.subs }
func (s *indexSitemap) Pages() ([]Page, error) { return nil, nil }

func (s *indexSitemap) Close() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IndexWebsiteSitemap is the synthetic root of every tree; its URL is
// the homepage and its children are the robots.txt sitemap and any
// well-known-path sitemaps.
type IndexWebsiteSitemap struct {
	indexSitemap
}

// IndexRobotsTxtSitemap represents a robots.txt whose children are the
// sitemaps it declares.
type IndexRobotsTxtSitemap struct {
	indexSitemap
}

// IndexXMLSitemap represents an XML <sitemapindex> document.
type IndexXMLSitemap struct {
	indexSitemap
}

func newIndexWebsiteSitemap(url string, subs []Sitemap) *IndexWebsiteSitemap {
	return &IndexWebsiteSitemap{indexSitemap{url: url, subs: subs}}
}

func newIndexRobotsTxtSitemap(url string, subs []Sitemap) *IndexRobotsTxtSitemap {
	return &IndexRobotsTxtSitemap{indexSitemap{url: url, subs: subs}}
}

func newIndexXMLSitemap(url string, subs []Sitemap) *IndexXMLSitemap {
	return &IndexXMLSitemap{indexSitemap{url: url, subs: subs}}
}

// pagesSitemap is the shared body of the page-bearing variants. The
// page list lives in a scratch-file store and is reloaded per access.
type pagesSitemap struct {
	url   string
	store *pageStore
}

func (s *pagesSitemap) URL() string            { return s.url }
func (s *pagesSitemap) SubSitemaps() []Sitemap { return nil }
func (s *pagesSitemap) Pages() ([]Page, error) { return s.store.Pages() }
func (s *pagesSitemap) Close() error           { return s.store.Close() }

// PagesXMLSitemap is an XML <urlset> document.
type PagesXMLSitemap struct {
	pagesSitemap
}

// PagesTextSitemap is a plain-text sitemap, one URL per line.
type PagesTextSitemap struct {
	pagesSitemap
}

// PagesRSSSitemap is an RSS 2.0 feed used as a sitemap.
type PagesRSSSitemap struct {
	pagesSitemap
}

// PagesAtomSitemap is an Atom 0.3 or 1.0 feed used as a sitemap.
type PagesAtomSitemap struct {
	pagesSitemap
}

// InvalidSitemap is the placeholder for a node that could not be
// fetched or parsed; it carries the failing URL and the reason. cause
// retains the error returned by the web client when the fetch itself
// failed; it is nil for HTTP status, parse and recursion failures.
type InvalidSitemap struct {
	url    string
	reason string
	cause  error
}

func (s *InvalidSitemap) URL() string            { return s.url }
func (s *InvalidSitemap) SubSitemaps() []Sitemap { return nil }
func (s *InvalidSitemap) Pages() ([]Page, error) { return nil, nil }
func (s *InvalidSitemap) Close() error           { return nil }

// Reason is the human-readable description of the failure.
func (s *InvalidSitemap) Reason() string { return s.reason }

func newInvalidSitemap(url, reason string) *InvalidSitemap {
	return &InvalidSitemap{url: url, reason: reason}
}

func newInvalidSitemapCause(url string, cause error) *InvalidSitemap {
	return &InvalidSitemap{url: url, reason: cause.Error(), cause: cause}
}

// AllSitemaps yields every descendant of root in depth-first pre-order.
// The yield callback may return ErrStopIteration to stop cleanly; any
// other error aborts the traversal wrapped in *ErrYield.
func AllSitemaps(root Sitemap, yield func(Sitemap) error) error {
	err := walkSitemaps(root, yield)
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}

func walkSitemaps(s Sitemap, yield func(Sitemap) error) error {
	for _, sub := range s.SubSitemaps() {
		if err := yield(sub); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return err
			}
			return &ErrYield{Err: err}
		}
		if err := walkSitemaps(sub, yield); err != nil {
			return err
		}
	}
	return nil
}

// AllPages yields every page of every descendant page sitemap in
// depth-first pre-order. One leaf's page list is resident at a time;
// it is released before the traversal advances to the next leaf.
func AllPages(root Sitemap, yield func(Page) error) error {
	err := walkPages(root, yield)
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}

func walkPages(s Sitemap, yield func(Page) error) error {
	if err := yieldOwnPages(s, yield); err != nil {
		return err
	}
	for _, sub := range s.SubSitemaps() {
		if err := walkPages(sub, yield); err != nil {
			return err
		}
	}
	return nil
}

func yieldOwnPages(s Sitemap, yield func(Page) error) error {
	pages, err := s.Pages()
	if err != nil {
		return err
	}
	for _, page := range pages {
		if err := yield(page); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return err
			}
			return &ErrYield{Err: err}
		}
	}
	return nil
}
