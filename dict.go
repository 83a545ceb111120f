package gositemaptree

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bytedance/sonic"
)

// Dictionary type tags.
const (
	dictTypeIndexWebsite   = "index_website"
	dictTypeIndexRobotsTxt = "index_robots_txt"
	dictTypeIndexXML       = "index_xml"
	dictTypePagesXML       = "pages_xml"
	dictTypePagesText      = "pages_text"
	dictTypePagesRSS       = "pages_rss"
	dictTypePagesAtom      = "pages_atom"
	dictTypeInvalid        = "invalid"
)

func (s *IndexWebsiteSitemap) ToDict() map[string]any   { return s.indexDict(dictTypeIndexWebsite) }
func (s *IndexRobotsTxtSitemap) ToDict() map[string]any { return s.indexDict(dictTypeIndexRobotsTxt) }
func (s *IndexXMLSitemap) ToDict() map[string]any       { return s.indexDict(dictTypeIndexXML) }
func (s *PagesXMLSitemap) ToDict() map[string]any       { return s.pagesDict(dictTypePagesXML) }
func (s *PagesTextSitemap) ToDict() map[string]any      { return s.pagesDict(dictTypePagesText) }
func (s *PagesRSSSitemap) ToDict() map[string]any       { return s.pagesDict(dictTypePagesRSS) }
func (s *PagesAtomSitemap) ToDict() map[string]any      { return s.pagesDict(dictTypePagesAtom) }

func (s *InvalidSitemap) ToDict() map[string]any {
	return map[string]any{
		"type":   dictTypeInvalid,
		"url":    s.url,
		"reason": s.reason,
	}
}

func (s *indexSitemap) indexDict(kind string) map[string]any {
	subs := make([]any, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.ToDict())
	}
	return map[string]any{
		"type":         kind,
		"url":          s.url,
		"sub_sitemaps": subs,
		"pages":        []any{},
	}
}

// pagesDict inlines the page data so whole-object serialisation
// survives across processes without the scratch file.
func (s *pagesSitemap) pagesDict(kind string) map[string]any {
	pages, err := s.Pages()
	if err != nil {
		pages = nil
	}
	return map[string]any{
		"type":         kind,
		"url":          s.url,
		"sub_sitemaps": []any{},
		"pages":        pagesToAny(pages),
	}
}

func pagesToAny(pages []Page) []any {
	if len(pages) == 0 {
		return []any{}
	}
	data, err := sonic.Marshal(pages)
	if err != nil {
		return []any{}
	}
	var out []any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return []any{}
	}
	return out
}

// MarshalSitemap renders a sitemap tree, page data inline, as JSON.
func MarshalSitemap(s Sitemap) ([]byte, error) {
	return sonic.Marshal(s.ToDict())
}

// SitemapFromDict rebuilds a sitemap tree from its dictionary form.
// Page sitemaps get fresh scratch files holding the inlined page data.
func SitemapFromDict(d map[string]any) (Sitemap, error) {
	kind, _ := d["type"].(string)
	nodeURL, _ := d["url"].(string)

	switch kind {
	case dictTypeIndexWebsite, dictTypeIndexRobotsTxt, dictTypeIndexXML:
		subs, err := subSitemapsFromDict(d)
		if err != nil {
			return nil, err
		}
		switch kind {
		case dictTypeIndexWebsite:
			return newIndexWebsiteSitemap(nodeURL, subs), nil
		case dictTypeIndexRobotsTxt:
			return newIndexRobotsTxtSitemap(nodeURL, subs), nil
		default:
			return newIndexXMLSitemap(nodeURL, subs), nil
		}
	case dictTypePagesXML, dictTypePagesText, dictTypePagesRSS, dictTypePagesAtom:
		pages, err := pagesFromDict(d)
		if err != nil {
			return nil, err
		}
		store, err := newPageStore(pages, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			return nil, err
		}
		variant := variantXML
		switch kind {
		case dictTypePagesText:
			variant = variantText
		case dictTypePagesRSS:
			variant = variantRSS
		case dictTypePagesAtom:
			variant = variantAtom
		}
		return wrapPagesSitemap(nodeURL, store, variant), nil
	case dictTypeInvalid:
		reason, _ := d["reason"].(string)
		return newInvalidSitemap(nodeURL, reason), nil
	default:
		return nil, fmt.Errorf("unknown sitemap dictionary type %q", kind)
	}
}

func subSitemapsFromDict(d map[string]any) ([]Sitemap, error) {
	raw, _ := d["sub_sitemaps"].([]any)
	subs := make([]Sitemap, 0, len(raw))
	for _, entry := range raw {
		child, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sub-sitemap entry is not a dictionary")
		}
		sub, err := SitemapFromDict(child)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func pagesFromDict(d map[string]any) ([]Page, error) {
	raw, ok := d["pages"]
	if !ok {
		return nil, nil
	}
	data, err := sonic.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var pages []Page
	if err := sonic.Unmarshal(data, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}
