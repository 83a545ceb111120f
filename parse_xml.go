package gositemaptree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Recognised namespaces. Documents that omit namespace declarations
// entirely are still parsed by local name; elements under any other
// namespace are ignored.
const (
	nsSitemapCore = "http://www.sitemaps.org/schemas/sitemap/0.9"
	nsGoogleNews  = "http://www.google.com/schemas/sitemap-news/0.9"
	nsGoogleImage = "http://www.google.com/schemas/sitemap-image/1.1"
	nsXHTML       = "http://www.w3.org/1999/xhtml"
	nsAtom10      = "http://www.w3.org/2005/Atom"
	nsAtom03      = "http://purl.org/atom/ns#"
)

type xmlDocKind int

const (
	docSitemapIndex xmlDocKind = iota
	docURLSet
	docRSS
	docAtom
)

type xmlParseResult struct {
	kind      xmlDocKind
	childURLs []string
	pages     []Page
}

// looksLikeXML applies the detection heuristic: the body, after
// trimming leading whitespace, begins with '<'. Content-type is not
// trusted.
func looksLikeXML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// parseXMLDoc identifies the document type from the root element's
// local name and hands off to the concrete parser. Index documents
// yield child URLs; page documents yield page records. Truncated
// documents are parsed as far as possible; only a document with no
// recognisable root is an error.
func parseXMLDoc(body []byte, logger *slog.Logger) (*xmlParseResult, error) {
	decoder := newLenientDecoder(body)
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("no recognised root element: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "sitemapindex":
			return &xmlParseResult{kind: docSitemapIndex, childURLs: parseSitemapIndex(decoder, logger)}, nil
		case "urlset":
			return &xmlParseResult{kind: docURLSet, pages: parseURLSet(decoder, logger)}, nil
		case "rss":
			return &xmlParseResult{kind: docRSS, pages: parseRSS(decoder, logger)}, nil
		case "feed":
			return &xmlParseResult{kind: docAtom, pages: parseAtomFeed(decoder, logger)}, nil
		default:
			return nil, fmt.Errorf("unsupported root element %q", start.Name.Local)
		}
	}
}

func newLenientDecoder(body []byte) *xml.Decoder {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	return decoder
}

// matchNS accepts an element when its local name matches and its
// namespace is one of the given URIs, the conventional prefix left
// unresolved by a missing declaration, or absent entirely.
func matchNS(name xml.Name, local string, spaces ...string) bool {
	if name.Local != local {
		return false
	}
	if name.Space == "" {
		return true
	}
	return slices.Contains(spaces, name.Space)
}

func coreName(name xml.Name, local string) bool {
	return matchNS(name, local, nsSitemapCore)
}

func newsName(name xml.Name, local string) bool {
	return matchNS(name, local, nsGoogleNews, "news")
}

func imageName(name xml.Name, local string) bool {
	return matchNS(name, local, nsGoogleImage, "image")
}

func xhtmlName(name xml.Name, local string) bool {
	return matchNS(name, local, nsXHTML, "xhtml")
}

func atomName(name xml.Name, local string) bool {
	return matchNS(name, local, nsAtom10, nsAtom03, "atom")
}

// elementText collects the character data directly inside the element
// whose start tag was just consumed, skipping over nested elements.
func elementText(decoder *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return strings.TrimSpace(sb.String()), nil
			}
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
}

// ===================== Sitemap index =====================

// parseSitemapIndex emits the <loc> of every <sitemap> child in
// declaration order, first occurrence of a URL winning. A truncated
// document keeps whatever parsed before the damage.
func parseSitemapIndex(decoder *xml.Decoder, logger *slog.Logger) []string {
	seen := make(map[string]struct{})
	var urls []string
	for {
		tok, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("sitemap index truncated, keeping partial result", "error", err)
			}
			return urls
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !coreName(start.Name, "sitemap") {
			if err := decoder.Skip(); err != nil {
				logger.Warn("sitemap index truncated, keeping partial result", "error", err)
				return urls
			}
			continue
		}
		loc, err := parseIndexEntry(decoder)
		if err != nil {
			logger.Warn("sitemap index truncated, keeping partial result", "error", err)
			return urls
		}
		if loc == "" {
			continue
		}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		urls = append(urls, loc)
	}
}

func parseIndexEntry(decoder *xml.Decoder) (string, error) {
	var loc string
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if coreName(t.Name, "loc") {
				if loc, err = elementText(decoder); err != nil {
					return "", err
				}
			} else if err := decoder.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return loc, nil
		}
	}
}

// ===================== URL set =====================

// parseURLSet emits one page per <url> element. Entries without a
// usable <loc> are skipped; duplicate URLs within one document are
// dropped, first seen winning. Truncation keeps the pages parsed so
// far.
func parseURLSet(decoder *xml.Decoder, logger *slog.Logger) []Page {
	seen := make(map[string]struct{})
	var pages []Page
	for {
		tok, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("urlset truncated, keeping partial result", "error", err)
			}
			return pages
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !coreName(start.Name, "url") {
			if err := decoder.Skip(); err != nil {
				logger.Warn("urlset truncated, keeping partial result", "error", err)
				return pages
			}
			continue
		}
		page, err := parseURLEntry(decoder)
		if err != nil {
			logger.Warn("urlset truncated, keeping partial result", "error", err)
			return pages
		}
		if page == nil {
			continue
		}
		if _, ok := seen[page.URL]; ok {
			continue
		}
		seen[page.URL] = struct{}{}
		pages = append(pages, *page)
	}
}

func parseURLEntry(decoder *xml.Decoder) (*Page, error) {
	var loc, lastmod, changefreq, priority string
	var news *PageNews
	var images []PageImage
	var alternates []PageAlternate
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case coreName(t.Name, "loc"):
				loc, err = elementText(decoder)
			case coreName(t.Name, "lastmod"):
				lastmod, err = elementText(decoder)
			case coreName(t.Name, "changefreq"):
				changefreq, err = elementText(decoder)
			case coreName(t.Name, "priority"):
				priority, err = elementText(decoder)
			case newsName(t.Name, "news"):
				news, err = parseNewsBlock(decoder)
			case imageName(t.Name, "image"):
				var image *PageImage
				if image, err = parseImageBlock(decoder); image != nil {
					images = append(images, *image)
				}
			case xhtmlName(t.Name, "link"):
				if alternate := alternateFromAttrs(t.Attr); alternate != nil {
					alternates = append(alternates, *alternate)
				}
				err = decoder.Skip()
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			loc = strings.TrimSpace(loc)
			if loc == "" {
				return nil, nil
			}
			return &Page{
				URL:             loc,
				Priority:        parsePagePriority(priority),
				LastModified:    parseSitemapDate(lastmod),
				ChangeFrequency: parseChangeFrequency(changefreq),
				News:            news,
				Images:          images,
				Alternates:      alternates,
			}, nil
		}
	}
}

// parseNewsBlock reads one <news:news> extension block. Publication
// name and language are both required; when either is missing the
// whole extension is discarded and the base page kept.
func parseNewsBlock(decoder *xml.Decoder) (*PageNews, error) {
	var news PageNews
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			switch {
			case newsName(t.Name, "publication"):
				err = parseNewsPublication(decoder, &news)
			case newsName(t.Name, "publication_date"):
				if text, err = elementText(decoder); err == nil {
					news.PublicationDate = parseSitemapDate(text)
				}
			case newsName(t.Name, "title"):
				news.Title, err = elementText(decoder)
			case newsName(t.Name, "access"):
				news.Access, err = elementText(decoder)
			case newsName(t.Name, "genres"):
				if text, err = elementText(decoder); err == nil {
					news.Genres = splitCommaList(text)
				}
			case newsName(t.Name, "keywords"):
				if text, err = elementText(decoder); err == nil {
					news.Keywords = splitCommaList(text)
				}
			case newsName(t.Name, "stock_tickers"):
				if text, err = elementText(decoder); err == nil {
					news.StockTickers = splitCommaList(text)
				}
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			if news.PublicationName == "" || news.PublicationLanguage == "" {
				return nil, nil
			}
			return &news, nil
		}
	}
}

func parseNewsPublication(decoder *xml.Decoder, news *PageNews) error {
	for {
		tok, err := decoder.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case newsName(t.Name, "name"):
				news.PublicationName, err = elementText(decoder)
			case newsName(t.Name, "language"):
				news.PublicationLanguage, err = elementText(decoder)
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// parseImageBlock reads one <image:image> record; loc is required.
func parseImageBlock(decoder *xml.Decoder) (*PageImage, error) {
	var image PageImage
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case imageName(t.Name, "loc"):
				image.Loc, err = elementText(decoder)
			case imageName(t.Name, "caption"):
				image.Caption, err = elementText(decoder)
			case imageName(t.Name, "geo_location"):
				image.GeoLocation, err = elementText(decoder)
			case imageName(t.Name, "title"):
				image.Title, err = elementText(decoder)
			case imageName(t.Name, "license"):
				image.License, err = elementText(decoder)
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			if strings.TrimSpace(image.Loc) == "" {
				return nil, nil
			}
			return &image, nil
		}
	}
}

func alternateFromAttrs(attrs []xml.Attr) *PageAlternate {
	var rel, href, hreflang string
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "rel":
			rel = strings.TrimSpace(attr.Value)
		case "href":
			href = strings.TrimSpace(attr.Value)
		case "hreflang":
			hreflang = strings.TrimSpace(attr.Value)
		}
	}
	if !strings.EqualFold(rel, "alternate") || href == "" || hreflang == "" {
		return nil
	}
	return &PageAlternate{Href: href, Hreflang: hreflang}
}

// ===================== RSS 2.0 =====================

// parseRSS emits one page per <item> carrying all of title,
// description and link; items missing any are dropped. Channel-level
// metadata is ignored.
func parseRSS(decoder *xml.Decoder, logger *slog.Logger) []Page {
	seen := make(map[string]struct{})
	var pages []Page
	for {
		tok, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("rss feed truncated, keeping partial result", "error", err)
			}
			return pages
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "channel":
			// descend; items live inside the channel
		case "item":
			page, err := parseRSSItem(decoder)
			if err != nil {
				logger.Warn("rss feed truncated, keeping partial result", "error", err)
				return pages
			}
			if page == nil {
				continue
			}
			if _, ok := seen[page.URL]; ok {
				continue
			}
			seen[page.URL] = struct{}{}
			pages = append(pages, *page)
		default:
			if err := decoder.Skip(); err != nil {
				logger.Warn("rss feed truncated, keeping partial result", "error", err)
				return pages
			}
		}
	}
}

func parseRSSItem(decoder *xml.Decoder) (*Page, error) {
	var link, pubDate string
	var hasTitle, hasDescription bool
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "title":
				_, err = elementText(decoder)
				hasTitle = true
			case "description":
				_, err = elementText(decoder)
				hasDescription = true
			case "link":
				link, err = elementText(decoder)
			case "pubDate":
				pubDate, err = elementText(decoder)
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			link = strings.TrimSpace(link)
			if !hasTitle || !hasDescription || link == "" {
				return nil, nil
			}
			return &Page{
				URL:          link,
				Priority:     DefaultPagePriority,
				LastModified: parseSitemapDate(pubDate),
			}, nil
		}
	}
}

// ===================== Atom 0.3 / 1.0 =====================

// parseAtomFeed emits one page per <entry>. The alternate link (or the
// first link with no rel) supplies the location; entries without a
// usable link are dropped. Both Atom versions share this parser.
func parseAtomFeed(decoder *xml.Decoder, logger *slog.Logger) []Page {
	seen := make(map[string]struct{})
	var pages []Page
	for {
		tok, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("atom feed truncated, keeping partial result", "error", err)
			}
			return pages
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !atomName(start.Name, "entry") {
			if err := decoder.Skip(); err != nil {
				logger.Warn("atom feed truncated, keeping partial result", "error", err)
				return pages
			}
			continue
		}
		page, err := parseAtomEntry(decoder)
		if err != nil {
			logger.Warn("atom feed truncated, keeping partial result", "error", err)
			return pages
		}
		if page == nil {
			continue
		}
		if _, ok := seen[page.URL]; ok {
			continue
		}
		seen[page.URL] = struct{}{}
		pages = append(pages, *page)
	}
}

func parseAtomEntry(decoder *xml.Decoder) (*Page, error) {
	var alternateHref, plainHref string
	var updated, modified, issued string
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case atomName(t.Name, "link"):
				rel, href := linkAttrs(t.Attr)
				if strings.EqualFold(rel, "alternate") && alternateHref == "" {
					alternateHref = href
				} else if rel == "" && plainHref == "" {
					plainHref = href
				}
				err = decoder.Skip()
			case atomName(t.Name, "updated"):
				updated, err = elementText(decoder)
			case atomName(t.Name, "modified"):
				modified, err = elementText(decoder)
			case atomName(t.Name, "issued"):
				issued, err = elementText(decoder)
			default:
				err = decoder.Skip()
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			loc := alternateHref
			if loc == "" {
				loc = plainHref
			}
			loc = strings.TrimSpace(loc)
			if loc == "" {
				return nil, nil
			}
			var lastModified *time.Time
			for _, candidate := range []string{updated, modified, issued} {
				if strings.TrimSpace(candidate) != "" {
					lastModified = parseSitemapDate(candidate)
					break
				}
			}
			return &Page{
				URL:          loc,
				Priority:     DefaultPagePriority,
				LastModified: lastModified,
			}, nil
		}
	}
}

func linkAttrs(attrs []xml.Attr) (rel, href string) {
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "rel":
			rel = strings.TrimSpace(attr.Value)
		case "href":
			href = strings.TrimSpace(attr.Value)
		}
	}
	return rel, href
}
