package gositemaptree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixtureTree(t *testing.T) *IndexWebsiteSitemap {
	t.Helper()
	storeA, err := newPageStore([]Page{
		{URL: "https://ex.org/a1", Priority: 0.7, ChangeFrequency: FrequencyWeekly},
		{URL: "https://ex.org/a2", Priority: DefaultPagePriority},
	}, discardLogger())
	require.NoError(t, err)
	storeB, err := newPageStore([]Page{
		{URL: "https://ex.org/b1", Priority: DefaultPagePriority},
	}, discardLogger())
	require.NoError(t, err)

	leafA := &PagesXMLSitemap{pagesSitemap{url: "https://ex.org/a.xml", store: storeA}}
	leafB := &PagesTextSitemap{pagesSitemap{url: "https://ex.org/b.txt", store: storeB}}
	bad := newInvalidSitemap("https://ex.org/broken.xml", "unexpected HTTP status 500")
	index := newIndexXMLSitemap("https://ex.org/sitemap_index.xml", []Sitemap{leafA, bad})
	robots := newIndexRobotsTxtSitemap("https://ex.org/robots.txt", []Sitemap{index, leafB})
	return newIndexWebsiteSitemap("https://ex.org/", []Sitemap{robots})
}

func TestAllSitemaps_PreOrder(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	var urls []string
	require.NoError(t, AllSitemaps(tree, func(s Sitemap) error {
		urls = append(urls, s.URL())
		return nil
	}))
	assert.Equal(t, []string{
		"https://ex.org/robots.txt",
		"https://ex.org/sitemap_index.xml",
		"https://ex.org/a.xml",
		"https://ex.org/broken.xml",
		"https://ex.org/b.txt",
	}, urls)
}

func TestAllSitemaps_StopIteration(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	var count int
	require.NoError(t, AllSitemaps(tree, func(Sitemap) error {
		count++
		if count == 2 {
			return ErrStopIteration
		}
		return nil
	}))
	assert.Equal(t, 2, count)
}

func TestAllSitemaps_YieldErrorWrapped(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	boom := errors.New("boom")
	err := AllSitemaps(tree, func(Sitemap) error { return boom })
	var yieldErr *ErrYield
	require.ErrorAs(t, err, &yieldErr)
	assert.ErrorIs(t, err, boom)
}

func TestAllPages_Concatenation(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	var urls []string
	require.NoError(t, AllPages(tree, func(page Page) error {
		urls = append(urls, page.URL)
		return nil
	}))
	assert.Equal(t, []string{
		"https://ex.org/a1",
		"https://ex.org/a2",
		"https://ex.org/b1",
	}, urls)
}

func TestEntities_VariantContracts(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	require.NoError(t, AllSitemaps(tree, func(s Sitemap) error {
		pages, err := s.Pages()
		require.NoError(t, err)
		if len(s.SubSitemaps()) > 0 {
			assert.Empty(t, pages, "index nodes carry no pages: %s", s.URL())
		}
		if len(pages) > 0 {
			assert.Empty(t, s.SubSitemaps(), "page nodes carry no sub-sitemaps: %s", s.URL())
		}
		return nil
	}))
}

func TestToDictFromDict_RoundTrip(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	dict := tree.ToDict()
	rebuilt, err := SitemapFromDict(dict)
	require.NoError(t, err)
	defer rebuilt.Close()

	root, ok := rebuilt.(*IndexWebsiteSitemap)
	require.True(t, ok)
	assert.Equal(t, tree.URL(), root.URL())

	var wantURLs, gotURLs []string
	require.NoError(t, AllSitemaps(tree, func(s Sitemap) error {
		wantURLs = append(wantURLs, s.URL())
		return nil
	}))
	require.NoError(t, AllSitemaps(rebuilt, func(s Sitemap) error {
		gotURLs = append(gotURLs, s.URL())
		return nil
	}))
	assert.Equal(t, wantURLs, gotURLs)

	var wantPages, gotPages []Page
	require.NoError(t, AllPages(tree, func(p Page) error {
		wantPages = append(wantPages, p)
		return nil
	}))
	require.NoError(t, AllPages(rebuilt, func(p Page) error {
		gotPages = append(gotPages, p)
		return nil
	}))
	assert.Equal(t, wantPages, gotPages)

	var invalid *InvalidSitemap
	require.NoError(t, AllSitemaps(rebuilt, func(s Sitemap) error {
		if i, ok := s.(*InvalidSitemap); ok {
			invalid = i
		}
		return nil
	}))
	require.NotNil(t, invalid)
	assert.Equal(t, "unexpected HTTP status 500", invalid.Reason())
}

func TestMarshalSitemap(t *testing.T) {
	tree := buildFixtureTree(t)
	defer tree.Close()

	data, err := MarshalSitemap(tree)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"index_website"`)
	assert.Contains(t, string(data), "https://ex.org/a1")
}

func TestSitemapFromString_Variants(t *testing.T) {
	urlset := SitemapFromString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://ex.org/a</loc></url>
</urlset>`)
	defer urlset.Close()
	require.IsType(t, &PagesXMLSitemap{}, urlset)
	pages, err := urlset.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://ex.org/a", pages[0].URL)

	index := SitemapFromString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://ex.org/a.xml</loc></sitemap>
</sitemapindex>`)
	defer index.Close()
	require.IsType(t, &IndexXMLSitemap{}, index)
	require.Len(t, index.SubSitemaps(), 1)
	require.IsType(t, &InvalidSitemap{}, index.SubSitemaps()[0])
	assert.Equal(t, "https://ex.org/a.xml", index.SubSitemaps()[0].URL())

	robots := SitemapFromString("User-agent: *\nSitemap: https://ex.org/map.xml\n")
	defer robots.Close()
	require.IsType(t, &IndexRobotsTxtSitemap{}, robots)
	require.Len(t, robots.SubSitemaps(), 1)

	text := SitemapFromString("https://ex.org/a\nhttps://ex.org/b\n")
	defer text.Close()
	require.IsType(t, &PagesTextSitemap{}, text)
	textPages2, err := text.Pages()
	require.NoError(t, err)
	assert.Len(t, textPages2, 2)

	broken := SitemapFromString("<html><body>nope</body></html>")
	require.IsType(t, &InvalidSitemap{}, broken)
}
