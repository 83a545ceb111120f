package gositemaptree

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageStore_RoundTrip(t *testing.T) {
	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pages := []Page{
		{
			URL:             "https://ex.org/a",
			Priority:        0.8,
			LastModified:    &modified,
			ChangeFrequency: FrequencyDaily,
			News: &PageNews{
				Title:               "A story",
				PublicationName:     "The Example Times",
				PublicationLanguage: "en",
				Genres:              []string{"Blog"},
			},
			Images:     []PageImage{{Loc: "https://ex.org/img.png", Caption: "img"}},
			Alternates: []PageAlternate{{Href: "https://ex.org/fr/a", Hreflang: "fr"}},
		},
		{URL: "https://ex.org/b", Priority: DefaultPagePriority},
	}

	store, err := newPageStore(pages, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	for range 2 {
		reloaded, err := store.Pages()
		require.NoError(t, err)
		require.Len(t, reloaded, 2)
		assert.Equal(t, pages[0].URL, reloaded[0].URL)
		assert.Equal(t, pages[0].Priority, reloaded[0].Priority)
		require.NotNil(t, reloaded[0].LastModified)
		assert.True(t, reloaded[0].LastModified.Equal(modified))
		assert.Equal(t, pages[0].News, reloaded[0].News)
		assert.Equal(t, pages[0].Images, reloaded[0].Images)
		assert.Equal(t, pages[0].Alternates, reloaded[0].Alternates)
		assert.Equal(t, pages[1], reloaded[1])
	}
}

func TestPageStore_EmptyList(t *testing.T) {
	store, err := newPageStore(nil, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	reloaded, err := store.Pages()
	require.NoError(t, err)
	assert.Empty(t, reloaded)
}

func TestPageStore_CloseRemovesScratchFile(t *testing.T) {
	store, err := newPageStore([]Page{{URL: "https://ex.org/a"}}, discardLogger())
	require.NoError(t, err)

	_, statErr := os.Stat(store.path)
	require.NoError(t, statErr)

	require.NoError(t, store.Close())
	_, statErr = os.Stat(store.path)
	assert.True(t, os.IsNotExist(statErr))

	// idempotent
	require.NoError(t, store.Close())
}

func TestPageStore_MissingFileAtCloseIsTolerated(t *testing.T) {
	store, err := newPageStore([]Page{{URL: "https://ex.org/a"}}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, os.Remove(store.path))
	assert.NoError(t, store.Close())
}
