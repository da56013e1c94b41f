package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>The Circuit</title>
    <item>
      <title>The Big Feature Story</title>
      <link>https://example.com/p/the-big-feature-story</link>
    </item>
    <item>
      <title>Weekly  Roundup</title>
      <link>https://example.com/p/weekly-roundup</link>
    </item>
    <item>
      <title>No Link Item</title>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCanonicalURLs(t *testing.T) {
	srv := newFeedServer(t)
	e := NewEnricher(srv.URL)

	urls, err := e.CanonicalURLs(context.Background())
	require.NoError(t, err)
	assert.Len(t, urls, 2) // the item without a link is skipped
	assert.Equal(t, "https://example.com/p/the-big-feature-story", MatchURL(urls, "The Big Feature Story"))
}

func TestEnrichLeftJoin(t *testing.T) {
	srv := newFeedServer(t)
	e := NewEnricher(srv.URL)

	posts := []domain.Post{
		{PostID: 1, Title: "the big feature story"},   // case drift
		{PostID: 2, Title: "Weekly Roundup"},          // whitespace drift in feed
		{PostID: 3, Title: "Never Published to Feed"}, // no match
	}

	matched, err := e.Enrich(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.Equal(t, "https://example.com/p/the-big-feature-story", posts[0].CanonicalURL)
	assert.Equal(t, "https://example.com/p/weekly-roundup", posts[1].CanonicalURL)
	assert.Empty(t, posts[2].CanonicalURL)
}

func TestEnrichFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := NewEnricher(srv.URL)
	_, err := e.Enrich(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch publication feed")
}
