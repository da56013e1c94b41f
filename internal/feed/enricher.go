// Package feed enriches the post table with canonical URLs from the
// publication's public RSS feed. Enrichment is optional and best effort: a
// missing or partial feed never fails an analysis.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// Enricher fetches the publication feed and matches items to posts.
type Enricher struct {
	parser  *gofeed.Parser
	feedURL string
	timeout time.Duration
}

// NewEnricher builds an enricher for one feed URL.
func NewEnricher(feedURL string) *Enricher {
	return &Enricher{
		parser:  gofeed.NewParser(),
		feedURL: feedURL,
		timeout: 15 * time.Second,
	}
}

// CanonicalURLs fetches the feed and returns a normalized-title -> link
// map. Callers left-join it onto the post table; posts without a feed match
// keep an empty URL.
func (e *Enricher) CanonicalURLs(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	parsed, err := e.parser.ParseURLWithContext(e.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch publication feed: %w", err)
	}

	urls := make(map[string]string, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		urls[normalizeTitle(item.Title)] = item.Link
	}
	return urls, nil
}

// Enrich fills CanonicalURL on every post whose title matches a feed item.
// Returns the number of posts matched.
func (e *Enricher) Enrich(ctx context.Context, posts []domain.Post) (int, error) {
	urls, err := e.CanonicalURLs(ctx)
	if err != nil {
		return 0, err
	}

	matched := 0
	for i := range posts {
		if url := MatchURL(urls, posts[i].Title); url != "" {
			posts[i].CanonicalURL = url
			matched++
		}
	}
	return matched, nil
}

// MatchURL returns the feed link for a post title, "" when unmatched.
func MatchURL(urls map[string]string, title string) string {
	return urls[normalizeTitle(title)]
}

// normalizeTitle collapses case and whitespace so a feed title and a
// posts.csv title compare equal despite formatting drift.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
