package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"brandlens/internal/domain/entity"
	"brandlens/internal/resilience/classify"
)

// NewsFetcher collects brand mentions from RSS/Atom news feeds using the
// gofeed library.
type NewsFetcher struct {
	client *http.Client
	feeds  []string
}

// NewNewsFetcher creates a NewsFetcher reading the given feed URLs with the
// given HTTP client.
func NewNewsFetcher(client *http.Client, feeds []string) *NewsFetcher {
	return &NewsFetcher{client: client, feeds: feeds}
}

// FetchMentions scans every configured feed for items referencing the
// brand. A single unreadable feed is logged and skipped; the fetch fails
// only when no feed could be read at all.
func (f *NewsFetcher) FetchMentions(ctx context.Context, brand *entity.Brand) ([]Mention, error) {
	if len(f.feeds) == 0 {
		return nil, errors.New("no news feeds configured")
	}

	fp := gofeed.NewParser()
	fp.UserAgent = "BrandLensBot"
	fp.Client = f.client

	var (
		mentions []Mention
		readable int
		lastErr  error
	)

	for _, feedURL := range f.feeds {
		feed, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			lastErr = feedError(feedURL, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			slog.WarnContext(ctx, "news feed unreadable, skipping",
				slog.String("feed", feedURL),
				slog.String("error", err.Error()))
			continue
		}
		readable++
		mentions = append(mentions, scanFeed(feed, feedURL, brand)...)
	}

	if readable == 0 {
		return nil, lastErr
	}

	slog.InfoContext(ctx, "news mention scan completed",
		slog.String("brand", brand.Slug),
		slog.Int("feeds_read", readable),
		slog.Int("mentions", len(mentions)))

	return mentions, nil
}

// scanFeed extracts the items referencing the brand from one parsed feed.
func scanFeed(feed *gofeed.Feed, feedURL string, brand *entity.Brand) []Mention {
	name := strings.ToLower(brand.Name)

	var mentions []Mention
	for _, it := range feed.Items {
		text := strings.ToLower(it.Title + " " + it.Description + " " + it.Content)
		if !strings.Contains(text, name) {
			continue
		}

		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}
		mentions = append(mentions, Mention{
			Title:       it.Title,
			URL:         it.Link,
			Feed:        feedURL,
			PublishedAt: pubAt,
		})
	}
	return mentions
}

// feedError maps gofeed failures to classifiable errors, preserving HTTP
// status codes when the parser surfaced one.
func feedError(feedURL string, err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return &classify.HTTPError{
			StatusCode: httpErr.StatusCode,
			Message:    fmt.Sprintf("feed %s: %s", feedURL, httpErr.Status),
		}
	}
	return fmt.Errorf("feed %s: %w", feedURL, err)
}
