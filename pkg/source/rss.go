package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/pkg/event"
)

// News pulls events from RSS/Atom feeds. Feeds expose no engagement
// counters; the scoring side handles the missing signal.
type News struct {
	client *http.Client
	pacer  *rate.Limiter
	parser *gofeed.Parser
	feeds  []config.FeedItem
}

// NewNews creates an RSS/Atom news connector.
func NewNews(feeds []config.FeedItem) *News {
	return &News{
		client: newHTTPClient(),
		pacer:  newPacer(2),
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (n *News) Name() string             { return "news" }
func (n *News) Platform() event.Platform { return event.PlatformNews }

func (n *News) Fetch(ctx context.Context, params FetchParams) ([]event.RawEvent, error) {
	var events []event.RawEvent
	var firstErr error

	for _, feed := range n.feeds {
		found, err := n.fetchFeed(ctx, feed, params)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("news feed %s: %w", feed.Name, err)
			}
			continue
		}
		events = append(events, found...)
	}

	return events, firstErr
}

func (n *News) fetchFeed(ctx context.Context, feed config.FeedItem, fp FetchParams) ([]event.RawEvent, error) {
	if err := n.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	parsed, err := n.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	since := fp.Since
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	now := time.Now().UTC()
	var events []event.RawEvent
	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		if published.Before(since) {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}

		events = append(events, event.RawEvent{
			ID:          fmt.Sprintf("news:%s:%s:%d", feed.Name, id, now.Unix()),
			Platform:    event.PlatformNews,
			ContentID:   id,
			Category:    feed.Category,
			Title:       entry.Title,
			Text:        truncate(entry.Description, 500),
			ObservedAt:  now,
			PublishedAt: published,
			Metrics:     event.NewsMetrics{},
			Metadata: map[string]any{
				"feed": feed.Name,
			},
		})
	}

	return events, nil
}
