package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/pkg/event"
)

// ShortForm pulls engagement events from a short-form video trending API
// (any aggregator exposing per-tag trending clips as JSON).
type ShortForm struct {
	client  *http.Client
	pacer   *rate.Limiter
	baseURL string
	apiKey  string
	tags    []config.SearchQuery
}

// NewShortForm creates a short-form video connector.
func NewShortForm(baseURL, apiKey string, tags []config.SearchQuery) *ShortForm {
	if len(tags) == 0 {
		tags = []config.SearchQuery{{Query: "trending", Category: "entertainment"}}
	}
	return &ShortForm{
		client:  newHTTPClient(),
		pacer:   newPacer(2),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tags:    tags,
	}
}

func (s *ShortForm) Name() string             { return "shortform" }
func (s *ShortForm) Platform() event.Platform { return event.PlatformShortForm }

func (s *ShortForm) Fetch(ctx context.Context, params FetchParams) ([]event.RawEvent, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("shortform: base URL required (set SHORTFORM_API_URL)")
	}

	var events []event.RawEvent
	var firstErr error

	for _, tag := range s.tags {
		found, err := s.fetchTag(ctx, tag, params)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("shortform tag %q: %w", tag.Query, err)
			}
			continue
		}
		events = append(events, found...)
	}

	return events, firstErr
}

func (s *ShortForm) fetchTag(ctx context.Context, tag config.SearchQuery, fp FetchParams) ([]event.RawEvent, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	limit := fp.Limit
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	params := url.Values{}
	params.Set("tag", tag.Query)
	params.Set("count", fmt.Sprintf("%d", limit))
	if !fp.Since.IsZero() {
		params.Set("since", fp.Since.UTC().Format(time.RFC3339))
	}

	reqURL := s.baseURL + "/v1/trending?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create trending request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending status %d", resp.StatusCode)
	}

	var result struct {
		Clips []shortFormClip `json:"clips"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode trending: %w", err)
	}

	now := time.Now().UTC()
	var events []event.RawEvent
	for _, clip := range result.Clips {
		if clip.ID == "" {
			continue
		}

		published := clip.CreatedAt
		if published.IsZero() {
			published = now
		}
		if !fp.Since.IsZero() && published.Before(fp.Since) {
			continue
		}

		metadata := map[string]any{
			"tag":    tag.Query,
			"author": clip.Author,
		}
		if clip.DurationSeconds > 0 {
			metadata["duration_seconds"] = clip.DurationSeconds
		}

		events = append(events, event.RawEvent{
			ID:          fmt.Sprintf("shortform:%s:%d", clip.ID, now.Unix()),
			Platform:    event.PlatformShortForm,
			ContentID:   clip.ID,
			Category:    tag.Category,
			Title:       truncate(clip.Caption, 280),
			Text:        clip.Caption,
			ObservedAt:  now,
			PublishedAt: published,
			Metrics: event.ShortFormMetrics{
				Views:    clip.Views,
				Likes:    clip.Likes,
				Shares:   clip.Shares,
				Comments: clip.Comments,
			},
			Metadata: metadata,
		})
	}

	return events, nil
}

type shortFormClip struct {
	ID              string    `json:"id"`
	Caption         string    `json:"caption"`
	Author          string    `json:"author"`
	Views           int       `json:"views"`
	Likes           int       `json:"likes"`
	Shares          int       `json:"shares"`
	Comments        int       `json:"comments"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}
