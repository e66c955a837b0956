package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/pkg/event"
)

// Video pulls engagement events from the YouTube Data API.
type Video struct {
	client  *http.Client
	pacer   *rate.Limiter
	apiKey  string
	queries []config.SearchQuery
}

// NewVideo creates a video platform connector.
func NewVideo(apiKey string, queries []config.SearchQuery) *Video {
	if len(queries) == 0 {
		queries = []config.SearchQuery{{Query: "trending", Category: "entertainment"}}
	}
	return &Video{
		client:  newHTTPClient(),
		pacer:   newPacer(2),
		apiKey:  apiKey,
		queries: queries,
	}
}

func (v *Video) Name() string             { return "video" }
func (v *Video) Platform() event.Platform { return event.PlatformVideo }

// Fetch searches each configured query and enriches the hits with view,
// like, and comment counts. A failing query does not discard the events
// already gathered from earlier queries.
func (v *Video) Fetch(ctx context.Context, params FetchParams) ([]event.RawEvent, error) {
	if v.apiKey == "" {
		return nil, fmt.Errorf("video: API key required (set YOUTUBE_API_KEY)")
	}

	var events []event.RawEvent
	var firstErr error

	for _, q := range v.queries {
		found, err := v.search(ctx, q, params)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("video query %q: %w", q.Query, err)
			}
			continue
		}
		events = append(events, found...)
	}

	if len(events) > 0 {
		if err := v.enrichWithStats(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return events, firstErr
}

func (v *Video) search(ctx context.Context, q config.SearchQuery, fp FetchParams) ([]event.RawEvent, error) {
	if err := v.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	since := fp.Since
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	limit := fp.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", q.Query)
	params.Set("type", "video")
	params.Set("order", "viewCount")
	params.Set("publishedAfter", since.UTC().Format(time.RFC3339))
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("key", v.apiKey)

	reqURL := "https://www.googleapis.com/youtube/v3/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var result ytSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	now := time.Now().UTC()
	var events []event.RawEvent
	for _, item := range result.Items {
		videoID := item.ID.VideoID
		if videoID == "" {
			continue
		}

		published := item.Snippet.PublishedAt
		if published.IsZero() {
			published = now
		}

		events = append(events, event.RawEvent{
			ID:          fmt.Sprintf("video:%s:%d", videoID, now.Unix()),
			Platform:    event.PlatformVideo,
			ContentID:   videoID,
			Category:    q.Category,
			Title:       item.Snippet.Title,
			Text:        truncate(item.Snippet.Description, 500),
			ObservedAt:  now,
			PublishedAt: published,
			Metrics:     event.VideoMetrics{},
			Metadata: map[string]any{
				"channel":    item.Snippet.ChannelTitle,
				"channel_id": item.Snippet.ChannelID,
				"query":      q.Query,
			},
		})
	}

	return events, nil
}

// enrichWithStats batch-fetches statistics and duration for found videos
// (max 50 ids per request).
func (v *Video) enrichWithStats(ctx context.Context, events []event.RawEvent) error {
	var ids []string
	idMap := make(map[string]int)
	for i := range events {
		ids = append(ids, events[i].ContentID)
		idMap[events[i].ContentID] = i
	}

	var firstErr error
	for start := 0; start < len(ids); start += 50 {
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}

		if err := v.pacer.Wait(ctx); err != nil {
			return err
		}

		params := url.Values{}
		params.Set("part", "statistics,contentDetails")
		params.Set("id", strings.Join(ids[start:end], ","))
		params.Set("key", v.apiKey)

		reqURL := "https://www.googleapis.com/youtube/v3/videos?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			continue
		}

		resp, err := v.client.Do(req)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("video stats: %w", err)
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if firstErr == nil {
				firstErr = fmt.Errorf("video stats status %d", resp.StatusCode)
			}
			continue
		}

		var result ytVideoResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode video stats: %w", err)
			}
			continue
		}

		for _, video := range result.Items {
			idx, ok := idMap[video.ID]
			if !ok {
				continue
			}
			events[idx].Metrics = event.VideoMetrics{
				Views:    video.Statistics.ViewCount,
				Likes:    video.Statistics.LikeCount,
				Comments: video.Statistics.CommentCount,
			}
			if secs := parseISODuration(video.ContentDetails.Duration); secs > 0 {
				events[idx].Metadata["duration_seconds"] = secs
			}
		}
	}

	return firstErr
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration like PT4M13S to seconds.
func parseISODuration(s string) int {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channelTitle"`
	ChannelID    string    `json:"channelId"`
	PublishedAt  time.Time `json:"publishedAt"`
}

type ytVideoResult struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    int `json:"viewCount,string"`
			LikeCount    int `json:"likeCount,string"`
			CommentCount int `json:"commentCount,string"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}
