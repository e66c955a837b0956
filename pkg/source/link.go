package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavewatch/wavewatch/pkg/event"
)

// Link pulls engagement events from the Reddit API.
type Link struct {
	client       *http.Client
	pacer        *rate.Limiter
	clientID     string
	clientSecret string
	// communities maps community name to category.
	communities map[string]string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewLink creates a link aggregator connector.
func NewLink(clientID, clientSecret string, communities map[string]string) *Link {
	if len(communities) == 0 {
		communities = map[string]string{"technology": "tech"}
	}
	return &Link{
		client:       newHTTPClient(),
		pacer:        newPacer(1),
		clientID:     clientID,
		clientSecret: clientSecret,
		communities:  communities,
	}
}

func (l *Link) Name() string             { return "link" }
func (l *Link) Platform() event.Platform { return event.PlatformLink }

func (l *Link) Fetch(ctx context.Context, params FetchParams) ([]event.RawEvent, error) {
	if err := l.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("link auth: %w", err)
	}

	var events []event.RawEvent
	var firstErr error

	for community, category := range l.communities {
		found, err := l.fetchCommunity(ctx, community, category, params)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("link community %s: %w", community, err)
			}
			continue
		}
		events = append(events, found...)
	}

	return events, firstErr
}

func (l *Link) authenticate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" && time.Now().Before(l.tokenExpiry) {
		return nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://www.reddit.com/api/v1/access_token",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(l.clientID, l.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	l.token = tokenResp.AccessToken
	l.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (l *Link) fetchCommunity(ctx context.Context, community, category string, fp FetchParams) ([]event.RawEvent, error) {
	if err := l.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	limit := fp.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	reqURL := fmt.Sprintf("https://oauth.reddit.com/r/%s/hot.json?limit=%d", community, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", community, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("r/%s status %d", community, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode r/%s: %w", community, err)
	}

	now := time.Now().UTC()
	var events []event.RawEvent
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}

		published := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if !fp.Since.IsZero() && published.Before(fp.Since) {
			continue
		}

		events = append(events, event.RawEvent{
			ID:          fmt.Sprintf("link:%s:%d", post.ID, now.Unix()),
			Platform:    event.PlatformLink,
			ContentID:   post.ID,
			Category:    category,
			Title:       post.Title,
			Text:        truncate(post.Selftext, 500),
			ObservedAt:  now,
			PublishedAt: published,
			Metrics: event.LinkMetrics{
				Score:       post.Score,
				Comments:    post.NumComments,
				UpvoteRatio: post.UpvoteRatio,
			},
			Metadata: map[string]any{
				"community": community,
				"author":    post.Author,
			},
		})
	}

	return events, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}
