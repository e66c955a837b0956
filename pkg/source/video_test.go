package source

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavewatch/wavewatch/pkg/event"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func statsTestVideo(rt roundTripperFunc) *Video {
	return &Video{
		client: &http.Client{Transport: rt},
		pacer:  newPacer(100),
		apiKey: "key",
	}
}

func statsTestEvents() []event.RawEvent {
	now := time.Now()
	return []event.RawEvent{{
		ID:          "video:vid1",
		Platform:    event.PlatformVideo,
		ContentID:   "vid1",
		Title:       "a video",
		ObservedAt:  now,
		PublishedAt: now.Add(-time.Hour),
		Metrics:     event.VideoMetrics{},
		Metadata:    map[string]any{},
	}}
}

func TestEnrichWithStatsRejectedRequest(t *testing.T) {
	v := statsTestVideo(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"reason":"quotaExceeded"}}`)),
		}, nil
	})

	events := statsTestEvents()
	err := v.enrichWithStats(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, event.VideoMetrics{}, events[0].Metrics)
}

func TestEnrichWithStatsDecodeFailure(t *testing.T) {
	v := statsTestVideo(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("not json")),
		}, nil
	})

	err := v.enrichWithStats(context.Background(), statsTestEvents())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode video stats")
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"PT4M13S", 253},
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT10M", 600},
		{"P1DT2H", 0},
		{"garbage", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseISODuration(tt.in), "input %q", tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he...", truncate("hello", 2))
	assert.Equal(t, "", truncate("", 5))
}
