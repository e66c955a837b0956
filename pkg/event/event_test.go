package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoEngagementScore(t *testing.T) {
	// 1% like rate and 0.5% comment rate.
	m := VideoMetrics{Views: 1000, Likes: 10, Comments: 5}
	assert.InDelta(t, 0.8, m.EngagementScore(), 1e-9)

	m = VideoMetrics{Views: 2000, Likes: 40, Comments: 10}
	assert.InDelta(t, 1.4, m.EngagementScore(), 1e-9)

	// Zero views must not divide by zero.
	m = VideoMetrics{Views: 0, Likes: 3}
	assert.InDelta(t, 180, m.EngagementScore(), 1e-9)
}

func TestLinkEngagementScore(t *testing.T) {
	m := LinkMetrics{Score: 100, Comments: 20, UpvoteRatio: 0.9}
	assert.InDelta(t, (100+40)*0.9*0.1, m.EngagementScore(), 1e-9)
	assert.Equal(t, 1200.0, m.ReachEstimate())

	// Missing upvote ratio falls back to 0.5.
	m = LinkMetrics{Score: 100, Comments: 20}
	assert.InDelta(t, (100+40)*0.5*0.1, m.EngagementScore(), 1e-9)
}

func TestShortFormEngagementScore(t *testing.T) {
	m := ShortFormMetrics{Views: 10000, Likes: 500, Shares: 100, Comments: 50}
	want := (500.0 + 200 + 75) / 10000 * 100
	assert.InDelta(t, want, m.EngagementScore(), 1e-9)
}

func TestNewsMetricsAreSilent(t *testing.T) {
	m := NewsMetrics{}
	assert.Zero(t, m.EngagementScore())
	assert.Zero(t, m.ReachEstimate())
}

func TestTrendID(t *testing.T) {
	ev := RawEvent{Platform: PlatformVideo, ContentID: "abc123"}
	assert.Equal(t, "video:abc123", ev.TrendID())
}

func TestGrowthRate(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ev := RawEvent{
		Platform:    PlatformVideo,
		ContentID:   "g1",
		PublishedAt: published,
		ObservedAt:  published.Add(2 * time.Hour),
		Metrics:     VideoMetrics{Views: 10000},
	}
	assert.InDelta(t, 5000, ev.GrowthRate(), 1e-9)

	// Observed at publish time: no measurable growth yet.
	ev.ObservedAt = published
	assert.Zero(t, ev.GrowthRate())

	// Very fresh content is floored to 0.1h so it cannot explode.
	ev.ObservedAt = published.Add(time.Minute)
	assert.InDelta(t, 100000, ev.GrowthRate(), 1e-9)
}

func TestValidate(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	good := RawEvent{
		Platform:    PlatformLink,
		ContentID:   "p1",
		PublishedAt: published,
		ObservedAt:  published.Add(time.Hour),
		Metrics:     LinkMetrics{Score: 10},
	}
	require.NoError(t, good.Validate())

	missing := good
	missing.ContentID = ""
	assert.Error(t, missing.Validate())

	missing = good
	missing.PublishedAt = time.Time{}
	assert.Error(t, missing.Validate())

	missing = good
	missing.Metrics = nil
	assert.Error(t, missing.Validate())

	mismatch := good
	mismatch.Metrics = VideoMetrics{Views: 10}
	assert.Error(t, mismatch.Validate())
}

func TestMetricsStorageRoundTrip(t *testing.T) {
	in := ShortFormMetrics{Views: 500, Likes: 25, Shares: 3, Comments: 7}

	data, err := MarshalMetrics(in)
	require.NoError(t, err)

	out, err := UnmarshalMetrics(PlatformShortForm, data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = UnmarshalMetrics(Platform("telegraph"), data)
	assert.Error(t, err)
}
