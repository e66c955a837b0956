package score

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/internal/stats"
	"github.com/wavewatch/wavewatch/pkg/event"
	"github.com/wavewatch/wavewatch/pkg/normalize"
)

var scoreNow = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(config.Default().Scoring, nil, zerolog.Nop())
}

func normalizedVideo(id string, views, likes, comments int, age time.Duration) event.NormalizedEvent {
	raw := event.RawEvent{
		ID:          id,
		Platform:    event.PlatformVideo,
		ContentID:   id,
		Category:    "tech",
		Title:       "a video about " + id,
		ObservedAt:  scoreNow,
		PublishedAt: scoreNow.Add(-age),
		Metrics:     event.VideoMetrics{Views: views, Likes: likes, Comments: comments},
	}
	return event.NormalizedEvent{
		RawEvent:        raw,
		EngagementScore: raw.Metrics.EngagementScore(),
		ReachEstimate:   raw.Metrics.ReachEstimate(),
		GrowthRate:      raw.GrowthRate(),
	}
}

func TestViralBoost(t *testing.T) {
	// Twice the threshold adds log10(2)*10 points.
	assert.InDelta(t, 3.0103, viralBoost(2_000_000, 1_000_000), 1e-3)

	assert.Zero(t, viralBoost(999_999, 1_000_000))
	assert.Zero(t, viralBoost(500, 0))

	// The boost is capped at 20 no matter the overshoot.
	assert.Equal(t, 20.0, viralBoost(1e12, 1_000_000))
}

func TestGrowthComponentNeutralAtPublishTime(t *testing.T) {
	g := testGenerator(t)
	ev := normalizedVideo("fresh", 1000, 10, 5, 0)

	got := g.growthComponent(ev, g.adjust(event.PlatformVideo), scoreNow)
	assert.Equal(t, 50.0, got)
}

func TestGrowthComponentViralMultiplier(t *testing.T) {
	g := testGenerator(t)
	adjust := config.PlatformAdjust{ViralThreshold: 1_000_000}

	slow := normalizedVideo("slow", 1000, 10, 5, 10*time.Hour)
	fast := normalizedVideo("fast", 5_000_000, 10, 5, 10*time.Hour)

	slowScore := g.growthComponent(slow, adjust, scoreNow)
	fastScore := g.growthComponent(fast, adjust, scoreNow)

	assert.Greater(t, fastScore, slowScore)
	assert.LessOrEqual(t, fastScore, 100.0)
	assert.GreaterOrEqual(t, slowScore, 0.0)
}

func TestEngagementComponentUsesGroupContext(t *testing.T) {
	g := testGenerator(t)
	ev := normalizedVideo("v1", 1000, 10, 5, 4*time.Hour)

	grp := &normalize.StatGroup{
		Key:         normalize.GroupKey{Platform: event.PlatformVideo, Category: "tech"},
		Engagement:  stats.Summary{Mean: ev.EngagementScore, StdDev: 0.3, Count: 2},
		SampleCount: 2,
	}

	// At the group mean, the sigmoid sits exactly on 50.
	assert.InDelta(t, 50, g.engagementComponent(ev, grp), 1e-9)

	// Without a group, a capped linear fallback applies.
	assert.InDelta(t, ev.EngagementScore*10, g.engagementComponent(ev, nil), 1e-9)
}

func TestScoreBinsBounds(t *testing.T) {
	g := testGenerator(t)

	members := []event.NormalizedEvent{
		normalizedVideo("v1", 1000, 10, 5, 4*time.Hour),
		normalizedVideo("v2", 2_500_000, 80_000, 9000, 2*time.Hour),
	}
	bins := []event.TimeBin{{
		BinStart: scoreNow.Truncate(time.Hour),
		Platform: event.PlatformVideo,
		Category: "tech",
		Members:  members,
	}}

	results, fallbacks := g.ScoreBins(context.Background(), bins, nil, scoreNow)

	require.Len(t, results, 2)
	assert.Zero(t, fallbacks)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.WaveScore, 0.0)
		assert.LessOrEqual(t, r.WaveScore, 100.0)
		assert.GreaterOrEqual(t, r.Confidence, 0.3)
		assert.LessOrEqual(t, r.Confidence, 1.0)
		assert.Equal(t, scoreNow, r.ComputedAt)
	}
}

func TestScoreBinsKeepsLatestObservation(t *testing.T) {
	g := testGenerator(t)

	early := normalizedVideo("v1", 1000, 10, 5, 4*time.Hour)
	early.ObservedAt = scoreNow.Add(-time.Hour)
	late := normalizedVideo("v1", 5000, 200, 40, 4*time.Hour)

	bins := []event.TimeBin{
		{Platform: event.PlatformVideo, Category: "tech", Members: []event.NormalizedEvent{early}},
		{Platform: event.PlatformVideo, Category: "tech", Members: []event.NormalizedEvent{late}},
	}

	results, _ := g.ScoreBins(context.Background(), bins, nil, scoreNow)
	require.Len(t, results, 1)
	assert.Equal(t, "video:v1", results[0].TrendID)
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (Sentiment, error) {
	return Sentiment{}, errors.New("classifier offline")
}

func TestScoreBinsNeutralFallback(t *testing.T) {
	g := NewGenerator(config.Default().Scoring, failingClassifier{}, zerolog.Nop())

	bins := []event.TimeBin{{
		Platform: event.PlatformVideo,
		Category: "tech",
		Members:  []event.NormalizedEvent{normalizedVideo("v1", 1000, 10, 5, 4*time.Hour)},
	}}

	results, fallbacks := g.ScoreBins(context.Background(), bins, nil, scoreNow)

	require.Len(t, results, 1)
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, 50.0, results[0].WaveScore)
	assert.Equal(t, 0.3, results[0].Confidence)
	assert.Equal(t, event.ScoreComponents{Engagement: 25, Growth: 25, Sentiment: 25, Diversity: 25}, results[0].Components)
}

func TestConfidencePenalties(t *testing.T) {
	g := testGenerator(t)
	adjust := config.PlatformAdjust{Confidence: 1}

	seasoned := normalizedVideo("v1", 1000, 10, 5, 4*time.Hour)
	fresh := normalizedVideo("v2", 1000, 10, 5, 10*time.Minute)

	assert.Greater(t,
		g.confidence(seasoned, nil, adjust, scoreNow),
		g.confidence(fresh, nil, adjust, scoreNow))

	silent := seasoned
	silent.EngagementScore = 0
	assert.Greater(t,
		g.confidence(seasoned, nil, adjust, scoreNow),
		g.confidence(silent, nil, adjust, scoreNow))

	grp := &normalize.StatGroup{SampleCount: 5}
	assert.Greater(t,
		g.confidence(seasoned, grp, adjust, scoreNow),
		g.confidence(seasoned, nil, adjust, scoreNow))
}

func TestDiversityComponentFactors(t *testing.T) {
	g := testGenerator(t)
	adjust := config.PlatformAdjust{DiversityFactor: 1}

	tech := normalizedVideo("v1", 1000, 10, 5, 4*time.Hour)
	entertainment := tech
	entertainment.Category = "entertainment"

	assert.Greater(t,
		g.diversityComponent(entertainment, adjust),
		g.diversityComponent(tech, adjust))

	short := tech
	short.Metadata = map[string]any{"duration_seconds": 120}
	long := tech
	long.Metadata = map[string]any{"duration_seconds": 3600}
	assert.Greater(t,
		g.diversityComponent(short, adjust),
		g.diversityComponent(long, adjust))

	cross := tech
	cross.Metadata = map[string]any{"cross_platform": true}
	assert.InDelta(t, 15,
		g.diversityComponent(cross, adjust)-g.diversityComponent(tech, adjust), 1e-9)

	// Bounds hold regardless of factors.
	assert.GreaterOrEqual(t, g.diversityComponent(long, adjust), 20.0)
	assert.LessOrEqual(t, g.diversityComponent(cross, adjust), 100.0)
}
