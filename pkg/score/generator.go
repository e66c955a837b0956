package score

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/internal/stats"
	"github.com/wavewatch/wavewatch/pkg/event"
	"github.com/wavewatch/wavewatch/pkg/normalize"
)

// Generator computes composite wave scores for content items.
type Generator struct {
	cfg        config.ScoringConfig
	classifier Classifier
	log        zerolog.Logger

	mu    sync.Mutex
	cache map[string]Sentiment
}

// NewGenerator creates a score generator. A nil classifier falls back to the
// keyword classifier. The sentiment cache lives on the generator and is
// discarded with it.
func NewGenerator(cfg config.ScoringConfig, classifier Classifier, log zerolog.Logger) *Generator {
	if classifier == nil {
		classifier = NewKeywordClassifier(nil, nil)
	}
	if cfg.Weights == (config.ComponentWeights{}) {
		cfg.Weights = config.ComponentWeights{Engagement: 0.35, Growth: 0.25, Sentiment: 0.25, Diversity: 0.15}
	}
	return &Generator{
		cfg:        cfg,
		classifier: classifier,
		log:        log.With().Str("component", "score").Logger(),
		cache:      make(map[string]Sentiment),
	}
}

// ScoreBins computes one ScoreResult per content item across the bins,
// using the most recent observation of each item. A failure computing one
// item never aborts the batch; the item gets a neutral fallback result.
// The second return value counts fallbacks.
func (g *Generator) ScoreBins(ctx context.Context, bins []event.TimeBin, groups map[normalize.GroupKey]*normalize.StatGroup, now time.Time) ([]event.ScoreResult, int) {
	latest := make(map[string]event.NormalizedEvent)
	for _, bin := range bins {
		for _, ev := range bin.Members {
			prev, ok := latest[ev.TrendID()]
			if !ok || ev.ObservedAt.After(prev.ObservedAt) {
				latest[ev.TrendID()] = ev
			}
		}
	}

	results := make([]event.ScoreResult, 0, len(latest))
	fallbacks := 0
	for _, ev := range latest {
		grp := groups[normalize.GroupKey{Platform: ev.Platform, Category: ev.Category}]
		res, err := g.scoreEvent(ctx, ev, grp, now)
		if err != nil {
			g.log.Warn().Err(err).Str("trend_id", ev.TrendID()).Msg("scoring failed, using neutral fallback")
			res = neutralResult(ev, now)
			fallbacks++
		}
		results = append(results, res)
	}

	return results, fallbacks
}

// scoreEvent computes the four components and the composite for one item.
func (g *Generator) scoreEvent(ctx context.Context, ev event.NormalizedEvent, grp *normalize.StatGroup, now time.Time) (res event.ScoreResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("score %s: %v", ev.TrendID(), r)
		}
	}()

	adjust := g.adjust(ev.Platform)
	w := g.cfg.Weights

	engagement := g.engagementComponent(ev, grp)
	growth := g.growthComponent(ev, adjust, now)
	sentiment, err := g.sentimentComponent(ctx, ev)
	if err != nil {
		return event.ScoreResult{}, err
	}
	diversity := g.diversityComponent(ev, adjust)

	base := w.Engagement*engagement*adjust.EngagementBoost +
		w.Growth*growth +
		w.Sentiment*sentiment*adjust.SentimentWeight +
		w.Diversity*diversity*adjust.DiversityFactor

	boost := viralBoost(ev.ReachEstimate, adjust.ViralThreshold)

	return event.ScoreResult{
		ContentID:  ev.ContentID,
		TrendID:    ev.TrendID(),
		Platform:   ev.Platform,
		Category:   ev.Category,
		WaveScore:  stats.Clamp(base+boost, 0, 100),
		Confidence: g.confidence(ev, grp, adjust, now),
		Components: event.ScoreComponents{
			Engagement: engagement,
			Growth:     growth,
			Sentiment:  sentiment,
			Diversity:  diversity,
		},
		ViralBoost: boost,
		ComputedAt: now,
	}, nil
}

// engagementComponent renormalizes the platform engagement formula against
// the group's z-score context when available, else a capped linear fallback.
func (g *Generator) engagementComponent(ev event.NormalizedEvent, grp *normalize.StatGroup) float64 {
	if grp != nil && grp.SampleCount >= 1 {
		stddev := grp.Engagement.StdDev
		if stddev < 1 {
			stddev = 1
		}
		z := (ev.EngagementScore - grp.Engagement.Mean) / stddev
		return stats.Clamp(stats.Sigmoid(z), 0, 100)
	}
	return stats.Clamp(ev.EngagementScore*10, 0, 100)
}

// growthComponent log-scales reach per hour since publication and boosts
// rates above the platform's expected viral rate. Content no older than its
// publish time scores neutral.
func (g *Generator) growthComponent(ev event.NormalizedEvent, adjust config.PlatformAdjust, now time.Time) float64 {
	hours := now.Sub(ev.PublishedAt).Hours()
	if hours <= 0 {
		return 50
	}

	rate := ev.ReachEstimate / hours
	score := math.Log10(rate+1) / 6 * 100
	if adjust.ViralThreshold > 0 && rate > adjust.ViralThreshold/24 {
		score *= 1.5
	}
	return stats.Clamp(score, 0, 100)
}

// sentimentComponent classifies the item's text (cached by normalized
// content) and amplifies or dampens by engagement depending on polarity.
func (g *Generator) sentimentComponent(ctx context.Context, ev event.NormalizedEvent) (float64, error) {
	text := ev.Title
	if ev.Text != "" {
		text += " " + ev.Text
	}

	sentiment, err := g.classifySentiment(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("classify sentiment: %w", err)
	}

	score := (sentiment.Compound + 1) / 2 * 100
	switch {
	case sentiment.Compound > 0.1:
		score *= math.Min(2.0, 1+ev.EngagementScore/100)
	case sentiment.Compound < -0.1:
		score *= 0.7
	}
	return stats.Clamp(score, 0, 100), nil
}

func (g *Generator) classifySentiment(ctx context.Context, text string) (Sentiment, error) {
	key := normalizeText(text)

	g.mu.Lock()
	cached, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return cached, nil
	}

	sentiment, err := g.classifier.Classify(ctx, text)
	if err != nil {
		return Sentiment{}, err
	}

	g.mu.Lock()
	g.cache[key] = sentiment
	g.mu.Unlock()
	return sentiment, nil
}

// diversityComponent is the audience breadth heuristic: a category factor, a
// platform factor, a content-length factor, and a cross-platform bonus,
// clamped to [20, 100].
func (g *Generator) diversityComponent(ev event.NormalizedEvent, adjust config.PlatformAdjust) float64 {
	score := 50.0

	if factor, ok := g.cfg.CategoryDiversity[ev.Category]; ok && factor > 0 {
		score *= factor
	}
	score *= adjust.DiversityFactor

	if secs, ok := durationSeconds(ev.Metadata); ok {
		switch {
		case secs >= 30 && secs <= 600:
			score *= 1.1
		case secs > 1800:
			score *= 0.85
		}
	}

	if cross, ok := ev.Metadata["cross_platform"].(bool); ok && cross {
		score += 15
	}

	return stats.Clamp(score, 20, 100)
}

// confidence expresses how much trust to place in the score, in [0.3, 1.0].
func (g *Generator) confidence(ev event.NormalizedEvent, grp *normalize.StatGroup, adjust config.PlatformAdjust, now time.Time) float64 {
	c := 0.8
	if ev.EngagementScore <= 0 {
		c *= 0.7
	}
	if now.Sub(ev.PublishedAt) < time.Hour {
		c *= 0.6
	}
	if grp != nil && grp.SampleCount >= 1 {
		c *= 1.1
	}
	if adjust.Confidence > 0 {
		c *= adjust.Confidence
	}
	return stats.Clamp(c, 0.3, 1.0)
}

func (g *Generator) adjust(p event.Platform) config.PlatformAdjust {
	if a, ok := g.cfg.Platforms[string(p)]; ok {
		return a
	}
	return config.PlatformAdjust{
		EngagementBoost: 1,
		SentimentWeight: 1,
		DiversityFactor: 1,
		ViralThreshold:  1_000_000,
		Confidence:      1,
	}
}

// viralBoost adds up to 20 bonus points once reach crosses the platform's
// viral threshold, scaling with the log of the overshoot.
func viralBoost(reach, threshold float64) float64 {
	if threshold <= 0 || reach < threshold {
		return 0
	}
	return math.Min(20, math.Log10(reach/threshold)*10)
}

func neutralResult(ev event.NormalizedEvent, now time.Time) event.ScoreResult {
	return event.ScoreResult{
		ContentID:  ev.ContentID,
		TrendID:    ev.TrendID(),
		Platform:   ev.Platform,
		Category:   ev.Category,
		WaveScore:  50,
		Confidence: 0.3,
		Components: event.ScoreComponents{Engagement: 25, Growth: 25, Sentiment: 25, Diversity: 25},
		ComputedAt: now,
	}
}

func durationSeconds(metadata map[string]any) (float64, bool) {
	v, ok := metadata["duration_seconds"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
