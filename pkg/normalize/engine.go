package normalize

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavewatch/wavewatch/internal/stats"
	"github.com/wavewatch/wavewatch/pkg/event"
)

// Z-score weights for combining the three per-metric scores into one raw
// normalized value.
const (
	engagementZWeight = 0.40
	reachZWeight      = 0.35
	growthZWeight     = 0.25
)

// GroupKey partitions events into the reference population used for
// z-score normalization.
type GroupKey struct {
	Platform event.Platform
	Category string
}

// StatGroup holds rolling statistics for one (platform, category) group.
// It is recomputed on every pass and never persisted.
type StatGroup struct {
	Key         GroupKey
	Engagement  stats.Summary
	Reach       stats.Summary
	Growth      stats.Summary
	SampleCount int
	Window      time.Duration
}

// zScore returns the metric z-score with the standard deviation floored at
// 1 so a uniform group cannot divide by zero.
func zScore(value float64, s stats.Summary) float64 {
	stddev := s.StdDev
	if stddev < 1 {
		stddev = 1
	}
	return (value - s.Mean) / stddev
}

// Engine computes rolling statistics, normalizes raw events, and bins them
// into fixed time windows.
type Engine struct {
	window      time.Duration
	binDuration time.Duration
	log         zerolog.Logger
}

// NewEngine creates a normalization engine for the given rolling window and
// bin duration.
func NewEngine(window, binDuration time.Duration, log zerolog.Logger) *Engine {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if binDuration <= 0 {
		binDuration = time.Hour
	}
	return &Engine{
		window:      window,
		binDuration: binDuration,
		log:         log.With().Str("component", "normalize").Logger(),
	}
}

// Window returns the rolling statistics window.
func (e *Engine) Window() time.Duration { return e.window }

// Process runs one normalization pass: bound the batch to the trailing
// window, group, compute rolling statistics, normalize each event, and bin.
// Bins are returned sorted ascending by start time, each carrying its
// normalized members for downstream scoring.
func (e *Engine) Process(events []event.RawEvent, now time.Time) ([]event.TimeBin, map[GroupKey]*StatGroup) {
	cutoff := now.Add(-e.window)
	inWindow := events[:0:0]
	for _, ev := range events {
		if ev.ObservedAt.Before(cutoff) {
			continue
		}
		inWindow = append(inWindow, ev)
	}

	groups := e.ComputeGroups(inWindow)
	normalized := make([]event.NormalizedEvent, 0, len(inWindow))
	for _, ev := range inWindow {
		normalized = append(normalized, e.NormalizeEvent(ev, groups[GroupKey{ev.Platform, ev.Category}]))
	}

	bins := e.Bin(normalized)

	e.log.Debug().
		Int("events", len(inWindow)).
		Int("groups", len(groups)).
		Int("bins", len(bins)).
		Msg("normalization pass complete")

	return bins, groups
}

// ComputeGroups partitions events by (platform, category) and computes a
// StatGroup per partition over engagement, reach, and growth.
func (e *Engine) ComputeGroups(events []event.RawEvent) map[GroupKey]*StatGroup {
	type series struct {
		engagement []float64
		reach      []float64
		growth     []float64
	}

	byKey := make(map[GroupKey]*series)
	for _, ev := range events {
		if ev.Metrics == nil {
			continue
		}
		key := GroupKey{ev.Platform, ev.Category}
		s := byKey[key]
		if s == nil {
			s = &series{}
			byKey[key] = s
		}
		s.engagement = append(s.engagement, ev.Metrics.EngagementScore())
		s.reach = append(s.reach, ev.Metrics.ReachEstimate())
		s.growth = append(s.growth, ev.GrowthRate())
	}

	groups := make(map[GroupKey]*StatGroup, len(byKey))
	for key, s := range byKey {
		groups[key] = &StatGroup{
			Key:         key,
			Engagement:  stats.Summarize(s.engagement),
			Reach:       stats.Summarize(s.reach),
			Growth:      stats.Summarize(s.growth),
			SampleCount: len(s.engagement),
			Window:      e.window,
		}
	}
	return groups
}

// NormalizeEvent converts a raw event into its normalized form against its
// group's statistics. Events without group statistics get the neutral score.
func (e *Engine) NormalizeEvent(ev event.RawEvent, grp *StatGroup) event.NormalizedEvent {
	ne := event.NormalizedEvent{RawEvent: ev}
	if ev.Metrics != nil {
		ne.EngagementScore = ev.Metrics.EngagementScore()
		ne.ReachEstimate = ev.Metrics.ReachEstimate()
		ne.GrowthRate = ev.GrowthRate()
	}

	if grp == nil || grp.SampleCount < 1 {
		ne.ZScore = 0
		ne.NormalizedScore = 50
		ne.PercentileRank = 50
		return ne
	}

	engagementZ := zScore(ne.EngagementScore, grp.Engagement)
	reachZ := zScore(ne.ReachEstimate, grp.Reach)
	growthZ := zScore(ne.GrowthRate, grp.Growth)

	ne.ZScore = engagementZWeight*engagementZ + reachZWeight*reachZ + growthZWeight*growthZ
	ne.NormalizedScore = math.Round(stats.Sigmoid(ne.ZScore))
	ne.PercentileRank = stats.PercentileRank(ne.EngagementScore, grp.Engagement.Min, grp.Engagement.Max)

	return ne
}

type binKey struct {
	start    int64
	platform event.Platform
	category string
}

// Bin truncates each event's observation time to the bin duration, groups by
// (bin start, platform, category), and aggregates. Empty bins are never
// emitted.
func (e *Engine) Bin(events []event.NormalizedEvent) []event.TimeBin {
	members := make(map[binKey][]event.NormalizedEvent)
	for _, ev := range events {
		start := ev.ObservedAt.UTC().Truncate(e.binDuration)
		key := binKey{start.UnixMilli(), ev.Platform, ev.Category}
		members[key] = append(members[key], ev)
	}

	bins := make([]event.TimeBin, 0, len(members))
	for key, evs := range members {
		sort.Slice(evs, func(i, j int) bool {
			return evs[i].ObservedAt.Before(evs[j].ObservedAt)
		})

		bin := event.TimeBin{
			BinStart:    time.UnixMilli(key.start).UTC(),
			Platform:    key.platform,
			Category:    key.category,
			BinDuration: e.binDuration,
			MemberCount: len(evs),
			Members:     evs,
		}

		scores := make([]float64, len(evs))
		for i, ev := range evs {
			scores[i] = ev.NormalizedScore
			bin.TotalReach += ev.ReachEstimate
			bin.AvgEngagement += ev.EngagementScore
			if ev.NormalizedScore > bin.MaxNormalizedScore {
				bin.MaxNormalizedScore = ev.NormalizedScore
			}
			bin.AvgNormalizedScore += ev.NormalizedScore
		}
		bin.AvgNormalizedScore /= float64(len(evs))
		bin.AvgEngagement /= float64(len(evs))
		bin.Momentum = momentum(evs)
		bin.Volatility = stats.StdDev(scores)

		bins = append(bins, bin)
	}

	sort.Slice(bins, func(i, j int) bool {
		if !bins[i].BinStart.Equal(bins[j].BinStart) {
			return bins[i].BinStart.Before(bins[j].BinStart)
		}
		if bins[i].Platform != bins[j].Platform {
			return bins[i].Platform < bins[j].Platform
		}
		return bins[i].Category < bins[j].Category
	})

	return bins
}

// momentum is the normalized score delta per hour between the oldest and
// newest members. Fewer than two members, or zero elapsed time, yields 0.
func momentum(sorted []event.NormalizedEvent) float64 {
	if len(sorted) < 2 {
		return 0
	}
	first := sorted[0]
	last := sorted[len(sorted)-1]
	hours := last.ObservedAt.Sub(first.ObservedAt).Hours()
	if hours <= 0 {
		return 0
	}
	return (last.NormalizedScore - first.NormalizedScore) / hours
}
