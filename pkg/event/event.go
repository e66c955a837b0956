package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Platform identifies which content platform an event came from.
type Platform string

const (
	PlatformVideo     Platform = "video"
	PlatformLink      Platform = "link"
	PlatformShortForm Platform = "shortform"
	PlatformNews      Platform = "news"
)

// AllPlatforms returns all known platforms.
func AllPlatforms() []Platform {
	return []Platform{PlatformVideo, PlatformLink, PlatformShortForm, PlatformNews}
}

// Metrics is the per-platform engagement payload. Each platform carries its
// own concrete shape so engagement formulas match on type instead of being
// dispatched over metric-name strings.
type Metrics interface {
	Platform() Platform
	// EngagementScore combines the platform's raw counters into a single
	// engagement signal.
	EngagementScore() float64
	// ReachEstimate approximates how many people saw the content.
	ReachEstimate() float64
}

// VideoMetrics are the counters reported by view-based video platforms.
type VideoMetrics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

func (m VideoMetrics) Platform() Platform { return PlatformVideo }

// EngagementScore weights like-rate over comment-rate, both per view.
func (m VideoMetrics) EngagementScore() float64 {
	views := float64(m.Views)
	if views < 1 {
		views = 1
	}
	likeRate := float64(m.Likes) / views
	commentRate := float64(m.Comments) / views
	return likeRate*60 + commentRate*40
}

func (m VideoMetrics) ReachEstimate() float64 { return float64(m.Views) }

// LinkMetrics are the counters reported by vote-based link aggregators.
type LinkMetrics struct {
	Score       int     `json:"score"`
	Comments    int     `json:"comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}

func (m LinkMetrics) Platform() Platform { return PlatformLink }

func (m LinkMetrics) EngagementScore() float64 {
	ratio := m.UpvoteRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	return (float64(m.Score) + 2*float64(m.Comments)) * ratio * 0.1
}

// ReachEstimate assumes roughly a dozen views per upvote.
func (m LinkMetrics) ReachEstimate() float64 { return float64(m.Score) * 12 }

// ShortFormMetrics are the counters reported by short-form video platforms.
type ShortFormMetrics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

func (m ShortFormMetrics) Platform() Platform { return PlatformShortForm }

func (m ShortFormMetrics) EngagementScore() float64 {
	views := float64(m.Views)
	if views < 1 {
		views = 1
	}
	return (float64(m.Likes) + 2*float64(m.Shares) + 1.5*float64(m.Comments)) / views * 100
}

func (m ShortFormMetrics) ReachEstimate() float64 { return float64(m.Views) }

// NewsMetrics is the empty payload for feed-based sources that expose no
// engagement counters. Scoring treats the missing signal via the confidence
// penalty rather than inventing numbers here.
type NewsMetrics struct{}

func (m NewsMetrics) Platform() Platform       { return PlatformNews }
func (m NewsMetrics) EngagementScore() float64 { return 0 }
func (m NewsMetrics) ReachEstimate() float64   { return 0 }

// MarshalMetrics serializes a metrics payload for storage.
func MarshalMetrics(m Metrics) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// UnmarshalMetrics restores a metrics payload from its platform tag and
// stored JSON.
func UnmarshalMetrics(p Platform, data []byte) (Metrics, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch p {
	case PlatformVideo:
		var m VideoMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal video metrics: %w", err)
		}
		return m, nil
	case PlatformLink:
		var m LinkMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal link metrics: %w", err)
		}
		return m, nil
	case PlatformShortForm:
		var m ShortFormMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal shortform metrics: %w", err)
		}
		return m, nil
	case PlatformNews:
		return NewsMetrics{}, nil
	}
	return nil, fmt.Errorf("unknown platform %q", p)
}

// RawEvent is one observation of a content item at ingestion time.
type RawEvent struct {
	ID          string         `json:"id"`
	Platform    Platform       `json:"platform"`
	ContentID   string         `json:"content_id"`
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Text        string         `json:"text,omitempty"`
	ObservedAt  time.Time      `json:"observed_at"`
	PublishedAt time.Time      `json:"published_at"`
	Metrics     Metrics        `json:"metrics"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TrendID identifies a content item across observations.
func (e RawEvent) TrendID() string {
	return fmt.Sprintf("%s:%s", e.Platform, e.ContentID)
}

// GrowthRate is reach per hour since publication. Content observed at or
// before its publish time has no measurable growth yet.
func (e RawEvent) GrowthRate() float64 {
	if e.Metrics == nil {
		return 0
	}
	hours := e.ObservedAt.Sub(e.PublishedAt).Hours()
	if hours <= 0 {
		return 0
	}
	if hours < 0.1 {
		hours = 0.1
	}
	return e.Metrics.ReachEstimate() / hours
}

// Validate rejects events the pipeline cannot process. Noisy timestamps are
// tolerated, but published_at must be set.
func (e RawEvent) Validate() error {
	if e.ContentID == "" {
		return errors.New("missing content_id")
	}
	if e.PublishedAt.IsZero() {
		return errors.New("missing published_at")
	}
	if e.Metrics == nil {
		return errors.New("missing metrics")
	}
	if e.Metrics.Platform() != e.Platform {
		return fmt.Errorf("metrics platform %q does not match event platform %q", e.Metrics.Platform(), e.Platform)
	}
	return nil
}

// NormalizedEvent is a RawEvent enriched with derived measures.
type NormalizedEvent struct {
	RawEvent

	EngagementScore float64 `json:"engagement_score"`
	ReachEstimate   float64 `json:"reach_estimate"`
	GrowthRate      float64 `json:"growth_rate"`
	ZScore          float64 `json:"z_score"`
	NormalizedScore float64 `json:"normalized_score"`
	PercentileRank  float64 `json:"percentile_rank"`
}

// TimeBin aggregates normalized events sharing a truncated timestamp,
// platform, and category.
type TimeBin struct {
	BinStart    time.Time     `json:"bin_start" db:"bin_start"`
	Platform    Platform      `json:"platform" db:"platform"`
	Category    string        `json:"category" db:"category"`
	BinDuration time.Duration `json:"bin_duration_ms" db:"-"`

	MemberCount        int     `json:"member_count" db:"member_count"`
	AvgNormalizedScore float64 `json:"avg_normalized_score" db:"avg_normalized_score"`
	MaxNormalizedScore float64 `json:"max_normalized_score" db:"max_normalized_score"`
	TotalReach         float64 `json:"total_reach" db:"total_reach"`
	AvgEngagement      float64 `json:"avg_engagement" db:"avg_engagement"`
	Momentum           float64 `json:"momentum" db:"momentum"`
	Volatility         float64 `json:"volatility" db:"volatility"`

	// Members carries the bin's normalized events to the scorer; it is not
	// persisted.
	Members []NormalizedEvent `json:"-" db:"-"`
}

// ScoreComponents are the four weighted sub-scores of a WaveScore.
type ScoreComponents struct {
	Engagement float64 `json:"engagement"`
	Growth     float64 `json:"growth"`
	Sentiment  float64 `json:"sentiment"`
	Diversity  float64 `json:"diversity"`
}

// ScoreResult is the final composite output for one content item.
type ScoreResult struct {
	ContentID  string          `json:"content_id"`
	TrendID    string          `json:"trend_id"`
	Platform   Platform        `json:"platform"`
	Category   string          `json:"category"`
	WaveScore  float64         `json:"wave_score"`
	Confidence float64         `json:"confidence"`
	Components ScoreComponents `json:"components"`
	ViralBoost float64         `json:"viral_boost"`
	ComputedAt time.Time       `json:"computed_at"`
}
