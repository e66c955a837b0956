package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/wavewatch/wavewatch/pkg/event"
)

// RawListOpts controls raw event listing.
type RawListOpts struct {
	Platform event.Platform
	Since    time.Time
	Until    time.Time
	Limit    int
}

// BinListOpts controls time bin listing.
type BinListOpts struct {
	From     time.Time
	To       time.Time
	Platform event.Platform
	Category string
	Limit    int
}

// ScoreListOpts controls score listing.
type ScoreListOpts struct {
	Limit    int
	Category string
	MinScore float64
}

// Store is the persistence boundary of the pipeline: durable storage of raw
// events, normalized bins, and scores, plus the query surface consumed by
// the HTTP API.
type Store interface {
	AppendRaw(ctx context.Context, events []event.RawEvent) error
	ListRaw(ctx context.Context, opts RawListOpts) ([]event.RawEvent, error)

	UpsertBins(ctx context.Context, bins []event.TimeBin) error
	GetBins(ctx context.Context, opts BinListOpts) ([]event.TimeBin, error)

	UpsertScores(ctx context.Context, scores []event.ScoreResult) error
	GetScores(ctx context.Context, opts ScoreListOpts) ([]event.ScoreResult, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rawEventRow struct {
	ID          string    `db:"id"`
	Platform    string    `db:"platform"`
	ContentID   string    `db:"content_id"`
	Category    string    `db:"category"`
	Title       string    `db:"title"`
	Text        string    `db:"text"`
	ObservedAt  time.Time `db:"observed_at"`
	PublishedAt time.Time `db:"published_at"`
	Metrics     string    `db:"metrics"`
	Metadata    string    `db:"metadata"`
}

func (s *SQLiteStore) AppendRaw(ctx context.Context, events []event.RawEvent) error {
	for i := range events {
		if err := s.appendOne(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) appendOne(ctx context.Context, e *event.RawEvent) error {
	metricsJSON, err := event.MarshalMetrics(e.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics %s: %w", e.ID, err)
	}
	metadataJSON, _ := json.Marshal(e.Metadata)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO raw_events (id, platform, content_id, category, title, text, observed_at, published_at, metrics, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.Platform, e.ContentID, e.Category, e.Title, e.Text,
		e.ObservedAt, e.PublishedAt, string(metricsJSON), string(metadataJSON))
	if err != nil {
		return fmt.Errorf("append raw event %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRaw(ctx context.Context, opts RawListOpts) ([]event.RawEvent, error) {
	query := "SELECT * FROM raw_events WHERE 1=1"
	var args []any

	if opts.Platform != "" {
		query += " AND platform = ?"
		args = append(args, opts.Platform)
	}
	if !opts.Since.IsZero() {
		query += " AND observed_at >= ?"
		args = append(args, opts.Since)
	}
	if !opts.Until.IsZero() {
		query += " AND observed_at < ?"
		args = append(args, opts.Until)
	}

	query += " ORDER BY observed_at"

	// Zero means no cap: the processing pass reads a whole trailing window.
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []rawEventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list raw events: %w", err)
	}

	events := make([]event.RawEvent, 0, len(rows))
	for _, r := range rows {
		metrics, err := event.UnmarshalMetrics(event.Platform(r.Platform), []byte(r.Metrics))
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", r.ID, err)
		}
		var metadata map[string]any
		json.Unmarshal([]byte(r.Metadata), &metadata)

		events = append(events, event.RawEvent{
			ID:          r.ID,
			Platform:    event.Platform(r.Platform),
			ContentID:   r.ContentID,
			Category:    r.Category,
			Title:       r.Title,
			Text:        r.Text,
			ObservedAt:  r.ObservedAt,
			PublishedAt: r.PublishedAt,
			Metrics:     metrics,
			Metadata:    metadata,
		})
	}
	return events, nil
}

func (s *SQLiteStore) UpsertBins(ctx context.Context, bins []event.TimeBin) error {
	for i := range bins {
		b := &bins[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO time_bins (bin_start, platform, category, bin_duration_ms, member_count,
				avg_normalized_score, max_normalized_score, total_reach, avg_engagement, momentum, volatility)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(bin_start, platform, category) DO UPDATE SET
				bin_duration_ms = excluded.bin_duration_ms,
				member_count = excluded.member_count,
				avg_normalized_score = excluded.avg_normalized_score,
				max_normalized_score = excluded.max_normalized_score,
				total_reach = excluded.total_reach,
				avg_engagement = excluded.avg_engagement,
				momentum = excluded.momentum,
				volatility = excluded.volatility
		`, b.BinStart, b.Platform, b.Category, b.BinDuration.Milliseconds(), b.MemberCount,
			b.AvgNormalizedScore, b.MaxNormalizedScore, b.TotalReach, b.AvgEngagement,
			b.Momentum, b.Volatility)
		if err != nil {
			return fmt.Errorf("upsert bin %s/%s/%s: %w", b.Platform, b.Category, b.BinStart, err)
		}
	}
	return nil
}

type binRow struct {
	BinStart           time.Time `db:"bin_start"`
	Platform           string    `db:"platform"`
	Category           string    `db:"category"`
	BinDurationMS      int64     `db:"bin_duration_ms"`
	MemberCount        int       `db:"member_count"`
	AvgNormalizedScore float64   `db:"avg_normalized_score"`
	MaxNormalizedScore float64   `db:"max_normalized_score"`
	TotalReach         float64   `db:"total_reach"`
	AvgEngagement      float64   `db:"avg_engagement"`
	Momentum           float64   `db:"momentum"`
	Volatility         float64   `db:"volatility"`
}

func (s *SQLiteStore) GetBins(ctx context.Context, opts BinListOpts) ([]event.TimeBin, error) {
	query := "SELECT * FROM time_bins WHERE 1=1"
	var args []any

	if !opts.From.IsZero() {
		query += " AND bin_start >= ?"
		args = append(args, opts.From)
	}
	if !opts.To.IsZero() {
		query += " AND bin_start < ?"
		args = append(args, opts.To)
	}
	if opts.Platform != "" {
		query += " AND platform = ?"
		args = append(args, opts.Platform)
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}

	query += " ORDER BY bin_start"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []binRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}

	bins := make([]event.TimeBin, 0, len(rows))
	for _, r := range rows {
		bins = append(bins, event.TimeBin{
			BinStart:           r.BinStart,
			Platform:           event.Platform(r.Platform),
			Category:           r.Category,
			BinDuration:        time.Duration(r.BinDurationMS) * time.Millisecond,
			MemberCount:        r.MemberCount,
			AvgNormalizedScore: r.AvgNormalizedScore,
			MaxNormalizedScore: r.MaxNormalizedScore,
			TotalReach:         r.TotalReach,
			AvgEngagement:      r.AvgEngagement,
			Momentum:           r.Momentum,
			Volatility:         r.Volatility,
		})
	}
	return bins, nil
}

// UpsertScores writes score results, latest-wins per trend.
func (s *SQLiteStore) UpsertScores(ctx context.Context, scores []event.ScoreResult) error {
	for i := range scores {
		r := &scores[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO wave_scores (trend_id, content_id, platform, category, wave_score, confidence,
				engagement, growth, sentiment, diversity, viral_boost, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(trend_id) DO UPDATE SET
				wave_score = excluded.wave_score,
				confidence = excluded.confidence,
				engagement = excluded.engagement,
				growth = excluded.growth,
				sentiment = excluded.sentiment,
				diversity = excluded.diversity,
				viral_boost = excluded.viral_boost,
				computed_at = excluded.computed_at
		`, r.TrendID, r.ContentID, r.Platform, r.Category, r.WaveScore, r.Confidence,
			r.Components.Engagement, r.Components.Growth, r.Components.Sentiment,
			r.Components.Diversity, r.ViralBoost, r.ComputedAt)
		if err != nil {
			return fmt.Errorf("upsert score %s: %w", r.TrendID, err)
		}
	}
	return nil
}

type scoreRow struct {
	TrendID    string    `db:"trend_id"`
	ContentID  string    `db:"content_id"`
	Platform   string    `db:"platform"`
	Category   string    `db:"category"`
	WaveScore  float64   `db:"wave_score"`
	Confidence float64   `db:"confidence"`
	Engagement float64   `db:"engagement"`
	Growth     float64   `db:"growth"`
	Sentiment  float64   `db:"sentiment"`
	Diversity  float64   `db:"diversity"`
	ViralBoost float64   `db:"viral_boost"`
	ComputedAt time.Time `db:"computed_at"`
}

func (s *SQLiteStore) GetScores(ctx context.Context, opts ScoreListOpts) ([]event.ScoreResult, error) {
	query := "SELECT * FROM wave_scores WHERE 1=1"
	var args []any

	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.MinScore > 0 {
		query += " AND wave_score >= ?"
		args = append(args, opts.MinScore)
	}

	query += " ORDER BY wave_score DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []scoreRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	scores := make([]event.ScoreResult, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, event.ScoreResult{
			TrendID:    r.TrendID,
			ContentID:  r.ContentID,
			Platform:   event.Platform(r.Platform),
			Category:   r.Category,
			WaveScore:  r.WaveScore,
			Confidence: r.Confidence,
			Components: event.ScoreComponents{
				Engagement: r.Engagement,
				Growth:     r.Growth,
				Sentiment:  r.Sentiment,
				Diversity:  r.Diversity,
			},
			ViralBoost: r.ViralBoost,
			ComputedAt: r.ComputedAt,
		})
	}
	return scores, nil
}
