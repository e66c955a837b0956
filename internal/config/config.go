package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  SourcesConfig  `yaml:"sources"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig configures the normalize/bin/score pass and queue draining.
type PipelineConfig struct {
	// Window selects the rolling statistics window: short (24h), medium
	// (48h), or long (7d).
	Window          string `yaml:"window"`
	BinDuration     string `yaml:"bin_duration"`
	DrainInterval   string `yaml:"drain_interval"`
	ProcessInterval string `yaml:"process_interval"`
	DrainBatchSize  int    `yaml:"drain_batch_size"`
	SubBatchSize    int    `yaml:"sub_batch_size"`
	SubBatchDelay   string `yaml:"sub_batch_delay"`
}

// WindowDuration resolves the named rolling window.
func (p PipelineConfig) WindowDuration() time.Duration {
	switch p.Window {
	case "medium":
		return 48 * time.Hour
	case "long":
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParseBinDuration returns the bin duration, defaulting to one hour.
func (p PipelineConfig) ParseBinDuration() time.Duration {
	return parseDuration(p.BinDuration, time.Hour)
}

// ParseDrainInterval returns the queue drain interval.
func (p PipelineConfig) ParseDrainInterval() time.Duration {
	return parseDuration(p.DrainInterval, 5*time.Minute)
}

// ParseProcessInterval returns the normalization pass interval.
func (p PipelineConfig) ParseProcessInterval() time.Duration {
	return parseDuration(p.ProcessInterval, 30*time.Minute)
}

// ParseSubBatchDelay returns the pause between persisted sub-batches.
func (p PipelineConfig) ParseSubBatchDelay() time.Duration {
	return parseDuration(p.SubBatchDelay, 200*time.Millisecond)
}

// SourcesConfig holds configuration for all source connectors.
type SourcesConfig struct {
	Video     VideoSourceConfig     `yaml:"video"`
	Link      LinkSourceConfig      `yaml:"link"`
	ShortForm ShortFormSourceConfig `yaml:"shortform"`
	News      NewsSourceConfig      `yaml:"news"`
}

// SearchQuery pairs a platform search with the category its results belong to.
type SearchQuery struct {
	Query    string `yaml:"query"`
	Category string `yaml:"category"`
}

// VideoSourceConfig for the video platform connector.
type VideoSourceConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIKey     string        `yaml:"api_key"`
	Queries    []SearchQuery `yaml:"queries"`
	Interval   string        `yaml:"interval"`
	QuotaLimit int           `yaml:"quota_limit"`
}

// LinkSourceConfig for the link aggregator connector.
type LinkSourceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// Communities maps community name to category.
	Communities map[string]string `yaml:"communities"`
	Interval    string            `yaml:"interval"`
	QuotaLimit  int               `yaml:"quota_limit"`
}

// ShortFormSourceConfig for the short-form video connector.
type ShortFormSourceConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Tags       []SearchQuery `yaml:"tags"`
	Interval   string        `yaml:"interval"`
	QuotaLimit int           `yaml:"quota_limit"`
}

// NewsSourceConfig for the RSS/Atom news connector.
type NewsSourceConfig struct {
	Enabled    bool       `yaml:"enabled"`
	Feeds      []FeedItem `yaml:"feeds"`
	Interval   string     `yaml:"interval"`
	QuotaLimit int        `yaml:"quota_limit"`
}

// FeedItem is a single feed entry.
type FeedItem struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// ScoringConfig configures the wave score generator.
type ScoringConfig struct {
	Weights           ComponentWeights          `yaml:"weights"`
	Platforms         map[string]PlatformAdjust `yaml:"platforms"`
	CategoryDiversity map[string]float64        `yaml:"category_diversity"`
}

// ComponentWeights are the composite coefficients.
type ComponentWeights struct {
	Engagement float64 `yaml:"engagement"`
	Growth     float64 `yaml:"growth"`
	Sentiment  float64 `yaml:"sentiment"`
	Diversity  float64 `yaml:"diversity"`
}

// PlatformAdjust holds per-platform score adjustment factors.
type PlatformAdjust struct {
	EngagementBoost float64 `yaml:"engagement_boost"`
	SentimentWeight float64 `yaml:"sentiment_weight"`
	DiversityFactor float64 `yaml:"diversity_factor"`
	ViralThreshold  float64 `yaml:"viral_threshold"`
	Confidence      float64 `yaml:"confidence"`
}

// AlertsConfig configures wave score notifications.
type AlertsConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Threshold      float64 `yaml:"threshold"`
	Cooldown       string  `yaml:"cooldown"`
	SlackWebhook   string  `yaml:"slack_webhook"`
	DiscordWebhook string  `yaml:"discord_webhook"`
	WebhookURL     string  `yaml:"webhook_url"`
	WebhookSecret  string  `yaml:"webhook_secret"`
}

// ParseCooldown returns the re-alert cooldown per trend.
func (a AlertsConfig) ParseCooldown() time.Duration {
	return parseDuration(a.Cooldown, 6*time.Hour)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with production defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./wavewatch.db"},
		Pipeline: PipelineConfig{
			Window:          "short",
			BinDuration:     "1h",
			DrainInterval:   "5m",
			ProcessInterval: "30m",
			DrainBatchSize:  1000,
			SubBatchSize:    100,
			SubBatchDelay:   "200ms",
		},
		Sources: SourcesConfig{
			Video: VideoSourceConfig{
				Enabled: false,
				Queries: []SearchQuery{
					{Query: "technology", Category: "tech"},
					{Query: "music", Category: "music"},
					{Query: "gaming", Category: "gaming"},
				},
				Interval:   "15m",
				QuotaLimit: 10000,
			},
			Link: LinkSourceConfig{
				Enabled: false,
				Communities: map[string]string{
					"technology": "tech",
					"science":    "science",
					"gaming":     "gaming",
					"music":      "music",
				},
				Interval:   "10m",
				QuotaLimit: 600,
			},
			ShortForm: ShortFormSourceConfig{
				Enabled: false,
				Tags: []SearchQuery{
					{Query: "fyp", Category: "entertainment"},
					{Query: "tech", Category: "tech"},
				},
				Interval:   "15m",
				QuotaLimit: 1000,
			},
			News: NewsSourceConfig{
				Enabled: true,
				Feeds: []FeedItem{
					{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Category: "tech"},
					{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/technology-lab", Category: "tech"},
					{Name: "Science Daily", URL: "https://www.sciencedaily.com/rss/all.xml", Category: "science"},
				},
				Interval:   "15m",
				QuotaLimit: 1000,
			},
		},
		Scoring: ScoringConfig{
			Weights: ComponentWeights{
				Engagement: 0.35,
				Growth:     0.25,
				Sentiment:  0.25,
				Diversity:  0.15,
			},
			Platforms: map[string]PlatformAdjust{
				"video":     {EngagementBoost: 1.1, SentimentWeight: 1.0, DiversityFactor: 1.0, ViralThreshold: 1_000_000, Confidence: 1.0},
				"link":      {EngagementBoost: 1.0, SentimentWeight: 1.1, DiversityFactor: 0.9, ViralThreshold: 50_000, Confidence: 0.95},
				"shortform": {EngagementBoost: 1.2, SentimentWeight: 0.9, DiversityFactor: 1.1, ViralThreshold: 5_000_000, Confidence: 0.9},
				"news":      {EngagementBoost: 0.9, SentimentWeight: 1.0, DiversityFactor: 1.0, ViralThreshold: 100_000, Confidence: 0.85},
			},
			CategoryDiversity: map[string]float64{
				"programming":   0.8,
				"science":       0.9,
				"tech":          1.0,
				"gaming":        1.05,
				"music":         1.15,
				"comedy":        1.2,
				"entertainment": 1.2,
			},
		},
		Alerts: AlertsConfig{
			Enabled:   false,
			Threshold: 80,
			Cooldown:  "6h",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAVEWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.Video.APIKey = v
		cfg.Sources.Video.Enabled = true
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Link.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Link.ClientSecret = v
	}
	if cfg.Sources.Link.ClientID != "" && cfg.Sources.Link.ClientSecret != "" {
		cfg.Sources.Link.Enabled = true
	}
	if v := os.Getenv("SHORTFORM_API_URL"); v != "" {
		cfg.Sources.ShortForm.BaseURL = v
		cfg.Sources.ShortForm.Enabled = true
	}
	if v := os.Getenv("SHORTFORM_API_KEY"); v != "" {
		cfg.Sources.ShortForm.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.SlackWebhook = v
		cfg.Alerts.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.DiscordWebhook = v
		cfg.Alerts.Enabled = true
	}
}

// ParseInterval returns an interval string as a duration with a fallback.
func ParseInterval(s string, fallback time.Duration) time.Duration {
	return parseDuration(s, fallback)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
