package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 24*time.Hour, cfg.Pipeline.WindowDuration())
	assert.Equal(t, time.Hour, cfg.Pipeline.ParseBinDuration())
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.ParseDrainInterval())
	assert.Equal(t, 1000, cfg.Pipeline.DrainBatchSize)
	assert.Equal(t, 8080, cfg.Server.Port)

	// Only feeds need no credentials, so only news starts enabled.
	assert.True(t, cfg.Sources.News.Enabled)
	assert.False(t, cfg.Sources.Video.Enabled)

	weights := cfg.Scoring.Weights
	assert.InDelta(t, 1.0, weights.Engagement+weights.Growth+weights.Sentiment+weights.Diversity, 1e-9)
}

func TestWindowDuration(t *testing.T) {
	assert.Equal(t, 24*time.Hour, PipelineConfig{Window: "short"}.WindowDuration())
	assert.Equal(t, 48*time.Hour, PipelineConfig{Window: "medium"}.WindowDuration())
	assert.Equal(t, 7*24*time.Hour, PipelineConfig{Window: "long"}.WindowDuration())
	assert.Equal(t, 24*time.Hour, PipelineConfig{Window: "bogus"}.WindowDuration())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  path: /tmp/waves.db
pipeline:
  window: long
  bin_duration: 30m
sources:
  video:
    enabled: true
    api_key: test-key
    queries:
      - query: synthwave
        category: music
scoring:
  platforms:
    video:
      viral_threshold: 500000
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/waves.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Pipeline.WindowDuration())
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.ParseBinDuration())
	assert.True(t, cfg.Sources.Video.Enabled)
	assert.Equal(t, "test-key", cfg.Sources.Video.APIKey)
	require.Len(t, cfg.Sources.Video.Queries, 1)
	assert.Equal(t, "music", cfg.Sources.Video.Queries[0].Category)
	assert.Equal(t, 500000.0, cfg.Scoring.Platforms["video"].ViralThreshold)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WAVEWATCH_DB_PATH", "/tmp/override.db")
	t.Setenv("YOUTUBE_API_KEY", "env-key")
	t.Setenv("REDDIT_CLIENT_ID", "cid")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "env-key", cfg.Sources.Video.APIKey)
	assert.True(t, cfg.Sources.Video.Enabled)
	assert.True(t, cfg.Sources.Link.Enabled)
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 10*time.Minute, ParseInterval("10m", time.Hour))
	assert.Equal(t, time.Hour, ParseInterval("", time.Hour))
	assert.Equal(t, time.Hour, ParseInterval("not-a-duration", time.Hour))
	assert.Equal(t, time.Hour, ParseInterval("-5m", time.Hour))
}
