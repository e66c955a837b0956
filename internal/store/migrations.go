package store

const schema = `
CREATE TABLE IF NOT EXISTS raw_events (
    id           TEXT PRIMARY KEY,
    platform     TEXT NOT NULL,
    content_id   TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    text         TEXT NOT NULL DEFAULT '',
    observed_at  DATETIME NOT NULL,
    published_at DATETIME NOT NULL,
    metrics      TEXT NOT NULL DEFAULT '{}',
    metadata     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_raw_events_observed ON raw_events(observed_at);
CREATE INDEX IF NOT EXISTS idx_raw_events_platform ON raw_events(platform, category);

CREATE TABLE IF NOT EXISTS time_bins (
    bin_start            DATETIME NOT NULL,
    platform             TEXT NOT NULL,
    category             TEXT NOT NULL,
    bin_duration_ms      INTEGER NOT NULL,
    member_count         INTEGER NOT NULL DEFAULT 0,
    avg_normalized_score REAL NOT NULL DEFAULT 0,
    max_normalized_score REAL NOT NULL DEFAULT 0,
    total_reach          REAL NOT NULL DEFAULT 0,
    avg_engagement       REAL NOT NULL DEFAULT 0,
    momentum             REAL NOT NULL DEFAULT 0,
    volatility           REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (bin_start, platform, category)
);

CREATE INDEX IF NOT EXISTS idx_time_bins_start ON time_bins(bin_start);

CREATE TABLE IF NOT EXISTS wave_scores (
    trend_id    TEXT PRIMARY KEY,
    content_id  TEXT NOT NULL,
    platform    TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    wave_score  REAL NOT NULL,
    confidence  REAL NOT NULL,
    engagement  REAL NOT NULL DEFAULT 0,
    growth      REAL NOT NULL DEFAULT 0,
    sentiment   REAL NOT NULL DEFAULT 0,
    diversity   REAL NOT NULL DEFAULT 0,
    viral_boost REAL NOT NULL DEFAULT 0,
    computed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wave_scores_score ON wave_scores(wave_score);
CREATE INDEX IF NOT EXISTS idx_wave_scores_category ON wave_scores(category);
`
