package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/internal/pipeline"
	"github.com/wavewatch/wavewatch/internal/queue"
	"github.com/wavewatch/wavewatch/internal/store"
	"github.com/wavewatch/wavewatch/pkg/event"
	"github.com/wavewatch/wavewatch/pkg/normalize"
	"github.com/wavewatch/wavewatch/pkg/score"
)

type stubStore struct {
	bins   []event.TimeBin
	scores []event.ScoreResult
}

func (s *stubStore) AppendRaw(context.Context, []event.RawEvent) error { return nil }
func (s *stubStore) ListRaw(context.Context, store.RawListOpts) ([]event.RawEvent, error) {
	return nil, nil
}
func (s *stubStore) UpsertBins(context.Context, []event.TimeBin) error { return nil }
func (s *stubStore) GetBins(_ context.Context, opts store.BinListOpts) ([]event.TimeBin, error) {
	var out []event.TimeBin
	for _, b := range s.bins {
		if opts.Platform != "" && b.Platform != opts.Platform {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
func (s *stubStore) UpsertScores(context.Context, []event.ScoreResult) error { return nil }
func (s *stubStore) GetScores(context.Context, store.ScoreListOpts) ([]event.ScoreResult, error) {
	return s.scores, nil
}
func (s *stubStore) Close() error { return nil }

func testServer(st store.Store) *Server {
	log := zerolog.Nop()
	cfg := config.Default()
	pipe := pipeline.New(cfg.Pipeline, queue.New(), st,
		normalize.NewEngine(24*time.Hour, time.Hour, log),
		score.NewGenerator(cfg.Scoring, nil, log),
		log)
	return New(st, pipe, 8080, log)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScoresEndpoint(t *testing.T) {
	st := &stubStore{scores: []event.ScoreResult{
		{TrendID: "video:v1", Platform: event.PlatformVideo, WaveScore: 87.5, Confidence: 0.88},
	}}
	srv := testServer(st)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scores?min_score=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []event.ScoreResult `json:"data"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "video:v1", body.Data[0].TrendID)
}

func TestBinsEndpointFilters(t *testing.T) {
	st := &stubStore{bins: []event.TimeBin{
		{Platform: event.PlatformVideo, Category: "tech", MemberCount: 3},
		{Platform: event.PlatformLink, Category: "tech", MemberCount: 1},
	}}
	srv := testServer(st)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bins?platform=video", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestBinsEndpointBadTimestamp(t *testing.T) {
	srv := testServer(&stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bins?from=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(&stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats pipeline.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.EventsIngested)
}

func TestProcessEndpointMethod(t *testing.T) {
	srv := testServer(&stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/process", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
