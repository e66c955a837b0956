package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/internal/metrics"
	"github.com/wavewatch/wavewatch/internal/queue"
	"github.com/wavewatch/wavewatch/internal/store"
	"github.com/wavewatch/wavewatch/pkg/alert"
	"github.com/wavewatch/wavewatch/pkg/normalize"
	"github.com/wavewatch/wavewatch/pkg/score"
	"github.com/wavewatch/wavewatch/pkg/source"
)

// Stats is the queryable health snapshot of the pipeline. No error is
// dropped without being counted here.
type Stats struct {
	TotalProcessed   int64            `json:"total_processed"`
	EventsIngested   int64            `json:"events_ingested"`
	EventsFlushed    int64            `json:"events_flushed"`
	FetchErrors      int64            `json:"fetch_errors"`
	SinkErrors       int64            `json:"sink_errors"`
	ComputeFallbacks int64            `json:"compute_fallbacks"`
	ThrottledRuns    int64            `json:"throttled_runs"`
	AlertsSent       int64            `json:"alerts_sent"`
	LastRun          time.Time        `json:"last_run"`
	QueueSize        int              `json:"queue_size"`
	QuotaRemaining   map[string]int64 `json:"quota_remaining"`
}

// quota is the best-effort usage counter for one source. Fetched items
// stand in for API cost; usage is assumed to reset once the window rolls
// over.
type quota struct {
	limit    int64
	used     int64
	window   time.Duration
	windowAt time.Time
}

func (q *quota) tick(now time.Time) {
	if now.Sub(q.windowAt) >= q.window {
		q.used = 0
		q.windowAt = now
	}
}

func (q *quota) exhausted() bool {
	return q.limit > 0 && float64(q.used) >= 0.8*float64(q.limit)
}

func (q *quota) remaining() int64 {
	if q.limit <= 0 {
		return -1
	}
	r := q.limit - q.used
	if r < 0 {
		r = 0
	}
	return r
}

// sourceState is the per-connector ingestion state: cursor plus quota.
type sourceState struct {
	cursor time.Time
	quota  quota
}

// Pipeline owns the ingest, flush, and process task bodies the scheduler
// runs, together with the mutable state they share.
type Pipeline struct {
	cfg       config.PipelineConfig
	queue     *queue.Queue
	store     store.Store
	engine    *normalize.Engine
	generator *score.Generator
	alerts    *alert.Manager
	log       zerolog.Logger

	mu      sync.Mutex
	stats   Stats
	sources map[string]*sourceState

	// now is swappable so tests can drive time deterministically.
	now func() time.Time
}

// New creates a pipeline around the queue, sink, and compute stages.
func New(cfg config.PipelineConfig, q *queue.Queue, st store.Store, engine *normalize.Engine, gen *score.Generator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		queue:     q,
		store:     st,
		engine:    engine,
		generator: gen,
		log:       log.With().Str("component", "pipeline").Logger(),
		sources:   make(map[string]*sourceState),
		now:       time.Now,
	}
}

// SetAlertManager enables wave score notifications after a process pass.
func (p *Pipeline) SetAlertManager(m *alert.Manager) { p.alerts = m }

// SetNow overrides the pipeline clock. Tests only.
func (p *Pipeline) SetNow(now func() time.Time) { p.now = now }

// RegisterSource sets up quota accounting for a connector. quotaWindow <= 0
// defaults to one hour.
func (p *Pipeline) RegisterSource(name string, quotaLimit int, quotaWindow time.Duration) {
	if quotaWindow <= 0 {
		quotaWindow = time.Hour
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[name] = &sourceState{
		quota: quota{limit: int64(quotaLimit), window: quotaWindow, windowAt: p.now()},
	}
}

// Ingest runs one pull for a connector: quota check, fetch since the
// cursor, validate, enqueue. A connector error is counted, partial results
// are still kept, and the task reschedules normally.
func (p *Pipeline) Ingest(ctx context.Context, conn source.Connector) error {
	now := p.now()

	p.mu.Lock()
	state := p.sources[conn.Name()]
	if state == nil {
		state = &sourceState{quota: quota{window: time.Hour, windowAt: now}}
		p.sources[conn.Name()] = state
	}
	state.quota.tick(now)
	if state.quota.exhausted() {
		p.stats.ThrottledRuns++
		p.mu.Unlock()
		metrics.ThrottledRuns.WithLabelValues(conn.Name()).Inc()
		p.log.Info().Str("source", conn.Name()).Msg("quota exhausted, skipping run")
		return nil
	}
	since := state.cursor
	p.mu.Unlock()

	if since.IsZero() {
		since = now.Add(-p.engine.Window())
	}

	events, fetchErr := conn.Fetch(ctx, source.FetchParams{Since: since})

	valid := events[:0:0]
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			p.log.Debug().Str("source", conn.Name()).Err(err).Msg("rejected event")
			continue
		}
		valid = append(valid, ev)
	}
	p.queue.Enqueue(valid)
	metrics.EventsIngested.WithLabelValues(conn.Name()).Add(float64(len(valid)))
	metrics.QueueDepth.Set(float64(p.queue.Len()))

	p.mu.Lock()
	state.quota.used += int64(len(events))
	state.cursor = now
	p.stats.EventsIngested += int64(len(valid))
	if fetchErr != nil {
		p.stats.FetchErrors++
	}
	p.mu.Unlock()

	if fetchErr != nil {
		metrics.FetchErrors.WithLabelValues(conn.Name()).Inc()
		return fmt.Errorf("fetch %s: %w", conn.Name(), fetchErr)
	}

	p.log.Debug().Str("source", conn.Name()).Int("events", len(valid)).Msg("ingested")
	return nil
}

// Flush drains the queue and persists it in fixed-size sub-batches with a
// small pause between them. A failing sub-batch is counted and the rest
// still attempt to flush.
func (p *Pipeline) Flush(ctx context.Context) error {
	batch := p.queue.DrainBatch(p.cfg.DrainBatchSize)
	metrics.QueueDepth.Set(float64(p.queue.Len()))
	if len(batch) == 0 {
		return nil
	}

	subSize := p.cfg.SubBatchSize
	if subSize <= 0 {
		subSize = 100
	}
	delay := p.cfg.ParseSubBatchDelay()

	var sinkErrs int64
	var flushed int64
	var ctxErr error
	for start := 0; start < len(batch) && ctxErr == nil; start += subSize {
		end := start + subSize
		if end > len(batch) {
			end = len(batch)
		}

		if err := p.store.AppendRaw(ctx, batch[start:end]); err != nil {
			sinkErrs++
			metrics.SinkErrors.Inc()
			p.log.Warn().Err(err).Int("size", end-start).Msg("sub-batch flush failed")
		} else {
			flushed += int64(end - start)
		}

		if end < len(batch) && delay > 0 {
			select {
			case <-ctx.Done():
				// Put the unpersisted tail back so the shutdown
				// flush still sees it.
				p.queue.Enqueue(batch[end:])
				metrics.QueueDepth.Set(float64(p.queue.Len()))
				ctxErr = ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	metrics.EventsFlushed.Add(float64(flushed))

	p.mu.Lock()
	p.stats.EventsFlushed += flushed
	p.stats.SinkErrors += sinkErrs
	p.mu.Unlock()

	p.log.Debug().Int64("flushed", flushed).Int64("failed_batches", sinkErrs).Msg("queue drained")
	if ctxErr != nil {
		return ctxErr
	}
	if sinkErrs > 0 {
		return fmt.Errorf("flush: %d sub-batches failed", sinkErrs)
	}
	return nil
}

// Process runs one normalize/bin/score pass over the trailing window and
// persists the results.
func (p *Pipeline) Process(ctx context.Context) error {
	now := p.now()
	runID := uuid.NewString()[:8]
	log := p.log.With().Str("run_id", runID).Logger()

	raw, err := p.store.ListRaw(ctx, store.RawListOpts{Since: now.Add(-p.engine.Window())})
	if err != nil {
		p.countSinkError()
		return fmt.Errorf("load raw window: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	bins, groups := p.engine.Process(raw, now)
	if len(bins) == 0 {
		return nil
	}

	results, fallbacks := p.generator.ScoreBins(ctx, bins, groups, now)
	metrics.BinsEmitted.Add(float64(len(bins)))
	metrics.ScoresComputed.Add(float64(len(results)))
	metrics.ComputeFallbacks.Add(float64(fallbacks))

	var sinkErrs int64
	if err := p.store.UpsertBins(ctx, bins); err != nil {
		sinkErrs++
		metrics.SinkErrors.Inc()
		log.Warn().Err(err).Msg("bin upsert failed")
	}
	if err := p.store.UpsertScores(ctx, results); err != nil {
		sinkErrs++
		metrics.SinkErrors.Inc()
		log.Warn().Err(err).Msg("score upsert failed")
	}

	var alerted int
	if p.alerts != nil {
		titles := make(map[string]string, len(raw))
		for _, ev := range raw {
			titles[ev.TrendID()] = ev.Title
		}
		var alertErr error
		alerted, alertErr = p.alerts.NotifyScores(ctx, results, titles, now)
		if alertErr != nil {
			log.Warn().Err(alertErr).Msg("alert delivery incomplete")
		}
		metrics.AlertsSent.Add(float64(alerted))
	}

	p.mu.Lock()
	p.stats.TotalProcessed += int64(len(raw))
	p.stats.ComputeFallbacks += int64(fallbacks)
	p.stats.SinkErrors += sinkErrs
	p.stats.AlertsSent += int64(alerted)
	p.stats.LastRun = now
	p.mu.Unlock()

	log.Info().
		Int("events", len(raw)).
		Int("bins", len(bins)).
		Int("scores", len(results)).
		Int("fallbacks", fallbacks).
		Msg("pipeline pass complete")

	if sinkErrs > 0 {
		return fmt.Errorf("process: %d sink writes failed", sinkErrs)
	}
	return nil
}

// Shutdown makes one best-effort final flush of the queue tail.
func (p *Pipeline) Shutdown(ctx context.Context) {
	if p.queue.Len() == 0 {
		return
	}
	p.log.Info().Int("queued", p.queue.Len()).Msg("final flush")
	if err := p.Flush(ctx); err != nil {
		p.log.Warn().Err(err).Msg("final flush incomplete")
	}
}

// Snapshot returns a copy of current pipeline statistics.
func (p *Pipeline) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.QueueSize = p.queue.Len()
	s.QuotaRemaining = make(map[string]int64, len(p.sources))
	for name, state := range p.sources {
		s.QuotaRemaining[name] = state.quota.remaining()
	}
	return s
}

func (p *Pipeline) countSinkError() {
	metrics.SinkErrors.Inc()
	p.mu.Lock()
	p.stats.SinkErrors++
	p.mu.Unlock()
}
