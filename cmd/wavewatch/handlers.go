package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavewatch/wavewatch/internal/config"
	"github.com/wavewatch/wavewatch/internal/pipeline"
	"github.com/wavewatch/wavewatch/internal/queue"
	"github.com/wavewatch/wavewatch/internal/scheduler"
	"github.com/wavewatch/wavewatch/internal/store"
	"github.com/wavewatch/wavewatch/pkg/alert"
	"github.com/wavewatch/wavewatch/pkg/normalize"
	"github.com/wavewatch/wavewatch/pkg/score"
	"github.com/wavewatch/wavewatch/pkg/server"
	"github.com/wavewatch/wavewatch/pkg/source"
)

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildConnectors registers only the connectors whose configuration is
// usable. Missing credentials disable that connector and nothing else.
func buildConnectors(cfg *config.Config, log zerolog.Logger) []source.Connector {
	var connectors []source.Connector

	if cfg.Sources.Video.Enabled {
		if cfg.Sources.Video.APIKey == "" {
			log.Warn().Msg("video source enabled but api_key missing, skipping")
		} else {
			connectors = append(connectors, source.NewVideo(cfg.Sources.Video.APIKey, cfg.Sources.Video.Queries))
		}
	}
	if cfg.Sources.Link.Enabled {
		if cfg.Sources.Link.ClientID == "" || cfg.Sources.Link.ClientSecret == "" {
			log.Warn().Msg("link source enabled but credentials missing, skipping")
		} else {
			connectors = append(connectors, source.NewLink(
				cfg.Sources.Link.ClientID,
				cfg.Sources.Link.ClientSecret,
				cfg.Sources.Link.Communities,
			))
		}
	}
	if cfg.Sources.ShortForm.Enabled {
		if cfg.Sources.ShortForm.BaseURL == "" {
			log.Warn().Msg("shortform source enabled but base_url missing, skipping")
		} else {
			connectors = append(connectors, source.NewShortForm(
				cfg.Sources.ShortForm.BaseURL,
				cfg.Sources.ShortForm.APIKey,
				cfg.Sources.ShortForm.Tags,
			))
		}
	}
	if cfg.Sources.News.Enabled && len(cfg.Sources.News.Feeds) > 0 {
		connectors = append(connectors, source.NewNews(cfg.Sources.News.Feeds))
	}

	return connectors
}

func buildPipeline(cfg *config.Config, st store.Store, connectors []source.Connector, log zerolog.Logger) *pipeline.Pipeline {
	engine := normalize.NewEngine(cfg.Pipeline.WindowDuration(), cfg.Pipeline.ParseBinDuration(), log)
	generator := score.NewGenerator(cfg.Scoring, nil, log)
	pipe := pipeline.New(cfg.Pipeline, queue.New(), st, engine, generator, log)

	for _, conn := range connectors {
		pipe.RegisterSource(conn.Name(), quotaLimit(cfg, conn.Name()), time.Hour)
	}

	if cfg.Alerts.Enabled {
		mgr := alert.NewManager(buildNotifiers(cfg.Alerts), cfg.Alerts.Threshold, cfg.Alerts.ParseCooldown())
		if mgr.HasNotifiers() {
			pipe.SetAlertManager(mgr)
		} else {
			log.Warn().Msg("alerts enabled but no webhook configured")
		}
	}
	return pipe
}

func buildNotifiers(cfg config.AlertsConfig) []alert.Notifier {
	var notifiers []alert.Notifier
	if cfg.SlackWebhook != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.SlackWebhook))
	}
	if cfg.DiscordWebhook != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.DiscordWebhook))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret))
	}
	return notifiers
}

func quotaLimit(cfg *config.Config, name string) int {
	switch name {
	case "video":
		return cfg.Sources.Video.QuotaLimit
	case "link":
		return cfg.Sources.Link.QuotaLimit
	case "shortform":
		return cfg.Sources.ShortForm.QuotaLimit
	case "news":
		return cfg.Sources.News.QuotaLimit
	}
	return 0
}

func sourceInterval(cfg *config.Config, name string) time.Duration {
	switch name {
	case "video":
		return config.ParseInterval(cfg.Sources.Video.Interval, 15*time.Minute)
	case "link":
		return config.ParseInterval(cfg.Sources.Link.Interval, 10*time.Minute)
	case "shortform":
		return config.ParseInterval(cfg.Sources.ShortForm.Interval, 15*time.Minute)
	case "news":
		return config.ParseInterval(cfg.Sources.News.Interval, 15*time.Minute)
	}
	return 15 * time.Minute
}

func runIngest(filterSources []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	connectors := buildConnectors(cfg, log)
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		var filtered []source.Connector
		for _, c := range connectors {
			if wanted[c.Name()] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
		connectors = filtered
	}
	if len(connectors) == 0 {
		return fmt.Errorf("no usable source connectors configured")
	}

	pipe := buildPipeline(cfg, st, connectors, log)
	ctx := context.Background()

	for _, conn := range connectors {
		if err := pipe.Ingest(ctx, conn); err != nil {
			log.Warn().Err(err).Str("source", conn.Name()).Msg("ingest error")
		}
	}
	if err := pipe.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("flush error")
	}

	snap := pipe.Snapshot()
	log.Info().
		Int64("ingested", snap.EventsIngested).
		Int64("flushed", snap.EventsFlushed).
		Int64("fetch_errors", snap.FetchErrors).
		Msg("ingest complete")
	return nil
}

func runProcess() error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	pipe := buildPipeline(cfg, st, nil, log)
	return pipe.Process(context.Background())
}

func runScores(jsonOutput bool, minScore float64, category string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	scores, err := st.GetScores(context.Background(), store.ScoreListOpts{
		Limit:    limit,
		Category: category,
		MinScore: minScore,
	})
	if err != nil {
		return fmt.Errorf("list scores: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	}

	if len(scores) == 0 {
		fmt.Println("no scores found (try: wavewatch ingest && wavewatch process)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tCONF\tBOOST\tPLATFORM\tCATEGORY\tTREND\tCOMPUTED")
	for _, s := range scores {
		fmt.Fprintf(w, "%.1f\t%.2f\t%.1f\t%s\t%s\t%s\t%s\n",
			s.WaveScore, s.Confidence, s.ViralBoost, s.Platform, s.Category,
			s.TrendID, s.ComputedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runServe(port int) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	pipe := buildPipeline(cfg, st, nil, log)
	return server.New(st, pipe, port, log).ListenAndServe()
}

func runDaemon(port int) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	connectors := buildConnectors(cfg, log)
	if len(connectors) == 0 {
		return fmt.Errorf("no usable source connectors configured, pipeline cannot start")
	}

	pipe := buildPipeline(cfg, st, connectors, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(log)
	for _, conn := range connectors {
		conn := conn
		sched.Add(scheduler.Task{
			Name:     "ingest." + conn.Name(),
			Interval: sourceInterval(cfg, conn.Name()),
			Run: func(ctx context.Context) error {
				return pipe.Ingest(ctx, conn)
			},
		})
	}
	sched.Add(scheduler.Task{
		Name:     "drain",
		Interval: cfg.Pipeline.ParseDrainInterval(),
		Run:      pipe.Flush,
	})
	sched.Add(scheduler.Task{
		Name:     "process",
		Interval: cfg.Pipeline.ParseProcessInterval(),
		Run:      pipe.Process,
	})

	sched.Start(ctx)

	srv := server.New(st, pipe, port, log)
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		sched.Stop()

		// Best-effort final flush of the queue tail, bounded.
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
		pipe.Shutdown(flushCtx)
		flushCancel()

		srvCtx, srvCancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(srvCtx)
		srvCancel()
	}()

	return srv.ListenAndServe()
}
