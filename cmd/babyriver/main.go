package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"babyriver/internal/capture"
	"babyriver/internal/config"
	"babyriver/internal/feed"
	appLog "babyriver/internal/log"
	"babyriver/internal/model"
	"babyriver/internal/timeline"
	"babyriver/internal/web"
)

type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	snapshot     bool
	snapshotPath string
	debug        bool
	env          string
}

func main() {
	flags := parseFlags()

	appLog.Configure(flags.env)
	defer appLog.Sync()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("babyriver starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"source_count", len(conf.Sources),
		"schedule_count", len(conf.Schedules),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := conf.Location()
	tl := timeline.New(timeline.Config{
		Geometry: conf.Geometry(),
		Window:   conf.WindowPolicy(),
	}, timeline.Callbacks{
		OnEventClick: func(ev model.Event) {
			appLog.Debug("event selected", "event_id", ev.ID, "type", string(ev.Type))
		},
	})
	defer tl.Close()
	tl.Start(time.Now().In(loc))

	fetcher := feed.NewFetcher(conf.CacheDir)
	refresh := refreshFunc(conf, fetcher, tl, loc)

	if err := refresh(ctx); err != nil {
		// A cold start with an unreachable tracker still serves the empty
		// timeline; the cron loop retries.
		appLog.Error("initial refresh failed", err)
	}

	if flags.once {
		runOnce(ctx, conf, tl, flags)
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	server := web.NewServer(conf, tl, refresh, flags.snapshotPath)
	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	appLog.Info("babyriver exiting")
}

// runOnce performs a single fetch/render cycle, optionally capturing a PNG
// of the served page, then exits. Useful for cron-driven dashboards.
func runOnce(ctx context.Context, conf *config.Config, tl *timeline.Timeline, flags flagConfig) {
	tl.RebuildSampleNow()

	if !flags.snapshot {
		snap := tl.Snapshot()
		appLog.Info("single-shot render complete",
			"days", len(snap.Days),
			"placements", len(snap.Placements),
			"total_height", snap.TotalHeight,
		)
		return
	}

	// Capture needs a live page; serve on an ephemeral goroutine for the
	// duration of the shot.
	server := web.NewServer(conf, tl, nil, flags.snapshotPath)
	httpSrv := &http.Server{Addr: conf.Listen, Handler: server.Handler()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	url := fmt.Sprintf("http://%s/timeline", conf.Listen)
	if err := capture.TimelinePNG(ctx, capture.Options{
		URL:        url,
		OutputPath: flags.snapshotPath,
	}); err != nil {
		appLog.Error("snapshot capture failed", err, "url", url)
		os.Exit(1)
	}
	appLog.Info("snapshot written", "path", flags.snapshotPath)
}

// refreshFunc builds the pipeline that pulls every configured source,
// expands schedules over the current day window, and hands the merged
// event list to the engine.
func refreshFunc(conf *config.Config, fetcher *feed.Fetcher, tl *timeline.Timeline, loc *time.Location) web.RefreshFunc {
	return func(ctx context.Context) error {
		results, errs := fetcher.FetchAll(ctx, conf.FeedSources())

		batches := make([][]model.Event, 0, len(results)+1)

		// Schedules first so tracked events override planned occurrences.
		days := tl.Window().Days()
		if len(days) > 0 && len(conf.Schedules) > 0 {
			rangeStart := days[0].Date
			rangeEnd := days[len(days)-1].Date.AddDate(0, 0, 1).Add(-time.Second)
			scheduled, err := feed.ExpandSchedules(conf.Schedules, rangeStart, rangeEnd, loc)
			if err != nil {
				errs = append(errs, err)
			} else {
				batches = append(batches, scheduled)
			}
		}

		for _, res := range results {
			var events []model.Event
			var err error
			switch res.Source.Kind {
			case feed.KindICS:
				events, err = feed.ImportICS(res.Source, res.Body, loc)
			default:
				events, err = feed.DecodeJSON(res.Source, res.Body)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			batches = append(batches, events)
		}

		merged := feed.Merge(batches...)
		tl.SetEvents(merged)
		appLog.Info("refresh complete",
			"sources", len(results),
			"events", len(merged),
			"errors", len(errs),
		)

		if len(errs) > 0 {
			return errorsAggregate(errs)
		}
		return nil
	}
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/babyriver/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+render cycle and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "With -once, capture a PNG of the timeline page")
	flag.StringVar(&cfg.snapshotPath, "snapshot-path", "/var/lib/babyriver/snapshot.png", "Where to write the captured PNG")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.env, "env", "development", "Log environment (development or production)")

	flag.Parse()

	return cfg
}
