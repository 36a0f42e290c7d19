package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"famcal/internal/config"
	"famcal/internal/ics"
	"famcal/internal/layout"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/view"
	"famcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("famcal starting", "version", "0.1.0-dev")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc := resolveLocationOrLocal(conf.Timezone)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	ctrl := view.New(view.Options{
		Location:        loc,
		WeekStart:       weekStartDay(conf.WeekStart),
		DefaultDuration: time.Duration(conf.DefaultDurationMin) * time.Minute,
		Layout: layout.Options{
			HourHeight:     conf.HourHeight,
			MinEventHeight: conf.MinEventHeight,
		},
		MonthCellMax: conf.MonthCellMax,
		Diag:         appLog.NewLimiter(time.Duration(conf.DiagWindowSec)*time.Second, 0),
	})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	refresh := func() {
		refreshEvents(ctx, conf, ctrl, flags.debug)
	}

	// Initial load before the server comes up.
	refresh()

	if flags.once {
		res := ctrl.Layout()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			appLog.Error("failed to dump layout", err)
			os.Exit(1)
		}
		return
	}

	// Periodic refresh on the configured cron schedule.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, ctrl).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("famcal exiting")
}

// refreshEvents fetches and parses all configured ICS sources and pushes the
// combined record list into the controller. Individual source failures are
// logged; the remaining sources still contribute.
func refreshEvents(ctx context.Context, conf *config.Config, ctrl *view.Controller, debug bool) {
	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, csrc := range conf.ICS {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, Name: csrc.Name, URL: csrc.URL})
	}
	if len(sources) == 0 {
		return
	}

	cacheDir := "/var/lib/famcal/ics-cache"
	if debug {
		cacheDir = "./cache/ics-cache"
	}
	fetcher := ics.NewFetcher(cacheDir)

	results, errs := fetcher.FetchAll(ctx, sources)
	for _, err := range errs {
		appLog.Error("ics refresh: fetch failed", err)
	}

	raws := make([]model.RawEvent, 0)
	for _, res := range results {
		events, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics refresh: parse failed", err, "id", res.Source.ID)
			continue
		}
		raws = append(raws, events...)
	}

	ctrl.SetEvents(raws)
	appLog.Info("ics refresh completed", "sources", len(results), "events", len(raws))
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/famcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, dump the current layout as JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local cache paths")

	flag.Parse()

	return cfg
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func weekStartDay(s string) time.Weekday {
	if s == "monday" {
		return time.Monday
	}
	return time.Sunday
}
