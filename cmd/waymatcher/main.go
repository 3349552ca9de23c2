package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"waymatcher/internal/backend"
	"waymatcher/internal/config"
	appLog "waymatcher/internal/log"
	"waymatcher/internal/recurrence"
	"waymatcher/internal/store"
	"waymatcher/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	appLog.Info("waymatcher starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"backend", conf.Backend.BaseURL != "",
		"cache_dir", conf.CacheDir,
		"rate_limit_per_minute", conf.RateLimitPerMinute,
		"once", flags.once,
	)

	loc := web.ResolveLocation(conf.Timezone)
	engine := recurrence.NewEngine(loc)

	client := backend.NewClient(backend.Options{
		BaseURL:    conf.Backend.BaseURL,
		Token:      conf.Backend.Token,
		CacheDir:   conf.CacheDir,
		Timeout:    time.Duration(conf.Backend.TimeoutSeconds) * time.Second,
		MaxRetries: uint64(conf.Backend.MaxRetries),
	})
	st := store.New(client)

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

	if flags.once {
		if err := runOnce(ctx, st, engine); err != nil {
			os.Exit(1)
		}
		return
	}

	// A failed initial refresh is not fatal; the refresher retries on schedule.
	_, _ = st.Refresh(ctx)

	refresher, err := store.NewRefresher(st, conf.RefreshCron, loc)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	refresher.Start()
	appLog.Info("next refresh scheduled", "at", refresher.Next())

	srv := web.NewServer(conf, st, engine)
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("http server failed", err, "listen", conf.Listen)
		cancel()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	refresher.Stop(stopCtx)

	appLog.Info("waymatcher exiting")
}

// runOnce performs a single refresh and logs each ride with its next
// occurrence.
func runOnce(ctx context.Context, st *store.Store, engine *recurrence.Engine) error {
	snap, err := st.Refresh(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, ev := range snap.Events {
		policy, err := recurrence.DetectPolicy(ev.CronSchedule)
		if err != nil {
			appLog.Error("ride has unrecognized schedule", err, "event_id", ev.ID, "cron", ev.CronSchedule)
			continue
		}
		next := "one-off"
		if policy != recurrence.None {
			if sched, ok := engine.NextExecution(ev.StartTimestamp, policy, now); ok {
				next = sched.NextExecution.Format(recurrence.DisplayLayout)
			}
		}
		appLog.Info("ride",
			"event_id", ev.ID,
			"label", ev.Label(),
			"policy", string(policy),
			"free_seats", ev.FreeSeats,
			"next", next,
		)
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/waymatcher/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one backend refresh, log upcoming rides and exit")

	flag.Parse()

	return cfg
}
