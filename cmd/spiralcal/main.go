package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"spiralcal/internal/capture"
	"spiralcal/internal/config"
	"spiralcal/internal/geom"
	"spiralcal/internal/ics"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
	"spiralcal/internal/session"
	"spiralcal/internal/store"
	"spiralcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	out        string
	dump       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("spiralcal starting", "version", "0.1.0")

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"db_path", conf.DBPath,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"days", conf.Spiral.Days,
		"once", flags.once,
		"dump", flags.dump,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("spiralcal failed", err)
		os.Exit(1)
	}
	appLog.Info("spiralcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	st, err := store.Open(ctx, conf.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := newSession(ctx, conf, st)
	if err != nil {
		return err
	}

	syncer := newSyncer(conf, sess)
	if err := syncer.Run(ctx); err != nil {
		appLog.Warn("initial ics sync incomplete", "err", err)
	}

	if flags.once {
		return renderOnce(sess, flags)
	}

	c := cron.New(cron.WithLocation(conf.Location()))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := syncer.Run(ctx); err != nil {
			appLog.Warn("scheduled ics sync incomplete", "err", err)
		}
		if conf.Capture.Enabled {
			snapshot(ctx, conf, sess)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	srv := web.NewServer(conf, sess,
		web.WithSettingsStore(st),
		web.WithRefresh(syncer.Run),
	)

	if conf.Capture.Enabled {
		go func() {
			// give the listener a moment before Chromium connects
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			snapshot(ctx, conf, sess)
		}()
	}

	return srv.ListenAndServe(ctx)
}

// newSession restores events and settings from the store and turns the
// spiral so the current hour is outermost.
func newSession(ctx context.Context, conf *config.Config, st *store.Store) (*session.Session, error) {
	events, err := st.LoadEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := session.New(conf.State(), conf.Viewport(), geom.ReferenceFor(now), model.NewEventList(events...), conf.SessionOptions())

	var saved session.Settings
	found, err := st.GetJSON(ctx, store.KeySettings, &saved)
	if err != nil {
		appLog.Warn("ignoring unreadable settings", "err", err)
	} else if found {
		sess.ApplySettings(saved)
	}
	// The reference moves daily, so a saved rotation is stale.
	sess.RotateToTime(now)

	sess.SetPersister(st)
	appLog.Info("session ready", "events", len(events), "rotation", sess.State().Rotation)
	return sess, nil
}

// newSyncer expands subscriptions over the same padded window as manual
// imports.
func newSyncer(conf *config.Config, sess *session.Session) *ics.Syncer {
	return &ics.Syncer{
		Fetcher: ics.NewFetcher(conf.CacheDir, &http.Client{Timeout: 30 * time.Second}),
		Sources: conf.ICS,
		Target:  sess,
		Window:  sess.ExpansionWindow,
	}
}

func renderOnce(sess *session.Session, flags flagConfig) error {
	if err := os.MkdirAll(filepath.Dir(flags.out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(flags.out)
	if err != nil {
		return err
	}
	if err := sess.RenderPNG(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("wrote preview", "path", flags.out)

	if flags.dump {
		data, err := json.MarshalIndent(sess.Frame(), "", "  ")
		if err != nil {
			return err
		}
		path := flags.out + ".json"
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		appLog.Info("wrote frame dump", "path", path)
	}
	return nil
}

func snapshot(ctx context.Context, conf *config.Config, sess *session.Session) {
	u := url.URL{Scheme: "http", Host: conf.Listen, Path: "/spiral"}
	if ba := conf.BasicAuth; ba != nil && ba.Username != "" {
		u.User = url.UserPassword(ba.Username, ba.Password)
	}
	vp := sess.Viewport()
	err := capture.SpiralPNG(ctx, capture.Options{
		URL:         u.String(),
		OutputPath:  conf.Capture.Output,
		Width:       int(vp.Width),
		Height:      int(vp.Height) + 40,
		DeviceScale: vp.DPR(),
		Timeout:     conf.CaptureTimeout(),
	})
	if err != nil {
		appLog.Error("capture failed", err, "output", conf.Capture.Output)
		return
	}
	appLog.Info("captured spiral", "output", conf.Capture.Output)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/spiralcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Sync calendars, render one PNG and exit")
	flag.StringVar(&cfg.out, "out", "./var/preview.png", "Output path for -once")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once, also write the frame as JSON next to the PNG")

	flag.Parse()

	return cfg
}
