// Package app builds the running monitor from a config.Config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/monitor"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/localfs"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	pg "github.com/hamed0406/sitewatch/internal/repo/postgres"
	s3blob "github.com/hamed0406/sitewatch/internal/repo/s3"
	"github.com/hamed0406/sitewatch/internal/repo/sqlite"
	"github.com/hamed0406/sitewatch/internal/scheduler"
	"github.com/hamed0406/sitewatch/internal/secrets"
	"github.com/hamed0406/sitewatch/internal/transition"
)

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    repo.StatusStore
	Notifier *notify.Multi
	Handler  *monitor.Handler
	Metrics  *metrics.Bundle

	closers []func()
}

// Overrides replace parts New would otherwise build from the config.
type Overrides struct {
	Blob     repo.BlobStore
	Checker  probe.Checker
	Notifier *notify.Multi
	Creds    notify.CredentialSource
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger, ov Overrides) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: log, Metrics: metrics.NewBundle()}

	store, err := a.statusStore(ctx, ov.Blob)
	if err != nil {
		return nil, err
	}
	a.Store = store

	n := ov.Notifier
	if n == nil {
		creds := ov.Creds
		if creds == nil && wants(cfg.NotifyChannels, "twitter") {
			sc, err := secrets.NewFromEnv(ctx, cfg.AWSRegion, cfg.TwitterSecretName)
			if err != nil {
				a.Close()
				return nil, err
			}
			creds = sc
		}
		if n, err = notify.Build(cfg, creds, log); err != nil {
			a.Close()
			return nil, err
		}
	}
	n.Observe = a.Metrics.Metrics.ObserveNotification
	a.Notifier = n

	checker := ov.Checker
	if checker == nil {
		checker = probe.NewHTTPChecker(probe.HTTPOptions{
			Timeout:        cfg.ProbeTimeout,
			Attempts:       cfg.ProbeAttempts,
			Backoff:        cfg.ProbeBackoff,
			Logger:         log,
			DNSDiagnostics: true,
		})
	}

	engine := transition.NewEngine(store, n, transition.Options{
		Target:        cfg.MonitorURL,
		Mention:       cfg.NotifyMention,
		FailureEvents: transition.FailureEventMode(cfg.FailureEvents),
		Logger:        log,
		Metrics:       a.Metrics.Metrics,
	})
	a.Handler = monitor.NewHandler(cfg.MonitorURL, checker, engine, log, a.Metrics.Metrics)

	log.Info("app_ready",
		zap.String("target", cfg.MonitorURL),
		zap.String("backend", cfg.StateBackend),
		zap.Int("channels", n.Len()),
		zap.String("failure_events", cfg.FailureEvents),
	)
	return a, nil
}

func (a *App) statusStore(ctx context.Context, blob repo.BlobStore) (repo.StatusStore, error) {
	cfg := a.Config
	if blob == nil {
		switch cfg.StateBackend {
		case config.BackendPostgres:
			st, err := pg.New(ctx, cfg.DatabaseURL, cfg.MonitorID, a.Logger)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, st.Close)
			return st, nil
		case config.BackendS3:
			b, err := s3blob.NewFromEnv(ctx, cfg.AWSRegion, cfg.StateBucket)
			if err != nil {
				return nil, err
			}
			blob = b
		case config.BackendLocalFS:
			b, err := localfs.New(cfg.StateDir)
			if err != nil {
				return nil, err
			}
			blob = b
		case config.BackendMemory:
			blob = memory.New()
		default:
			return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
		}
	}
	return sqlite.New(blob, cfg.StateKey, cfg.MonitorID, a.Logger), nil
}

// Router is the HTTP surface: trigger, read-only state, health, metrics.
func (a *App) Router() http.Handler {
	cfg := a.Config
	srv := httpapi.NewServer(a.Logger, cfg.MonitorURL, a.Handler, a.Store, a.Metrics.Handler())
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	return srv.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst)
}

// Scheduler returns the in-process cadence loop; it is a no-op when
// CheckInterval is zero.
func (a *App) Scheduler() *scheduler.Ticker {
	return scheduler.NewTicker(a.Logger, a.Handler, a.Config.CheckInterval, 0)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func wants(channels []string, name string) bool {
	for _, ch := range channels {
		if ch == name {
			return true
		}
	}
	return false
}
