package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/soft_conference/internal/config"
	"github.com/arzzra/soft_conference/pkg/scheduler"
	"github.com/arzzra/soft_conference/pkg/sipfocus"
	"github.com/arzzra/soft_conference/pkg/store"
)

var _ scheduler.InfoStore = (*store.Badger)(nil)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	account scheduler.Account

	store    *store.Badger
	registry *prometheus.Registry
	metrics  *scheduler.Metrics
	http     *http.Server
	client   *sipfocus.Client
}

func newApp(configPath, envFile string) (*app, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	account, err := cfg.SchedulerAccount()
	if err != nil {
		return nil, err
	}

	db, err := store.OpenBadger(cfg.Store.Dir, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		account:  account,
		store:    db,
		registry: registry,
		metrics:  scheduler.NewMetrics(registry),
	}
	a.startMetrics()
	return a, nil
}

func (a *app) startMetrics() {
	if a.cfg.MetricsListen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.http = &http.Server{
		Addr:              a.cfg.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("confsched: metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("confsched: metrics enabled", slog.String("listen", a.cfg.MetricsListen))
}

// sipClient создает SIP клиент при первом обращении
func (a *app) sipClient() (*sipfocus.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	client, err := sipfocus.NewClient(a.cfg.ClientConfig(), sipfocus.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	client, err := a.sipClient()
	if err != nil {
		return nil, err
	}
	return scheduler.New(
		a.account,
		sipfocus.NewAllocator(client, sipfocus.WithLogger(a.logger)),
		sipfocus.NewMessenger(client, a.account.Identity, sipfocus.WithLogger(a.logger)),
		scheduler.WithLogger(a.logger),
		scheduler.WithStore(a.store),
		scheduler.WithMetrics(a.metrics),
		scheduler.WithAllocationTimeout(a.cfg.Scheduler.AllocationTimeout),
		scheduler.WithSendTimeout(a.cfg.Scheduler.SendTimeout),
	), nil
}

func (a *app) close() {
	if a.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.http.Shutdown(ctx)
		cancel()
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("confsched: sip client close", slog.String("error", err.Error()))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("confsched: store close", slog.String("error", err.Error()))
	}
}
