package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"WyckoffBacktester/internal/backtest"
	"WyckoffBacktester/internal/cache"
	"WyckoffBacktester/internal/collector"
	"WyckoffBacktester/internal/config"
	"WyckoffBacktester/internal/metrics"
	"WyckoffBacktester/internal/notifier"
	"WyckoffBacktester/internal/recorder"
	"WyckoffBacktester/internal/report"
	"WyckoffBacktester/internal/scheduler"
)

// app holds the wired collaborators shared by every command.
type app struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	metrics  *metrics.Registry
	notifier *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func setupLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if !pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func newFetcher(cfg *config.Config) (collector.Fetcher, error) {
	opts := collector.HTTPOptions{
		Proxy:             cfg.Proxy,
		Timeout:           cfg.DataSource.Timeout,
		RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
	}
	switch cfg.DataSource.Provider {
	case config.ProviderYahoo:
		f := collector.NewYahooFetcher(opts)
		if cfg.DataSource.BaseURL != "" {
			f.BaseURL = cfg.DataSource.BaseURL
		}
		return f, nil
	case config.ProviderREST:
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, opts), nil
	case config.ProviderCSV:
		return collector.NewCSVFetcher(cfg.DataSource.CSVDir), nil
	case config.ProviderSynthetic:
		return collector.NewSyntheticFetcher(1), nil
	}
	return nil, fmt.Errorf("unknown data provider %q", cfg.DataSource.Provider)
}

func newRecorder(cfg *config.Config) (recorder.Recorder, error) {
	switch cfg.Database.Driver {
	case recorder.DriverSQLite:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		return recorder.NewSQLRecorder(recorder.DriverSQLite, cfg.Database.SQLitePath)
	case recorder.DriverPostgres:
		return recorder.NewSQLRecorder(recorder.DriverPostgres, cfg.Database.PostgresDSN)
	}
	return recorder.NewNoopRecorder(), nil
}

// buildApp wires the collector, runner, recorder, cache, report writer, metrics and
// notifier. Optional collaborators that fail to initialise are logged and skipped.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source")

	runner, err := backtest.NewRunner(cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	rec, err := newRecorder(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("init recorder failed, using noop")
		rec = recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, rec.Close)

	col := collector.NewCollector(fetcher, cfg.DataSource.Days)
	a.sched = scheduler.NewScheduler(ctx, col, runner, rec, cfg.DataSource.Symbols)
	a.sched.Reports = report.NewWriter(cfg.Output.Dir)
	a.sched.Metrics = a.metrics

	if cfg.Redis.Addr != "" {
		rc, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("init redis cache failed, caching disabled")
		} else {
			a.sched.Cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	if cfg.TelegramEnabled() {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	}

	log.Info().
		Str("strategy", runner.StrategyName()).
		Int("warmup", runner.WarmUp()).
		Strs("symbols", cfg.DataSource.Symbols).
		Msg("backtester ready")
	return a, nil
}

// enableNotifications routes scheduler output to Telegram when it is configured.
func (a *app) enableNotifications() bool {
	if a.notifier == nil {
		return false
	}
	a.sched.Notifier = a.notifier
	return true
}
