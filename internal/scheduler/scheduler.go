package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"WyckoffBacktester/internal/backtest"
	"WyckoffBacktester/internal/cache"
	"WyckoffBacktester/internal/collector"
	"WyckoffBacktester/internal/metrics"
	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/notifier"
	"WyckoffBacktester/internal/recorder"
	"WyckoffBacktester/internal/report"
)

// Notifier delivers formatted messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// ReportCache looks up and stores finished reports by fingerprint key.
type ReportCache interface {
	Backtest(ctx context.Context, key string) (*model.SymbolReport, bool, error)
	PutBacktest(ctx context.Context, key string, rep *model.SymbolReport) error
	Optimization(ctx context.Context, key string) (*model.OptimizationReport, bool, error)
	PutOptimization(ctx context.Context, key string, rep *model.OptimizationReport) error
}

// Scheduler runs backtests and optimizations on cron schedules and on demand. Cache,
// Reports, Metrics and Notifier are optional.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Runner    *backtest.Runner
	Recorder  recorder.Recorder
	Cache     ReportCache
	Reports   *report.Writer
	Metrics   *metrics.Registry
	Notifier  Notifier
	Symbols   []string
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler over the configured symbols.
func NewScheduler(ctx context.Context, col *collector.Collector, runner *backtest.Runner, rec recorder.Recorder, symbols []string) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Runner:    runner,
		Recorder:  rec,
		Symbols:   symbols,
		Ctx:       ctx,
	}
}

// RegisterAll registers the batch backtest and the stop-loss optimization jobs.
func (s *Scheduler) RegisterAll(backtestCron, optimizeCron string) error {
	if _, err := s.Cron.AddFunc(backtestCron, s.backtestTask); err != nil {
		return fmt.Errorf("register backtest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(optimizeCron, s.optimizeTask); err != nil {
		return fmt.Errorf("register optimize task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunBacktestsNow executes the scheduled batch immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunBacktestsNow() {
	s.backtestTask()
}

func (s *Scheduler) backtestTask() {
	log.Info().Strs("symbols", s.Symbols).Msg("running scheduled backtests")
	batch := s.RunBacktests(s.Ctx, s.Symbols)
	s.trySend(notifier.FormatBatch(batch))
}

func (s *Scheduler) optimizeTask() {
	log.Info().Strs("symbols", s.Symbols).Msg("running scheduled optimizations")
	for _, sym := range s.Symbols {
		rep, err := s.Optimize(s.Ctx, sym)
		if rep == nil {
			s.trySend(fmt.Sprintf("❌ %s 止损优化失败: %v", sym, err))
			continue
		}
		s.trySend(notifier.FormatOptimization(rep))
	}
}

// RunBacktests fetches and backtests symbols. Reports found in the cache are reused, fresh
// reports are recorded and cached, and the batch report is written to the output dir.
func (s *Scheduler) RunBacktests(ctx context.Context, symbols []string) *model.BatchReport {
	start := time.Now()
	symbols = unique(symbols)

	series, failed := s.Collector.CollectAll(ctx, symbols)
	for range failed {
		s.fetchFailed()
	}

	cached := make(map[string]*model.SymbolReport)
	keys := make(map[string]string)
	var pending []model.Series
	for _, ser := range series {
		key := s.key(cache.KindBacktest, ser, s.Runner.Config())
		if rep := s.cachedBacktest(ctx, key); rep != nil {
			cached[ser.Symbol] = rep
			continue
		}
		keys[ser.Symbol] = key
		pending = append(pending, ser)
	}

	batch := s.Runner.RunBatch(ctx, pending)
	for sym, rep := range batch.Results {
		s.persistBacktest(ctx, rep, keys[sym])
		s.observe(metrics.KindBacktest, metrics.ResultOK, start)
	}
	for sym, rep := range cached {
		batch.Results[sym] = rep
	}
	batch.Errors = append(batch.Errors, failed...)
	sort.Slice(batch.Errors, func(i, j int) bool { return batch.Errors[i].Symbol < batch.Errors[j].Symbol })
	for range batch.Errors {
		s.observe(metrics.KindBacktest, metrics.ResultError, start)
	}
	batch.Summary = backtest.Summarize(batch.Results, len(symbols))

	if s.Reports != nil {
		if path, err := s.Reports.Batch(batch); err != nil {
			log.Error().Err(err).Msg("write batch report")
		} else {
			log.Info().Str("path", path).Msg("batch report written")
		}
	}
	log.Info().
		Int("symbols", len(symbols)).
		Int("ok", batch.Summary.SuccessfulBacktests).
		Int("cached", len(cached)).
		Float64("return_pct", batch.Summary.OverallReturnPercent).
		Dur("took", time.Since(start)).
		Msg("backtests complete")
	return batch
}

// Optimize fetches one symbol and grid-searches its stop-loss. An interrupted run returns
// the partial report together with the context error.
func (s *Scheduler) Optimize(ctx context.Context, symbol string) (*model.OptimizationReport, error) {
	start := time.Now()
	ser, err := s.Collector.Collect(ctx, symbol)
	if err != nil {
		s.fetchFailed()
		s.observe(metrics.KindOptimize, metrics.ResultError, start)
		return nil, err
	}

	key := s.key(cache.KindOptimize, ser, s.Runner.Config())
	if rep := s.cachedOptimization(ctx, key); rep != nil {
		return rep, nil
	}

	rep, err := s.Runner.Optimize(ctx, symbol, ser.Bars)
	if rep == nil {
		s.observe(metrics.KindOptimize, metrics.ResultError, start)
		return nil, err
	}
	result := metrics.ResultOK
	if rep.Partial {
		result = metrics.ResultPartial
	}
	s.observe(metrics.KindOptimize, result, start)

	runID := uuid.NewString()
	if rerr := s.Recorder.RecordOptimization(ctx, runID, rep); rerr != nil {
		log.Error().Err(rerr).Str("symbol", symbol).Msg("record optimization")
	}
	if s.Reports != nil {
		if _, werr := s.Reports.Optimization(rep); werr != nil {
			log.Error().Err(werr).Str("symbol", symbol).Msg("write optimization report")
		}
	}
	if s.Cache != nil && key != "" {
		if cerr := s.Cache.PutOptimization(ctx, key, rep); cerr != nil {
			log.Warn().Err(cerr).Str("symbol", symbol).Msg("cache optimization")
		}
	}
	if s.Metrics != nil && !rep.Partial {
		s.Metrics.OptimalStop.WithLabelValues(symbol).Set(rep.OverallOptimal)
	}
	log.Info().
		Str("run_id", runID).
		Str("symbol", symbol).
		Float64("overall_optimal", rep.OverallOptimal).
		Bool("partial", rep.Partial).
		Dur("took", time.Since(start)).
		Msg("optimization complete")
	return rep, err
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// "/backtest@SomeBot" in group chats
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	symbol := ""
	if len(fields) > 1 {
		symbol = strings.ToUpper(fields[1])
	} else if len(s.Symbols) > 0 {
		symbol = s.Symbols[0]
	}

	switch name {
	case "/backtest":
		batch := s.RunBacktests(ctx, []string{symbol})
		if rep, ok := batch.Results[symbol]; ok {
			return notifier.FormatBacktest(rep)
		}
		return fmt.Sprintf("❌ %s 回测失败: %s", symbol, firstError(batch.Errors))
	case "/optimize":
		rep, err := s.Optimize(ctx, symbol)
		if rep == nil {
			return fmt.Sprintf("❌ %s 止损优化失败: %v", symbol, err)
		}
		return notifier.FormatOptimization(rep)
	case "/history":
		runs, err := s.Recorder.LatestRuns(ctx, symbol, 10)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("load history")
			return fmt.Sprintf("❌ 读取历史失败: %v", err)
		}
		return notifier.FormatHistory(symbol, runs)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) persistBacktest(ctx context.Context, rep *model.SymbolReport, key string) {
	runID := uuid.NewString()
	stopLoss := s.Runner.Config().Simulator.StopLossPercent
	if err := s.Recorder.RecordBacktest(ctx, runID, rep, stopLoss); err != nil {
		log.Error().Err(err).Str("symbol", rep.Symbol).Msg("record backtest")
	}
	if s.Cache != nil && key != "" {
		if err := s.Cache.PutBacktest(ctx, key, rep); err != nil {
			log.Warn().Err(err).Str("symbol", rep.Symbol).Msg("cache backtest")
		}
	}
	if s.Metrics != nil {
		s.Metrics.ReturnPercent.WithLabelValues(rep.Symbol).Set(rep.Performance.TotalReturnPercent)
	}
	log.Debug().Str("run_id", runID).Str("symbol", rep.Symbol).Msg("backtest recorded")
}

// key returns "" when caching is disabled or the fingerprint cannot be computed.
func (s *Scheduler) key(kind string, ser model.Series, cfg backtest.Config) string {
	if s.Cache == nil {
		return ""
	}
	k, err := cache.Key(kind, ser.Symbol, ser.Bars, cfg)
	if err != nil {
		log.Warn().Err(err).Str("symbol", ser.Symbol).Msg("cache key")
		return ""
	}
	return k
}

func (s *Scheduler) cachedBacktest(ctx context.Context, key string) *model.SymbolReport {
	if key == "" {
		return nil
	}
	rep, ok, err := s.Cache.Backtest(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("cache lookup failed")
	}
	s.lookup(metrics.KindBacktest, ok)
	return rep
}

func (s *Scheduler) cachedOptimization(ctx context.Context, key string) *model.OptimizationReport {
	if key == "" {
		return nil
	}
	rep, ok, err := s.Cache.Optimization(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("cache lookup failed")
	}
	s.lookup(metrics.KindOptimize, ok)
	return rep
}

func (s *Scheduler) lookup(kind string, hit bool) {
	if s.Metrics == nil {
		return
	}
	if hit {
		s.Metrics.CacheHit(kind)
	} else {
		s.Metrics.CacheMiss(kind)
	}
}

func (s *Scheduler) observe(kind, result string, start time.Time) {
	if s.Metrics != nil {
		s.Metrics.ObserveRun(kind, result, start)
	}
}

func (s *Scheduler) fetchFailed() {
	if s.Metrics != nil {
		s.Metrics.FetchFailures.WithLabelValues(s.Collector.Fetcher.Name()).Inc()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

func unique(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func firstError(errs []model.SymbolError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[0].Error
}
