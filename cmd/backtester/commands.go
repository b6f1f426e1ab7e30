package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"WyckoffBacktester/internal/config"
	"WyckoffBacktester/internal/notifier"
	"WyckoffBacktester/internal/server"
)

type rootOptions struct {
	configPath string
	logLevel   string
	strategy   string
	provider   string
	days       int
	output     string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}

	root := &cobra.Command{
		Use:           "backtester",
		Short:         "Wyckoff phase backtesting and stop-loss optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", defaultPath, "Path to the YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.StringVar(&opts.strategy, "strategy", "", "Signal strategy ("+strings.Join(config.StrategyNames(), "|")+")")
	pf.StringVar(&opts.provider, "provider", "", "Data provider (yahoo|rest|csv|synthetic)")
	pf.IntVar(&opts.days, "days", 0, "Daily bars to fetch per symbol")
	pf.StringVar(&opts.output, "output", "", "Report output directory")

	root.AddCommand(newRunCmd(opts), newOptimizeCmd(opts), newServeCmd(opts))
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("strategy") {
		cfg.Backtest.Strategy.Name = o.strategy
	}
	if flags.Changed("provider") {
		cfg.DataSource.Provider = o.provider
	}
	if flags.Changed("days") {
		cfg.DataSource.Days = o.days
	}
	if flags.Changed("output") {
		cfg.Output.Dir = o.output
	}
	setupLogger(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation")
		return err
	}
	o.cfg = cfg
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func upper(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, strings.ToUpper(a))
	}
	return out
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		notify bool
	)
	cmd := &cobra.Command{
		Use:   "run [symbols...]",
		Short: "Backtest symbols (defaults to data_source.symbols)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			symbols := opts.cfg.DataSource.Symbols
			if len(args) > 0 {
				symbols = upper(args)
			}
			batch := a.sched.RunBacktests(ctx, symbols)
			if notify && a.enableNotifications() {
				if err := a.notifier.SendWithRetry(ctx, notifier.FormatBatch(batch), 3); err != nil {
					log.Error().Err(err).Msg("send notification")
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(batch); err != nil {
					return err
				}
			} else {
				for _, sym := range symbols {
					if rep, ok := batch.Results[sym]; ok {
						p := rep.Performance
						fmt.Fprintf(cmd.OutOrStdout(), "%-8s return %+8.2f%%  trades %3d  win %5.1f%%  dd %6.2f%%  sharpe %5.2f\n",
							sym, p.TotalReturnPercent, p.TotalTrades, p.WinRate*100, p.MaxDrawdownPercent, p.SharpeRatio)
					}
				}
				for _, e := range batch.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s FAILED %s\n", e.Symbol, e.Error)
				}
			}
			if batch.Summary.SuccessfulBacktests == 0 {
				return errors.New("no symbol was backtested successfully")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the batch report as JSON")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the summary to Telegram")
	return cmd
}

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "optimize SYMBOL",
		Short: "Grid-search the stop-loss for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			symbol := strings.ToUpper(args[0])
			rep, err := a.sched.Optimize(ctx, symbol)
			if rep == nil {
				return err
			}
			if err != nil {
				log.Warn().Err(err).Msg("optimization interrupted, report is partial")
			}
			if notify && a.enableNotifications() {
				if serr := a.notifier.SendWithRetry(context.Background(), notifier.FormatOptimization(rep), 3); serr != nil {
					log.Error().Err(serr).Msg("send notification")
				}
			}

			r := rep.Recommendations
			fmt.Fprintf(cmd.OutOrStdout(), "%s overall optimal stop-loss %.1f%% (conservative %.1f%%, moderate %.1f%%, aggressive %.1f%%)\n",
				symbol, rep.OverallOptimal*100, r.Conservative*100, r.Moderate*100, r.Aggressive*100)
			return err
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the report to Telegram")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled jobs, Telegram commands and the metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := opts.cfg

			sched := a.sched
			if err := sched.RegisterAll(cfg.Schedule.BacktestCron, cfg.Schedule.OptimizeCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			g, gctx := errgroup.WithContext(ctx)
			if a.enableNotifications() {
				g.Go(func() error {
					a.notifier.StartPolling(gctx, sched.HandleCommand)
					return nil
				})
				log.Info().Msg("telegram polling started")
			}
			srv := server.New(cfg.Server.Addr, a.metrics.Handler(), sched.Recorder)
			g.Go(func() error { return srv.ListenAndServe(gctx) })

			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("run on start enabled, executing backtests now")
				g.Go(func() error {
					sched.RunBacktestsNow()
					return nil
				})
			}

			log.Info().Msg("backtester is running, press Ctrl+C to stop")
			err = g.Wait()
			log.Info().Msg("backtester stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run the batch backtest once at startup")
	return cmd
}
