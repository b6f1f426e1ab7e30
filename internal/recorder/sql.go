package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"WyckoffBacktester/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLRecorder persists run history to SQLite or PostgreSQL.
type SQLRecorder struct {
	db     *sqlx.DB
	driver string
	mu     sync.Mutex
	now    func() time.Time
}

// NewSQLRecorder opens (or creates) the database and runs migrations.
func NewSQLRecorder(driver, dsn string) (*SQLRecorder, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// WAL mode so readers are not blocked while a run is written.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	r := &SQLRecorder{db: db, driver: driver, now: time.Now}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("driver", driver).Msg("sql recorder opened")
	return r, nil
}

func (r *SQLRecorder) migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			kind           TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			strategy       TEXT NOT NULL,
			created_at     BIGINT NOT NULL,
			start_date     TEXT,
			end_date       TEXT,
			bars           INTEGER,
			total_trades   INTEGER,
			win_rate       DOUBLE PRECISION,
			return_percent DOUBLE PRECISION,
			max_drawdown   DOUBLE PRECISION,
			sharpe_ratio   DOUBLE PRECISION,
			final_value    DOUBLE PRECISION,
			stop_loss      DOUBLE PRECISION,
			report         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON runs(symbol, created_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id          ` + serial + `,
			run_id      TEXT NOT NULL,
			entry_date  TEXT NOT NULL,
			entry_price DOUBLE PRECISION,
			shares      INTEGER,
			entry_phase TEXT,
			exit_date   TEXT,
			exit_price  DOUBLE PRECISION,
			exit_reason TEXT,
			pnl         DOUBLE PRECISION,
			pnl_percent DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

const insertRun = `INSERT INTO runs
	(id, kind, symbol, strategy, created_at, start_date, end_date, bars, total_trades,
	 win_rate, return_percent, max_drawdown, sharpe_ratio, final_value, stop_loss, report)
	VALUES (:id, :kind, :symbol, :strategy, :created_at, :start_date, :end_date, :bars, :total_trades,
	 :win_rate, :return_percent, :max_drawdown, :sharpe_ratio, :final_value, :stop_loss, :report)`

func day(t time.Time) string { return t.Format("2006-01-02") }

func (r *SQLRecorder) RecordBacktest(ctx context.Context, runID string, rep *model.SymbolReport, stopLoss float64) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	p := rep.Performance
	run := RunRecord{
		ID: runID, Kind: KindBacktest, Symbol: rep.Symbol, Strategy: rep.Strategy,
		CreatedAt: r.now().Unix(), StartDate: day(rep.StartDate), EndDate: day(rep.EndDate),
		Bars: rep.TotalBars, TotalTrades: p.TotalTrades, WinRate: p.WinRate,
		ReturnPercent: p.TotalReturnPercent, MaxDrawdown: p.MaxDrawdownPercent,
		SharpeRatio: p.SharpeRatio, FinalValue: p.FinalValue, StopLoss: stopLoss,
		Report: string(doc),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	insertTrade := tx.Rebind(`INSERT INTO trades
		(run_id, entry_date, entry_price, shares, entry_phase, exit_date, exit_price, exit_reason, pnl, pnl_percent)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	for _, t := range rep.Trades {
		var exitDate, exitReason *string
		if t.ExitDate != nil {
			d := day(*t.ExitDate)
			exitDate = &d
		}
		if t.ExitReason != nil {
			s := string(*t.ExitReason)
			exitReason = &s
		}
		if _, err := tx.ExecContext(ctx, insertTrade,
			runID, day(t.EntryDate), t.EntryPrice, t.Shares, string(t.EntryPhase),
			exitDate, t.ExitPrice, exitReason, t.PnL, t.PnLPercent,
		); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLRecorder) RecordOptimization(ctx context.Context, runID string, rep *model.OptimizationReport) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	run := RunRecord{
		ID: runID, Kind: KindOptimize, Symbol: rep.Symbol, Strategy: rep.Strategy,
		CreatedAt: r.now().Unix(), StartDate: day(rep.StartDate), EndDate: day(rep.EndDate),
		StopLoss: rep.OverallOptimal, Report: string(doc),
	}
	for _, g := range rep.GridResults {
		if g.StopLoss == rep.OverallOptimal {
			run.TotalTrades, run.WinRate = g.TotalTrades, g.WinRate
			run.ReturnPercent, run.MaxDrawdown = g.TotalReturnPercent, g.MaxDrawdownPercent
			run.SharpeRatio, run.FinalValue = g.SharpeRatio, g.FinalValue
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.db.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *SQLRecorder) LatestRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []RunRecord
	q := r.db.Rebind(`SELECT * FROM runs WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &runs, q, symbol, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

func (r *SQLRecorder) Close() error {
	log.Info().Msg("closing sql recorder")
	return r.db.Close()
}
