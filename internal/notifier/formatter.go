package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/performance"
	"WyckoffBacktester/internal/recorder"
)

func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

func profitFactor(v float64) string {
	if v == performance.ProfitFactorNoLosses || math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatBacktest formats one symbol's backtest into a Telegram message.
func FormatBacktest(rep *model.SymbolReport) string {
	var b strings.Builder
	p := rep.Performance

	b.WriteString(fmt.Sprintf("📊 <b>%s 回测</b> | %s\n", html.EscapeString(rep.Symbol), rep.Strategy))
	b.WriteString(fmt.Sprintf("区间: %s ~ %s (%d 根K线)\n\n",
		rep.StartDate.Format("2006-01-02"), rep.EndDate.Format("2006-01-02"), rep.TotalBars))

	b.WriteString(fmt.Sprintf("初始资金: $%s\n", money(rep.InitialCapital)))
	b.WriteString(fmt.Sprintf("最终净值: $%s (%+.2f%%)\n", money(p.FinalValue), p.TotalReturnPercent))
	b.WriteString(fmt.Sprintf("交易次数: %d | 胜率: %.1f%%\n", p.TotalTrades, p.WinRate*100))
	b.WriteString(fmt.Sprintf("最大回撤: %.2f%% | 夏普: %.2f | 盈亏比: %s\n",
		p.MaxDrawdownPercent, p.SharpeRatio, profitFactor(p.ProfitFactor)))

	if n := len(rep.Trades); n > 0 {
		last := rep.Trades[n-1]
		if last.Open() {
			b.WriteString(fmt.Sprintf("\n📌 持仓中: %d 股 @ %.2f (%s 买入, %s)\n",
				last.Shares, last.EntryPrice, last.EntryDate.Format("2006-01-02"), last.EntryPhase))
		}
	}

	if len(rep.PhaseAnalysis.PhaseCounts) > 0 {
		b.WriteString("\n🧭 <b>阶段分布:</b>\n")
		for _, ph := range model.Phases {
			if c := rep.PhaseAnalysis.PhaseCounts[ph]; c > 0 {
				b.WriteString(fmt.Sprintf("  %s: %d 根 (平均 %.1f)\n", ph, c, rep.PhaseAnalysis.AvgDurations[ph]))
			}
		}
	}
	return b.String()
}

// FormatBatch formats a multi-symbol run summary.
func FormatBatch(rep *model.BatchReport) string {
	var b strings.Builder
	s := rep.Summary

	b.WriteString(fmt.Sprintf("📈 <b>批量回测</b> | %s\n\n", time.Now().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("标的: %d | 成功: %d | 失败: %d\n", s.TotalSymbols, s.SuccessfulBacktests, s.FailedBacktests))
	b.WriteString(fmt.Sprintf("总资金: $%s → $%s (%+.2f%%)\n\n",
		money(s.TotalInitialCapital), money(s.TotalFinalValue), s.OverallReturnPercent))

	symbols := make([]string, 0, len(rep.Results))
	for sym := range rep.Results {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		p := rep.Results[sym].Performance
		b.WriteString(fmt.Sprintf("  %s: %+.2f%% | %d 笔 | 回撤 %.2f%%\n",
			html.EscapeString(sym), p.TotalReturnPercent, p.TotalTrades, p.MaxDrawdownPercent))
	}
	for _, e := range rep.Errors {
		b.WriteString(fmt.Sprintf("  ❌ %s: %s\n", html.EscapeString(e.Symbol), html.EscapeString(e.Error)))
	}
	return b.String()
}

// FormatOptimization formats a stop-loss optimization report.
func FormatOptimization(rep *model.OptimizationReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🎯 <b>%s 止损优化</b> | %s\n", html.EscapeString(rep.Symbol), rep.Strategy))
	if rep.Partial {
		b.WriteString("⚠️ 优化被中断, 结果不完整\n")
	}
	b.WriteString(fmt.Sprintf("区间: %s ~ %s\n", rep.StartDate.Format("2006-01-02"), rep.EndDate.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("测试范围: %.1f%% ~ %.1f%% (%d 档)\n\n",
		rep.StopLossRange[0]*100, rep.StopLossRange[1]*100, len(rep.TestIntervals)))

	b.WriteString(fmt.Sprintf("全区间最优止损: <b>%.1f%%</b>\n", rep.OverallOptimal*100))
	for _, g := range rep.GridResults {
		if g.StopLoss == rep.OverallOptimal {
			b.WriteString(fmt.Sprintf("  收益 %+.2f%% | 回撤 %.2f%% | 夏普 %.2f\n",
				g.TotalReturnPercent, g.MaxDrawdownPercent, g.SharpeRatio))
			break
		}
	}

	b.WriteString("\n📐 <b>窗口统计:</b>\n")
	for _, kind := range []string{"monthly", "quarterly", "yearly"} {
		st, ok := rep.Statistics[kind]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s(%d): 均值 %.1f%% | 中位 %.1f%% | %.1f%% ~ %.1f%%\n",
			kind, st.Count, st.Avg*100, st.Median*100, st.Min*100, st.Max*100))
	}

	r := rep.Recommendations
	b.WriteString(fmt.Sprintf("\n💡 建议: 保守 %.1f%% | 适中 %.1f%% | 激进 %.1f%%\n",
		r.Conservative*100, r.Moderate*100, r.Aggressive*100))
	return b.String()
}

// FormatHistory lists recorded runs of one symbol, newest first.
func FormatHistory(symbol string, runs []recorder.RunRecord) string {
	if len(runs) == 0 {
		return fmt.Sprintf("%s 暂无历史记录", html.EscapeString(symbol))
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>%s 历史记录</b>\n\n", html.EscapeString(symbol)))
	for _, r := range runs {
		at := time.Unix(r.CreatedAt, 0).Format("2006-01-02 15:04")
		switch r.Kind {
		case recorder.KindOptimize:
			b.WriteString(fmt.Sprintf("%s 优化 最优止损 %.1f%% | 收益 %+.2f%%\n", at, r.StopLoss*100, r.ReturnPercent))
		default:
			b.WriteString(fmt.Sprintf("%s 回测 %+.2f%% | %d 笔 | 回撤 %.2f%%\n", at, r.ReturnPercent, r.TotalTrades, r.MaxDrawdown))
		}
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "可用命令:\n• /backtest SYMBOL 运行回测\n• /optimize SYMBOL 止损优化\n• /history SYMBOL 历史记录"
}
