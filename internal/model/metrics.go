package model

// PerformanceMetrics aggregates a trade list and equity curve.
type PerformanceMetrics struct {
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRate            float64 `json:"win_rate"`
	TotalPnL           float64 `json:"total_pnl"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	FinalValue         float64 `json:"final_value"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	ProfitFactor       float64 `json:"profit_factor"`
	GrossProfit        float64 `json:"gross_profit"`
	GrossLoss          float64 `json:"gross_loss"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	AvgTradeDuration   float64 `json:"avg_trade_duration"`
}
