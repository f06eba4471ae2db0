package domain

// TradeRecord is the reconciled, persisted view of one closed position.
// It is identified by the exchange order id and written exactly once.
type TradeRecord struct {
	ID          string  // Exchange order id, primary key
	Symbol      string  // Trading symbol (e.g., "BTCUSDT")
	Side        string  // Position side as reported (Buy/Sell)
	Qty         float64 // Closed quantity
	Entry       float64 // Average entry price
	Exit        float64 // Average exit price
	PNL         float64 // Realized PnL reported by the exchange
	PNLPct      float64 // PnL relative to entry notional, 0 when notional is zero
	Fee         float64 // Estimated from the flat maker/taker rate table, not the charged fee
	Leverage    int     // Leverage of the position
	DurationSec int64   // Seconds between open and close
	TPHit       bool    // A take-profit order fired
	SLHit       bool    // A stop order fired
	MTClose     bool    // Neither TP nor SL fired
	IsMaker     bool    // At least one fill in the window was a maker fill
	OrderType   string  // Type of the closing order, "Unknown" if it left the history page
	TimeInForce string  // Time in force of the closing order, "GTC" if absent
	NumFills    int     // Executions seen since the position was opened
	OpenedAt    string  // UTC, TimestampLayout
	ClosedAt    string  // UTC, TimestampLayout
}

// CloseReason derives a single label from the exit-reason flags.
func (t *TradeRecord) CloseReason() CloseReason {
	switch {
	case t.TPHit && t.SLHit:
		return CloseReasonAmbiguous
	case t.TPHit:
		return CloseReasonTakeProfit
	case t.SLHit:
		return CloseReasonStopLoss
	default:
		return CloseReasonMarket
	}
}
