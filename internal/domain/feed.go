package domain

// The feed records below mirror the exchange payloads. Numeric values stay as the
// exchange reports them (decimal strings, epoch millis) and are parsed during
// reconciliation so that one malformed row only affects its own position.

// ClosedPosition is a fully closed position from the closed-PnL feed.
type ClosedPosition struct {
	OrderID       string `json:"orderId" validate:"required"`
	Symbol        string `json:"symbol" validate:"required"`
	Side          string `json:"side" validate:"required"`
	Qty           string `json:"qty" validate:"required"`
	AvgEntryPrice string `json:"avgEntryPrice" validate:"required"`
	AvgExitPrice  string `json:"avgExitPrice" validate:"required"`
	ClosedPnl     string `json:"closedPnl" validate:"required"`
	Leverage      string `json:"leverage"`
	CreatedTime   string `json:"createdTime" validate:"required"`
	UpdatedTime   string `json:"updatedTime" validate:"required"`
}

// OrderRecord is one entry of the order-history feed.
type OrderRecord struct {
	OrderID       string `json:"orderId"`
	Symbol        string `json:"symbol"`
	OrderType     string `json:"orderType"`     // Market, Limit
	StopOrderType string `json:"stopOrderType"` // TakeProfit, StopLoss, TrailingStop, PartialTakeProfit, ...
	TimeInForce   string `json:"timeInForce"`
	UpdatedTime   string `json:"updatedTime"`
}

// TypeLabel returns every type marker the exchange attached to the order.
func (o OrderRecord) TypeLabel() string {
	if o.StopOrderType == "" {
		return o.OrderType
	}
	return o.OrderType + "/" + o.StopOrderType
}

// Fired reports whether the exchange recorded an update for the order.
func (o OrderRecord) Fired() bool {
	return o.UpdatedTime != ""
}

// Execution is one fill from the execution feed.
type Execution struct {
	Symbol    string `json:"symbol"`
	OrderID   string `json:"orderId"`
	ExecID    string `json:"execId"`
	IsMaker   bool   `json:"isMaker"`
	ExecTime  string `json:"execTime"`
	ExecQty   string `json:"execQty"`
	ExecPrice string `json:"execPrice"`
}
