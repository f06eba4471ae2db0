package domain

// OrderSide represents the side of a position as reported by the exchange (Buy or Sell).
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonMarket     CloseReason = "Market"    // Manual or market close, neither TP nor SL fired
	CloseReasonAmbiguous  CloseReason = "Ambiguous" // Both TP and SL orders fired in the inspected history
)

// InsertResult is the outcome of a write-once insert.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyExists
)

// String returns the string representation of the InsertResult.
func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// TimestampLayout is the UTC, second precision layout used for persisted timestamps.
const TimestampLayout = "2006-01-02 15:04:05"
