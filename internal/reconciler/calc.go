package reconciler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

var hundred = decimal.NewFromInt(100)

// Markers searched in an order's type label.
const (
	takeProfitMarker = "TakeProfit"
	stopMarker       = "Stop"
)

const (
	unknownOrderType   = "Unknown"
	defaultTimeInForce = "GTC"
)

// parsedPosition holds the numeric fields of a ClosedPosition.
type parsedPosition struct {
	qty       decimal.Decimal
	entry     decimal.Decimal
	exit      decimal.Decimal
	pnl       decimal.Decimal
	leverage  int
	createdMs int64
	updatedMs int64
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed %s '%s': %v", ports.ErrDataIntegrity, field, value, err)
	}
	return d, nil
}

func parseMillis(field, value string) (int64, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %s '%s': %v", ports.ErrDataIntegrity, field, value, err)
	}
	return ms, nil
}

func parsePosition(pos domain.ClosedPosition) (*parsedPosition, error) {
	var (
		p   parsedPosition
		err error
	)
	if p.qty, err = parseDecimal("qty", pos.Qty); err != nil {
		return nil, err
	}
	if p.entry, err = parseDecimal("avgEntryPrice", pos.AvgEntryPrice); err != nil {
		return nil, err
	}
	if p.exit, err = parseDecimal("avgExitPrice", pos.AvgExitPrice); err != nil {
		return nil, err
	}
	if p.pnl, err = parseDecimal("closedPnl", pos.ClosedPnl); err != nil {
		return nil, err
	}

	p.leverage = 1
	if strings.TrimSpace(pos.Leverage) != "" {
		lev, err := parseDecimal("leverage", pos.Leverage)
		if err != nil {
			return nil, err
		}
		p.leverage = int(lev.IntPart())
	}

	if p.createdMs, err = parseMillis("createdTime", pos.CreatedTime); err != nil {
		return nil, err
	}
	if p.updatedMs, err = parseMillis("updatedTime", pos.UpdatedTime); err != nil {
		return nil, err
	}
	return &p, nil
}

// durationSec returns whole seconds between open and close. A close before the open
// is reported as a data-integrity error rather than clamped.
func durationSec(createdMs, updatedMs int64) (int64, error) {
	diff := updatedMs - createdMs
	if diff < 0 {
		return 0, fmt.Errorf("%w: position closed %dms before it was opened", ports.ErrDataIntegrity, -diff)
	}
	return diff / 1000, nil
}

// pnlPct is 100 * pnl / (entry * qty), or 0 when the notional is zero.
func pnlPct(pnl, entry, qty decimal.Decimal) decimal.Decimal {
	notional := entry.Mul(qty)
	if notional.IsZero() {
		return decimal.Zero
	}
	return pnl.Mul(hundred).Div(notional)
}

// estimateFee applies the flat rate for the trade's liquidity class to the entry notional.
// The exchange's charged fee is not part of the feeds, so this is an estimate.
func estimateFee(entry, qty decimal.Decimal, isMaker bool, makerRate, takerRate decimal.Decimal) decimal.Decimal {
	rate := takerRate
	if isMaker {
		rate = makerRate
	}
	return entry.Mul(qty).Mul(rate)
}

// anyMaker reports whether at least one fill added liquidity.
func anyMaker(execs []domain.Execution) bool {
	for _, e := range execs {
		if e.IsMaker {
			return true
		}
	}
	return false
}

// exitFlags scans the symbol's order history for fired TP and stop orders.
// Both flags may be true; mtClose is their complement.
func exitFlags(orders []domain.OrderRecord) (tpHit, slHit, mtClose bool) {
	for _, o := range orders {
		if !o.Fired() {
			continue
		}
		label := o.TypeLabel()
		if strings.Contains(label, takeProfitMarker) {
			tpHit = true
		}
		if strings.Contains(label, stopMarker) {
			slHit = true
		}
	}
	return tpHit, slHit, !(tpHit || slHit)
}

// finalOrder returns the type and time in force of the order that closed the position.
// The order may have aged out of the history page, which is not an error.
func finalOrder(orders []domain.OrderRecord, orderID string) (orderType, timeInForce string) {
	for _, o := range orders {
		if o.OrderID != orderID {
			continue
		}
		orderType, timeInForce = o.OrderType, o.TimeInForce
		if orderType == "" {
			orderType = unknownOrderType
		}
		if timeInForce == "" {
			timeInForce = defaultTimeInForce
		}
		return orderType, timeInForce
	}
	return unknownOrderType, defaultTimeInForce
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(domain.TimestampLayout)
}
