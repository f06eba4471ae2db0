package reconciler

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

// Config holds the reconciliation parameters.
type Config struct {
	PageSize     int     // Closed positions per page, also used as the order-history page size
	MakerFeeRate float64 // e.g., 0.0001
	TakerFeeRate float64 // e.g., 0.0006
}

// Reconciler joins the closed-position, order-history and execution feeds into one
// TradeRecord per closed position. Work is strictly sequential.
type Reconciler struct {
	feed      ports.FeedClient
	logger    ports.Logger
	pageSize  int
	makerRate decimal.Decimal
	takerRate decimal.Decimal
	validate  *validator.Validate
}

// New creates a Reconciler reading from feed.
func New(feed ports.FeedClient, logger ports.Logger, cfg Config) (*Reconciler, error) {
	if feed == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Reconciler")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.MakerFeeRate < 0 || cfg.TakerFeeRate < 0 {
		return nil, fmt.Errorf("fee rates cannot be negative: %w", ports.ErrConfigurationError)
	}
	return &Reconciler{
		feed:      feed,
		logger:    logger,
		pageSize:  cfg.PageSize,
		makerRate: decimal.NewFromFloat(cfg.MakerFeeRate),
		takerRate: decimal.NewFromFloat(cfg.TakerFeeRate),
		validate:  validator.New(),
	}, nil
}

// ReconcilePage fetches the latest page of closed positions and reconciles each one.
// The returned error is set only when the page itself could not be fetched or a fatal
// error (authentication, cancellation) stopped the page early; per-position failures
// are carried in their Result.
func (r *Reconciler) ReconcilePage(ctx context.Context) ([]Result, error) {
	positions, err := r.feed.ListClosedPositions(ctx, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch closed positions: %w", err)
	}
	r.logger.Info(ctx, "Fetched closed positions", map[string]interface{}{"count": len(positions)})

	results := make([]Result, 0, len(positions))
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("reconciliation interrupted: %w: %w", ports.ErrContextCanceled, err)
		}

		rec, err := r.Reconcile(ctx, pos)
		results = append(results, Result{Position: pos, Record: rec, Err: err})
		if err != nil {
			r.logger.Error(ctx, err, "Failed to reconcile position", map[string]interface{}{
				"orderId": pos.OrderID,
				"symbol":  pos.Symbol,
			})
			if ports.IsFatal(err) {
				return results, err
			}
		}
	}
	return results, nil
}

// Reconcile builds the TradeRecord for a single closed position.
// Given identical feed responses the result is identical field by field.
func (r *Reconciler) Reconcile(ctx context.Context, pos domain.ClosedPosition) (*domain.TradeRecord, error) {
	if err := r.validate.Struct(pos); err != nil {
		return nil, newReconcileError(pos, StageValidate, fmt.Errorf("%w: %v", ports.ErrDataIntegrity, err))
	}

	p, err := parsePosition(pos)
	if err != nil {
		return nil, newReconcileError(pos, StageParse, err)
	}
	duration, err := durationSec(p.createdMs, p.updatedMs)
	if err != nil {
		return nil, newReconcileError(pos, StageParse, err)
	}

	execs, err := r.feed.ListExecutions(ctx, pos.Symbol, p.createdMs)
	if err != nil {
		return nil, newReconcileError(pos, StageExecutions, err)
	}
	isMaker := anyMaker(execs)
	fee := estimateFee(p.entry, p.qty, isMaker, r.makerRate, r.takerRate)

	orders, err := r.feed.ListOrders(ctx, pos.Symbol, r.pageSize)
	if err != nil {
		return nil, newReconcileError(pos, StageOrders, err)
	}
	tpHit, slHit, mtClose := exitFlags(orders)
	orderType, timeInForce := finalOrder(orders, pos.OrderID)

	rec := &domain.TradeRecord{
		ID:          pos.OrderID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Qty:         p.qty.InexactFloat64(),
		Entry:       p.entry.InexactFloat64(),
		Exit:        p.exit.InexactFloat64(),
		PNL:         p.pnl.InexactFloat64(),
		PNLPct:      pnlPct(p.pnl, p.entry, p.qty).InexactFloat64(),
		Fee:         fee.InexactFloat64(),
		Leverage:    p.leverage,
		DurationSec: duration,
		TPHit:       tpHit,
		SLHit:       slHit,
		MTClose:     mtClose,
		IsMaker:     isMaker,
		OrderType:   orderType,
		TimeInForce: timeInForce,
		NumFills:    len(execs),
		OpenedAt:    formatMillis(p.createdMs),
		ClosedAt:    formatMillis(p.updatedMs),
	}

	if tpHit && slHit {
		r.logger.Warn(ctx, "Both take-profit and stop orders fired in history", map[string]interface{}{
			"orderId": pos.OrderID,
			"symbol":  pos.Symbol,
		})
	}
	r.logger.Debug(ctx, "Position reconciled", map[string]interface{}{
		"orderId":     rec.ID,
		"symbol":      rec.Symbol,
		"side":        rec.Side,
		"pnl":         rec.PNL,
		"pnlPct":      rec.PNLPct,
		"fee":         rec.Fee,
		"fills":       rec.NumFills,
		"closeReason": rec.CloseReason(),
	})
	return rec, nil
}
