package reconciler

import (
	"fmt"

	"tradeJournal/internal/domain"
)

// Reconciliation stages reported in ReconcileError.
const (
	StageValidate   = "validate"
	StageParse      = "parse"
	StageExecutions = "executions"
	StageOrders     = "orders"
)

// ReconcileError is the failure of a single position. It never aborts the page.
type ReconcileError struct {
	OrderID string
	Symbol  string
	Stage   string
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile error [%s] %s at %s: %v", e.OrderID, e.Symbol, e.Stage, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func newReconcileError(pos domain.ClosedPosition, stage string, err error) *ReconcileError {
	return &ReconcileError{
		OrderID: pos.OrderID,
		Symbol:  pos.Symbol,
		Stage:   stage,
		Err:     err,
	}
}

// Result is the outcome of reconciling one closed position: exactly one of Record
// and Err is set.
type Result struct {
	Position domain.ClosedPosition
	Record   *domain.TradeRecord
	Err      error
}

// OK reports whether the position produced a record.
func (r Result) OK() bool {
	return r.Err == nil && r.Record != nil
}
