package ports

import (
	"context"
	"time"

	"tradeJournal/internal/domain"
)

// FeedClient gives read-only access to the three account feeds used for reconciliation.
// Every call returns the most recent window only; an empty slice means the exchange has
// no data and is not an error.
type FeedClient interface {
	// ListClosedPositions returns the latest closed positions, newest first, up to limit.
	ListClosedPositions(ctx context.Context, limit int) ([]domain.ClosedPosition, error)

	// ListOrders returns the recent order history for symbol, up to limit.
	ListOrders(ctx context.Context, symbol string, limit int) ([]domain.OrderRecord, error)

	// ListExecutions returns fills for symbol executed at or after sinceMs (epoch millis).
	ListExecutions(ctx context.Context, symbol string, sinceMs int64) ([]domain.Execution, error)

	// ServerTime retrieves the current server time from the exchange.
	ServerTime(ctx context.Context) (time.Time, error)
}
