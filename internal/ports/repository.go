package ports

import (
	"context"

	"tradeJournal/internal/domain"
)

// TradeRepository is the append-only store of reconciled trades.
// No update or delete operation is exposed.
type TradeRepository interface {
	// Insert writes rec once. A record whose ID is already stored is left untouched
	// and reported as domain.AlreadyExists with a nil error.
	Insert(ctx context.Context, rec *domain.TradeRecord) (domain.InsertResult, error)
	// FindByID retrieves a trade by exchange order id.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.TradeRecord, error)
	// FindRecent retrieves the most recently closed trades, up to limit.
	FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)
	// Count returns the number of stored trades.
	Count(ctx context.Context) (int, error)
	// Close releases the underlying connection.
	Close() error
}
