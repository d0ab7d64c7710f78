package ports

import (
	"context"

	"quantbt/internal/domain"
)

// RunRepository defines the interface for storing and retrieving backtest
// run summaries.
type RunRepository interface {
	// Save persists a run record and returns its assigned ID.
	Save(ctx context.Context, rec *domain.RunRecord) (int64, error)
	// FindByID retrieves a run record by its database ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.RunRecord, error)
	// List retrieves the most recent run records, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*domain.RunRecord, error)
	// Delete removes a run record by its database ID.
	Delete(ctx context.Context, id int64) error
}
