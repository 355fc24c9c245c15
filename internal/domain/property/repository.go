package property

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines property persistence.
type Repository interface {
	Create(ctx context.Context, p *Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*Property, error)
	// Update writes p only if the stored row still has the expected status and
	// p.Version; it returns errs.ErrStale otherwise and bumps p.Version on success.
	Update(ctx context.Context, p *Property, expected Status) error
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Property, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Property, error)
}
