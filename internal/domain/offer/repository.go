package offer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines offer persistence.
type Repository interface {
	Create(ctx context.Context, o *Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	Update(ctx context.Context, o *Offer, expected Status) error
	ListByProperty(ctx context.Context, propertyID uuid.UUID, limit, offset int) ([]*Offer, error)
	// ListLapsed returns PENDING or COUNTERED offers whose expiry is before now.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]*Offer, error)
	// ListOrphanedAcceptances returns ACCEPTED offers whose reservation window
	// ended before now without any reservation referencing them.
	ListOrphanedAcceptances(ctx context.Context, now time.Time, limit, offset int) ([]*Offer, error)
}
