package visit

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines visit persistence.
type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit, expected Status) error
	ListByProperty(ctx context.Context, propertyID uuid.UUID, limit, offset int) ([]*Visit, error)
	// FindCompleted returns the buyer's most recent COMPLETED visit to the property, or nil.
	FindCompleted(ctx context.Context, propertyID, buyerID uuid.UUID) (*Visit, error)
}
