package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines assignment persistence.
type Repository interface {
	// Create fails with errs.ErrStale when the property already has an active assignment.
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)
	Update(ctx context.Context, a *Assignment, expected Status) error
	FindActiveByProperty(ctx context.Context, propertyID uuid.UUID) (*Assignment, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*Assignment, error)
	// ListBreached returns accepted, unreleased assignments whose deadline passed
	// before now and whose breach has not been reported.
	ListBreached(ctx context.Context, now time.Time, limit int) ([]*Assignment, error)
}
