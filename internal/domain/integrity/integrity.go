package integrity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names a detected invariant violation.
type Kind string

const (
	// KindOrphanedAcceptance is an ACCEPTED offer whose reservation window
	// ended without a reservation.
	KindOrphanedAcceptance Kind = "ORPHANED_ACCEPTANCE"
)

// Fault is a data-integrity problem surfaced to admins. It is never repaired automatically.
type Fault struct {
	ID             uuid.UUID  `json:"id"`
	Kind           Kind       `json:"kind"`
	EntityType     string     `json:"entityType"`
	EntityID       uuid.UUID  `json:"entityId"`
	PropertyID     uuid.UUID  `json:"propertyId"`
	Detail         string     `json:"detail"`
	DetectedAt     time.Time  `json:"detectedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolutionNote *string    `json:"resolutionNote,omitempty"`
}

func NewFault(kind Kind, entityType string, entityID, propertyID uuid.UUID, detail string, now time.Time) *Fault {
	return &Fault{
		ID:         uuid.New(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		PropertyID: propertyID,
		Detail:     detail,
		DetectedAt: now,
	}
}

func (f *Fault) Resolved() bool { return f.ResolvedAt != nil }

// Repository defines fault persistence.
type Repository interface {
	// Record stores the fault unless one of the same kind already exists for the
	// entity. It reports whether a new row was written.
	Record(ctx context.Context, f *Fault) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Fault, error)
	List(ctx context.Context, unresolvedOnly bool, limit, offset int) ([]*Fault, error)
	// Resolve marks an open fault resolved; it returns errs.ErrStale if it was already resolved.
	Resolve(ctx context.Context, id, by uuid.UUID, note string, now time.Time) error
}
