package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines reservation persistence.
type Repository interface {
	// Create fails with errs.ErrStale if the offer already has a reservation.
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	Update(ctx context.Context, r *Reservation, expected Status) error
	FindByOffer(ctx context.Context, offerID uuid.UUID) (*Reservation, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*Reservation, error)
	// ListLapsed returns ACTIVE reservations whose window ended before now.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}

// TransactionRepository defines transaction persistence.
type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByReservation(ctx context.Context, reservationID uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, t *Transaction, expected TxStatus) error
}
