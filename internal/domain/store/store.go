package store

import (
	"context"

	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/integrity"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// Repos groups the repositories bound to one unit of work.
type Repos struct {
	Properties   property.Repository
	Assignments  assignment.Repository
	Visits       visit.Repository
	Offers       offer.Repository
	Reservations reservation.Repository
	Transactions reservation.TransactionRepository
	Audit        audit.Repository
	Faults       integrity.Repository
	Agents       agent.Directory
}

// Store opens transactional units. Either every write in fn is applied or none is;
// a conditional update that lost a race surfaces as errs.ErrStale.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// Repos returns repositories for reads outside a transaction.
	Repos() Repos
}
