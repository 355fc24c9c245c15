package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/integrity"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// Store is an in-process store.Store with optimistic transactions: reads see
// committed rows plus the transaction's own writes, and commit fails with
// errs.ErrStale if any touched row changed since it was read.
type Store struct {
	mu sync.RWMutex

	properties   *table[*property.Property]
	assignments  *table[*assignment.Assignment]
	visits       *table[*visit.Visit]
	offers       *table[*offer.Offer]
	reservations *table[*reservation.Reservation]
	transactions *table[*reservation.Transaction]
	faults       *table[*integrity.Fault]
	agents       *table[*agent.Profile]
	audit        []*audit.Entry
	auditSeq     int64
}

func NewStore() *Store {
	return &Store{
		properties: newTable("property",
			func(p *property.Property) uuid.UUID { return p.ID },
			func(p *property.Property) int { return p.Version },
			func(p *property.Property) *property.Property { c := *p; return &c },
			nil),
		assignments: newTable("assignment",
			func(a *assignment.Assignment) uuid.UUID { return a.ID },
			func(a *assignment.Assignment) int { return a.Version },
			func(a *assignment.Assignment) *assignment.Assignment { c := *a; return &c },
			func(a, b *assignment.Assignment) bool {
				return a.PropertyID == b.PropertyID && a.Active() && b.Active()
			}),
		visits: newTable("visit",
			func(v *visit.Visit) uuid.UUID { return v.ID },
			func(v *visit.Visit) int { return v.Version },
			func(v *visit.Visit) *visit.Visit { c := *v; return &c },
			nil),
		offers: newTable("offer",
			func(o *offer.Offer) uuid.UUID { return o.ID },
			func(o *offer.Offer) int { return o.Version },
			func(o *offer.Offer) *offer.Offer { c := *o; return &c },
			nil),
		reservations: newTable("reservation",
			func(r *reservation.Reservation) uuid.UUID { return r.ID },
			func(r *reservation.Reservation) int { return r.Version },
			func(r *reservation.Reservation) *reservation.Reservation { c := *r; return &c },
			func(a, b *reservation.Reservation) bool {
				if a.OfferID == b.OfferID {
					return true
				}
				return a.PropertyID == b.PropertyID &&
					a.Status() == reservation.StatusActive && b.Status() == reservation.StatusActive
			}),
		transactions: newTable("transaction",
			func(t *reservation.Transaction) uuid.UUID { return t.ID },
			func(t *reservation.Transaction) int { return t.Version },
			func(t *reservation.Transaction) *reservation.Transaction { c := *t; return &c },
			func(a, b *reservation.Transaction) bool { return a.ReservationID == b.ReservationID }),
		faults: newTable("integrity fault",
			func(f *integrity.Fault) uuid.UUID { return f.ID },
			func(f *integrity.Fault) int {
				if f.Resolved() {
					return 1
				}
				return 0
			},
			func(f *integrity.Fault) *integrity.Fault { c := *f; return &c },
			func(a, b *integrity.Fault) bool { return a.Kind == b.Kind && a.EntityID == b.EntityID }),
		agents: newTable("agent",
			func(p *agent.Profile) uuid.UUID { return p.ID },
			func(p *agent.Profile) int { return 0 },
			func(p *agent.Profile) *agent.Profile { c := *p; return &c },
			nil),
	}
}

// WithinTx runs fn against a fresh overlay and commits it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	t := s.begin(false)
	if err := fn(ctx, t.repos()); err != nil {
		return err
	}
	return t.commit()
}

// Repos returns repositories whose writes commit immediately.
func (s *Store) Repos() store.Repos {
	return s.begin(true).repos()
}

type committer interface {
	validate() error
	apply()
	reset()
}

type tx struct {
	store *Store
	auto  bool
	views []committer

	properties   *view[*property.Property]
	assignments  *view[*assignment.Assignment]
	visits       *view[*visit.Visit]
	offers       *view[*offer.Offer]
	reservations *view[*reservation.Reservation]
	transactions *view[*reservation.Transaction]
	faults       *view[*integrity.Fault]
	agents       *view[*agent.Profile]
	audit        []*audit.Entry
}

func (s *Store) begin(auto bool) *tx {
	t := &tx{store: s, auto: auto}
	t.properties = newView(t, s.properties)
	t.assignments = newView(t, s.assignments)
	t.visits = newView(t, s.visits)
	t.offers = newView(t, s.offers)
	t.reservations = newView(t, s.reservations)
	t.transactions = newView(t, s.transactions)
	t.faults = newView(t, s.faults)
	t.agents = newView(t, s.agents)
	return t
}

func (t *tx) repos() store.Repos {
	return store.Repos{
		Properties:   &propertyRepo{v: t.properties},
		Assignments:  &assignmentRepo{v: t.assignments},
		Visits:       &visitRepo{v: t.visits},
		Offers:       &offerRepo{v: t.offers, reservations: t.reservations},
		Reservations: &reservationRepo{v: t.reservations},
		Transactions: &transactionRepo{v: t.transactions},
		Audit:        &auditRepo{tx: t},
		Faults:       &faultRepo{v: t.faults},
		Agents:       &agentRepo{v: t.agents},
	}
}

func (t *tx) autoCommit() error {
	if !t.auto {
		return nil
	}
	return t.commit()
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range t.views {
		if err := v.validate(); err != nil {
			for _, v := range t.views {
				v.reset()
			}
			t.audit = nil
			return err
		}
	}
	for _, v := range t.views {
		v.apply()
	}
	for _, e := range t.audit {
		s.auditSeq++
		e.ID = s.auditSeq
		c := *e
		s.audit = append(s.audit, &c)
	}
	t.audit = nil
	return nil
}
