package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/integrity"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func getOrNil[T any](v *view[T], id uuid.UUID) T {
	row, _ := v.get(id)
	return row
}

type propertyRepo struct{ v *view[*property.Property] }

func (r *propertyRepo) Create(_ context.Context, p *property.Property) error {
	return r.v.create(p)
}

func (r *propertyRepo) GetByID(_ context.Context, id uuid.UUID) (*property.Property, error) {
	return getOrNil(r.v, id), nil
}

func (r *propertyRepo) Update(_ context.Context, p *property.Property, expected property.Status) error {
	next := *p
	next.Version = p.Version + 1
	err := r.v.update(&next, func(cur *property.Property) bool {
		return cur.Status() == expected && cur.Version == p.Version
	})
	if err != nil {
		return err
	}
	p.Version = next.Version
	return nil
}

func (r *propertyRepo) ListByStatus(_ context.Context, status property.Status, limit, offset int) ([]*property.Property, error) {
	rows := r.v.filter(func(p *property.Property) bool { return p.Status() == status })
	return page(rows, limit, offset), nil
}

func (r *propertyRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*property.Property, error) {
	out := make([]*property.Property, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.v.get(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type assignmentRepo struct{ v *view[*assignment.Assignment] }

func (r *assignmentRepo) Create(_ context.Context, a *assignment.Assignment) error {
	return r.v.create(a)
}

func (r *assignmentRepo) GetByID(_ context.Context, id uuid.UUID) (*assignment.Assignment, error) {
	return getOrNil(r.v, id), nil
}

func (r *assignmentRepo) Update(_ context.Context, a *assignment.Assignment, expected assignment.Status) error {
	next := *a
	next.Version = a.Version + 1
	err := r.v.update(&next, func(cur *assignment.Assignment) bool {
		return cur.Status() == expected && cur.Version == a.Version
	})
	if err != nil {
		return err
	}
	a.Version = next.Version
	return nil
}

func (r *assignmentRepo) FindActiveByProperty(_ context.Context, propertyID uuid.UUID) (*assignment.Assignment, error) {
	rows := r.v.filter(func(a *assignment.Assignment) bool { return a.PropertyID == propertyID && a.Active() })
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}

func (r *assignmentRepo) ListByAgent(_ context.Context, agentID uuid.UUID, limit, offset int) ([]*assignment.Assignment, error) {
	rows := r.v.filter(func(a *assignment.Assignment) bool { return a.AgentID == agentID })
	return page(rows, limit, offset), nil
}

func (r *assignmentRepo) ListBreached(_ context.Context, now time.Time, limit int) ([]*assignment.Assignment, error) {
	rows := r.v.filter(func(a *assignment.Assignment) bool { return a.Breached(now) })
	return page(rows, limit, 0), nil
}

type visitRepo struct{ v *view[*visit.Visit] }

func (r *visitRepo) Create(_ context.Context, v *visit.Visit) error {
	return r.v.create(v)
}

func (r *visitRepo) GetByID(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	return getOrNil(r.v, id), nil
}

func (r *visitRepo) Update(_ context.Context, v *visit.Visit, expected visit.Status) error {
	next := *v
	next.Version = v.Version + 1
	err := r.v.update(&next, func(cur *visit.Visit) bool {
		return cur.Status() == expected && cur.Version == v.Version
	})
	if err != nil {
		return err
	}
	v.Version = next.Version
	return nil
}

func (r *visitRepo) ListByProperty(_ context.Context, propertyID uuid.UUID, limit, offset int) ([]*visit.Visit, error) {
	rows := r.v.filter(func(v *visit.Visit) bool { return v.PropertyID == propertyID })
	return page(rows, limit, offset), nil
}

func (r *visitRepo) FindCompleted(_ context.Context, propertyID, buyerID uuid.UUID) (*visit.Visit, error) {
	rows := r.v.filter(func(v *visit.Visit) bool {
		return v.PropertyID == propertyID && v.BuyerID == buyerID && v.Status() == visit.StatusCompleted
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}

type offerRepo struct {
	v            *view[*offer.Offer]
	reservations *view[*reservation.Reservation]
}

func (r *offerRepo) Create(_ context.Context, o *offer.Offer) error {
	return r.v.create(o)
}

func (r *offerRepo) GetByID(_ context.Context, id uuid.UUID) (*offer.Offer, error) {
	return getOrNil(r.v, id), nil
}

func (r *offerRepo) Update(_ context.Context, o *offer.Offer, expected offer.Status) error {
	next := *o
	next.Version = o.Version + 1
	err := r.v.update(&next, func(cur *offer.Offer) bool {
		return cur.Status() == expected && cur.Version == o.Version
	})
	if err != nil {
		return err
	}
	o.Version = next.Version
	return nil
}

func (r *offerRepo) ListByProperty(_ context.Context, propertyID uuid.UUID, limit, offset int) ([]*offer.Offer, error) {
	rows := r.v.filter(func(o *offer.Offer) bool { return o.PropertyID == propertyID })
	return page(rows, limit, offset), nil
}

func (r *offerRepo) ListLapsed(_ context.Context, now time.Time, limit int) ([]*offer.Offer, error) {
	rows := r.v.filter(func(o *offer.Offer) bool { return o.Lapsed(now) })
	return page(rows, limit, 0), nil
}

func (r *offerRepo) ListOrphanedAcceptances(_ context.Context, now time.Time, limit, offset int) ([]*offer.Offer, error) {
	reserved := make(map[uuid.UUID]struct{})
	for _, res := range r.reservations.all() {
		reserved[res.OfferID] = struct{}{}
	}
	rows := r.v.filter(func(o *offer.Offer) bool {
		if o.Status() != offer.StatusAccepted || !now.After(o.ExpiresAt) {
			return false
		}
		_, ok := reserved[o.ID]
		return !ok
	})
	return page(rows, limit, offset), nil
}

type reservationRepo struct{ v *view[*reservation.Reservation] }

func (r *reservationRepo) Create(_ context.Context, res *reservation.Reservation) error {
	return r.v.create(res)
}

func (r *reservationRepo) GetByID(_ context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	return getOrNil(r.v, id), nil
}

func (r *reservationRepo) Update(_ context.Context, res *reservation.Reservation, expected reservation.Status) error {
	next := *res
	next.Version = res.Version + 1
	err := r.v.update(&next, func(cur *reservation.Reservation) bool {
		return cur.Status() == expected && cur.Version == res.Version
	})
	if err != nil {
		return err
	}
	res.Version = next.Version
	return nil
}

func (r *reservationRepo) FindByOffer(_ context.Context, offerID uuid.UUID) (*reservation.Reservation, error) {
	rows := r.v.filter(func(res *reservation.Reservation) bool { return res.OfferID == offerID })
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *reservationRepo) ListByProperty(_ context.Context, propertyID uuid.UUID) ([]*reservation.Reservation, error) {
	return r.v.filter(func(res *reservation.Reservation) bool { return res.PropertyID == propertyID }), nil
}

func (r *reservationRepo) ListLapsed(_ context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	rows := r.v.filter(func(res *reservation.Reservation) bool { return res.Lapsed(now) })
	return page(rows, limit, 0), nil
}

type transactionRepo struct{ v *view[*reservation.Transaction] }

func (r *transactionRepo) Create(_ context.Context, t *reservation.Transaction) error {
	return r.v.create(t)
}

func (r *transactionRepo) GetByID(_ context.Context, id uuid.UUID) (*reservation.Transaction, error) {
	return getOrNil(r.v, id), nil
}

func (r *transactionRepo) GetByReservation(_ context.Context, reservationID uuid.UUID) (*reservation.Transaction, error) {
	rows := r.v.filter(func(t *reservation.Transaction) bool { return t.ReservationID == reservationID })
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *transactionRepo) Update(_ context.Context, t *reservation.Transaction, expected reservation.TxStatus) error {
	next := *t
	next.Version = t.Version + 1
	err := r.v.update(&next, func(cur *reservation.Transaction) bool {
		return cur.Status() == expected && cur.Version == t.Version
	})
	if err != nil {
		return err
	}
	t.Version = next.Version
	return nil
}

type auditRepo struct{ tx *tx }

func (r *auditRepo) Append(_ context.Context, e *audit.Entry) error {
	c := *e
	r.tx.audit = append(r.tx.audit, &c)
	return r.tx.autoCommit()
}

func (r *auditRepo) entries() []*audit.Entry {
	s := r.tx.store
	s.mu.RLock()
	out := make([]*audit.Entry, 0, len(s.audit)+len(r.tx.audit))
	for _, e := range s.audit {
		c := *e
		out = append(out, &c)
	}
	s.mu.RUnlock()
	for _, e := range r.tx.audit {
		c := *e
		out = append(out, &c)
	}
	return out
}

func (r *auditRepo) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for _, e := range r.entries() {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *auditRepo) Query(_ context.Context, f audit.Filter, cursor *audit.Cursor, limit int) ([]*audit.Entry, *audit.Cursor, error) {
	all := r.entries()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	var out []*audit.Entry
	for _, e := range all {
		if !matches(e, f) {
			continue
		}
		if cursor != nil && !before(e, cursor) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	var next *audit.Cursor
	if limit > 0 && len(out) == limit {
		last := out[len(out)-1]
		next = &audit.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return out, next, nil
}

func before(e *audit.Entry, c *audit.Cursor) bool {
	if e.CreatedAt.Equal(c.CreatedAt) {
		return e.ID < c.ID
	}
	return e.CreatedAt.Before(c.CreatedAt)
}

func matches(e *audit.Entry, f audit.Filter) bool {
	switch {
	case f.EntityType != nil && e.EntityType != *f.EntityType:
		return false
	case f.EntityID != nil && e.EntityID != *f.EntityID:
		return false
	case f.ActorID != nil && e.ActorID != *f.ActorID:
		return false
	case f.Override != nil && e.Override != *f.Override:
		return false
	case f.StartTime != nil && e.CreatedAt.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.CreatedAt.After(*f.EndTime):
		return false
	}
	return true
}

type faultRepo struct{ v *view[*integrity.Fault] }

func (r *faultRepo) Record(_ context.Context, f *integrity.Fault) (bool, error) {
	existing := r.v.filter(func(o *integrity.Fault) bool { return o.Kind == f.Kind && o.EntityID == f.EntityID })
	if len(existing) > 0 {
		return false, nil
	}
	if err := r.v.create(f); err != nil {
		return false, err
	}
	return true, nil
}

func (r *faultRepo) GetByID(_ context.Context, id uuid.UUID) (*integrity.Fault, error) {
	return getOrNil(r.v, id), nil
}

func (r *faultRepo) List(_ context.Context, unresolvedOnly bool, limit, offset int) ([]*integrity.Fault, error) {
	rows := r.v.filter(func(f *integrity.Fault) bool { return !unresolvedOnly || !f.Resolved() })
	return page(rows, limit, offset), nil
}

func (r *faultRepo) Resolve(_ context.Context, id, by uuid.UUID, note string, now time.Time) error {
	f, ok := r.v.get(id)
	if !ok {
		return errs.NotFound("integrity fault", id)
	}
	f.ResolvedAt = &now
	f.ResolvedBy = &by
	f.ResolutionNote = &note
	return r.v.update(f, func(cur *integrity.Fault) bool { return !cur.Resolved() })
}

type agentRepo struct{ v *view[*agent.Profile] }

func (r *agentRepo) Get(_ context.Context, id uuid.UUID) (*agent.Profile, error) {
	return getOrNil(r.v, id), nil
}

func (r *agentRepo) Save(_ context.Context, p *agent.Profile) error {
	return r.v.put(p)
}
