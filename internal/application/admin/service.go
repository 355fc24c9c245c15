package admin

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/integrity"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// Service is the admin surface: forced transitions, integrity faults and the agent roster.
type Service struct {
	runner *txn.Runner
	logger zerolog.Logger
}

func NewService(runner *txn.Runner, logger zerolog.Logger) *Service {
	return &Service{
		runner: runner,
		logger: logger.With().Str("service", "admin").Logger(),
	}
}

// OverrideResult describes a forced transition.
type OverrideResult struct {
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
}

// overrideFn forces one entity into target inside the unit and returns the
// previous state and the property it belongs to.
type overrideFn func(u *txn.Unit, id uuid.UUID, target string) (from string, propertyID uuid.UUID, err error)

var overriders = map[string]overrideFn{
	property.EntityType:                overrideProperty,
	assignment.EntityType:              overrideAssignment,
	visit.EntityType:                   overrideVisit,
	offer.EntityType:                   overrideOffer,
	reservation.EntityType:             overrideReservation,
	reservation.RegistrationEntityType: overrideRegistration,
	reservation.TransactionEntityType:  overrideTransaction,
}

// Override forces any entity into any declared state of its machine. The graph
// is bypassed but the reason is mandatory and the entry is flagged in the audit log.
func (s *Service) Override(ctx context.Context, actor user.Actor, entityType string, id uuid.UUID, target, reason string) (*OverrideResult, error) {
	if _, err := access.Check(actor, access.ActOverride, access.Subject{}); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < audit.MinOverrideReason {
		return nil, errs.Validation("override reason must be at least %d characters", audit.MinOverrideReason)
	}
	entityType = strings.ToUpper(strings.TrimSpace(entityType))
	fn, ok := overriders[entityType]
	if !ok {
		return nil, errs.Validation("unknown entity type %q", entityType)
	}

	var result *OverrideResult
	err := s.runner.Run(ctx, "admin.override", actor, func(u *txn.Unit) error {
		from, propertyID, err := fn(u, id, target)
		if err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     entityType,
			EntityID:   id,
			PropertyID: propertyID,
			From:       from,
			To:         target,
			Reason:     reason,
			Override:   true,
		})
		result = &OverrideResult{EntityType: entityType, EntityID: id, From: from, To: target}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn().
		Str("entityType", entityType).
		Str("entityId", id.String()).
		Str("from", result.From).
		Str("to", target).
		Str("admin", actor.ID.String()).
		Str("reason", reason).
		Msg("admin override applied")
	return result, nil
}

func overrideProperty(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	p, err := u.Repos.Properties.GetByID(u.Context(), id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if p == nil {
		return "", uuid.Nil, errs.NotFound("property", id)
	}
	from := p.Status()
	if err := p.Override(property.Status(target)); err != nil {
		return "", uuid.Nil, err
	}
	p.UpdatedAt = u.Now
	return string(from), p.ID, u.Repos.Properties.Update(u.Context(), p, from)
}

func overrideAssignment(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	a, err := u.Repos.Assignments.GetByID(u.Context(), id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if a == nil {
		return "", uuid.Nil, errs.NotFound("assignment", id)
	}
	from := a.Status()
	if err := a.Override(assignment.Status(target)); err != nil {
		return "", uuid.Nil, err
	}
	a.UpdatedAt = u.Now
	return string(from), a.PropertyID, u.Repos.Assignments.Update(u.Context(), a, from)
}

func overrideVisit(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	v, err := u.Repos.Visits.GetByID(u.Context(), id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if v == nil {
		return "", uuid.Nil, errs.NotFound("visit", id)
	}
	from := v.Status()
	if err := v.Override(visit.Status(target)); err != nil {
		return "", uuid.Nil, err
	}
	v.UpdatedAt = u.Now
	return string(from), v.PropertyID, u.Repos.Visits.Update(u.Context(), v, from)
}

func overrideOffer(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	o, err := u.Repos.Offers.GetByID(u.Context(), id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if o == nil {
		return "", uuid.Nil, errs.NotFound("offer", id)
	}
	from := o.Status()
	if err := o.Override(offer.Status(target)); err != nil {
		return "", uuid.Nil, err
	}
	o.UpdatedAt = u.Now
	return string(from), o.PropertyID, u.Repos.Offers.Update(u.Context(), o, from)
}

func loadReservation(u *txn.Unit, id uuid.UUID) (*reservation.Reservation, error) {
	r, err := u.Repos.Reservations.GetByID(u.Context(), id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NotFound("reservation", id)
	}
	return r, nil
}

func overrideReservation(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	r, err := loadReservation(u, id)
	if err != nil {
		return "", uuid.Nil, err
	}
	from := r.Status()
	if err := r.Override(reservation.Status(target)); err != nil {
		return "", uuid.Nil, err
	}
	r.UpdatedAt = u.Now
	return string(from), r.PropertyID, u.Repos.Reservations.Update(u.Context(), r, from)
}

// overrideRegistration moves the registration sub-flow of a reservation.
func overrideRegistration(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	r, err := loadReservation(u, id)
	if err != nil {
		return "", uuid.Nil, err
	}
	stage := reservation.Stage(target)
	if !reservation.ValidStage(stage) {
		return "", uuid.Nil, errs.Validation("unknown registration stage %q", target)
	}
	from := r.Stage
	r.Stage = stage
	r.UpdatedAt = u.Now
	return string(from), r.PropertyID, u.Repos.Reservations.Update(u.Context(), r, r.Status())
}

func overrideTransaction(u *txn.Unit, id uuid.UUID, target string) (string, uuid.UUID, error) {
	t, err := u.Repos.Transactions.GetByID(u.Context(), id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if t == nil {
		return "", uuid.Nil, errs.NotFound("transaction", id)
	}
	from := t.Status()
	if err := t.Override(reservation.TxStatus(target)); err != nil {
		return "", uuid.Nil, err
	}
	t.UpdatedAt = u.Now
	return string(from), t.PropertyID, u.Repos.Transactions.Update(u.Context(), t, from)
}

func (s *Service) ListIntegrityFaults(ctx context.Context, actor user.Actor, unresolvedOnly bool, limit, offset int) ([]*integrity.Fault, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("integrity faults are visible to admins only")
	}
	return s.runner.Repos().Faults.List(ctx, unresolvedOnly, limit, offset)
}

// ResolveFault closes a fault after an admin dealt with it, usually through Override.
func (s *Service) ResolveFault(ctx context.Context, actor user.Actor, id uuid.UUID, note string) (*integrity.Fault, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins resolve integrity faults")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, errs.Validation("a resolution note is required")
	}
	var out *integrity.Fault
	err := s.runner.Run(ctx, "admin.resolve_fault", actor, func(u *txn.Unit) error {
		f, err := u.Repos.Faults.GetByID(u.Context(), id)
		if err != nil {
			return err
		}
		if f == nil {
			return errs.NotFound("fault", id)
		}
		if f.Resolved() {
			return errs.New(errs.KindInvalidTransition, "fault %s is already resolved", id)
		}
		if err := u.Repos.Faults.Resolve(u.Context(), id, actor.ID, note, u.Now); err != nil {
			return err
		}
		now := u.Now
		f.ResolvedAt = &now
		f.ResolvedBy = &actor.ID
		f.ResolutionNote = &note
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("faultId", id.String()).Str("admin", actor.ID.String()).Msg("integrity fault resolved")
	return out, nil
}

// AgentInput is the admin-maintained part of an agent profile.
type AgentInput struct {
	Name     string    `json:"name"`
	Verified bool      `json:"verified"`
	Base     geo.Point `json:"base"`
}

// RegisterAgent creates or updates an agent profile in the directory.
func (s *Service) RegisterAgent(ctx context.Context, actor user.Actor, id uuid.UUID, in AgentInput) (*agent.Profile, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins manage agents")
	}
	if id == uuid.Nil {
		return nil, errs.Validation("agent id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.Validation("agent name is required")
	}
	if !in.Base.Valid() {
		return nil, errs.Validation("agent base location out of range")
	}
	profile := &agent.Profile{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Verified:  in.Verified,
		Base:      in.Base,
		UpdatedAt: s.runner.Now().Truncate(time.Second),
	}
	if err := s.runner.Repos().Agents.Save(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info().Str("agentId", id.String()).Bool("verified", in.Verified).Msg("agent profile saved")
	return profile, nil
}
