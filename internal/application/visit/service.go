package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/otp"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// Service drives visit scheduling and on-site check-in.
type Service struct {
	runner    *txn.Runner
	otp       otp.Issuer
	maxRounds int
	logger    zerolog.Logger
}

func NewService(runner *txn.Runner, issuer otp.Issuer, maxCounterRounds int, logger zerolog.Logger) *Service {
	return &Service{
		runner:    runner,
		otp:       issuer,
		maxRounds: maxCounterRounds,
		logger:    logger.With().Str("service", "visit").Logger(),
	}
}

// scope is a visit with the property it belongs to.
type scope struct {
	v *visit.Visit
	p *property.Property
}

func (sc scope) subject() access.Subject {
	subj := access.Subject{SellerID: sc.p.SellerID, BuyerID: sc.v.BuyerID, AgentID: sc.v.AgentID}
	if sc.p.AssignedAgentID != nil {
		subj.AgentID = *sc.p.AssignedAgentID
	}
	return subj
}

func load(u *txn.Unit, id uuid.UUID) (scope, error) {
	v, err := u.Repos.Visits.GetByID(u.Context(), id)
	if err != nil {
		return scope{}, err
	}
	if v == nil {
		return scope{}, errs.NotFound("visit", id)
	}
	p, err := u.Repos.Properties.GetByID(u.Context(), v.PropertyID)
	if err != nil {
		return scope{}, err
	}
	if p == nil {
		return scope{}, errs.NotFound("property", v.PropertyID)
	}
	return scope{v: v, p: p}, nil
}

func (s *Service) save(u *txn.Unit, sc scope, from visit.Status, reason string, record bool) error {
	sc.v.UpdatedAt = u.Now
	if err := u.Repos.Visits.Update(u.Context(), sc.v, from); err != nil {
		return err
	}
	// Recorded even when the status is unchanged, as for COUNTERED to COUNTERED.
	if record {
		u.Record(txn.Transition{
			Entity:     visit.EntityType,
			EntityID:   sc.v.ID,
			PropertyID: sc.p.ID,
			From:       string(from),
			To:         string(sc.v.Status()),
			Reason:     reason,
			Recipients: []uuid.UUID{sc.v.BuyerID, sc.v.AgentID},
		})
	}
	return nil
}

// mutate loads a visit, authorizes the action and persists whatever fn changed.
// Every successful call records a transition.
func (s *Service) mutate(ctx context.Context, name string, actor user.Actor, id uuid.UUID, action access.Action, reason string, fn func(u *txn.Unit, sc scope, party access.Party) error) (*visit.Visit, error) {
	return s.step(ctx, name, actor, id, action, reason, true, fn)
}

func (s *Service) step(ctx context.Context, name string, actor user.Actor, id uuid.UUID, action access.Action, reason string, record bool, fn func(u *txn.Unit, sc scope, party access.Party) error) (*visit.Visit, error) {
	var out *visit.Visit
	err := s.runner.Run(ctx, name, actor, func(u *txn.Unit) error {
		sc, err := load(u, id)
		if err != nil {
			return err
		}
		party, err := access.Check(actor, action, sc.subject())
		if err != nil {
			return err
		}
		from := sc.v.Status()
		if err := fn(u, sc, party); err != nil {
			return err
		}
		if err := s.save(u, sc, from, reason, record); err != nil {
			return err
		}
		out = sc.v
		return nil
	})
	return out, err
}

func side(party access.Party) visit.Side {
	if party == access.PartyBuyer {
		return visit.SideBuyer
	}
	return visit.SideAgent
}

// RequestVisit asks the property's agent for a viewing. The property must be ACTIVE.
func (s *Service) RequestVisit(ctx context.Context, actor user.Actor, propertyID uuid.UUID, preferred time.Time) (*visit.Visit, error) {
	if _, err := access.Check(actor, access.ActRequestVisit, access.Subject{BuyerID: actor.ID}); err != nil {
		return nil, err
	}
	var out *visit.Visit
	err := s.runner.Run(ctx, "visit.request", actor, func(u *txn.Unit) error {
		p, err := u.Repos.Properties.GetByID(u.Context(), propertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return errs.NotFound("property", propertyID)
		}
		if p.Status() != property.StatusActive || p.AssignedAgentID == nil {
			return errs.New(errs.KindPropertyNotBookable, "property is %s", p.Status())
		}
		if p.SellerID == actor.ID {
			return errs.NotAuthorized("sellers cannot book visits to their own property")
		}
		v, err := visit.New(p.ID, actor.ID, *p.AssignedAgentID, preferred, u.Now)
		if err != nil {
			return err
		}
		if err := u.Repos.Visits.Create(u.Context(), v); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     visit.EntityType,
			EntityID:   v.ID,
			PropertyID: p.ID,
			To:         string(v.Status()),
			Recipients: []uuid.UUID{v.BuyerID, v.AgentID},
		})
		out = v
		return nil
	})
	return out, err
}

func (s *Service) ApproveVisit(ctx context.Context, actor user.Actor, visitID uuid.UUID, confirmed time.Time) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.approve", actor, visitID, access.ActDecideVisit, "", func(u *txn.Unit, sc scope, _ access.Party) error {
		if confirmed.Before(u.Now) {
			return errs.Validation("confirmed date must be in the future")
		}
		return sc.v.Approve(confirmed)
	})
}

func (s *Service) RejectVisit(ctx context.Context, actor user.Actor, visitID uuid.UUID, reason string) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.reject", actor, visitID, access.ActDecideVisit, reason, func(_ *txn.Unit, sc scope, _ access.Party) error {
		return sc.v.Reject(reason)
	})
}

// CounterVisit proposes another date. Buyer and agent alternate.
func (s *Service) CounterVisit(ctx context.Context, actor user.Actor, visitID uuid.UUID, date time.Time, message string) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.counter", actor, visitID, access.ActCounterVisit, message, func(u *txn.Unit, sc scope, party access.Party) error {
		if date.Before(u.Now) {
			return errs.Validation("counter date must be in the future")
		}
		return sc.v.Counter(side(party), date, message, s.maxRounds)
	})
}

// RespondToVisitCounter lets the other party accept or refuse the counter date.
func (s *Service) RespondToVisitCounter(ctx context.Context, actor user.Actor, visitID uuid.UUID, accept bool) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.respond_counter", actor, visitID, access.ActRespondVisitCounter, "", func(_ *txn.Unit, sc scope, party access.Party) error {
		return sc.v.RespondToCounter(side(party), accept)
	})
}

func (s *Service) CancelVisit(ctx context.Context, actor user.Actor, visitID uuid.UUID, reason string) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.cancel", actor, visitID, access.ActCancelVisit, reason, func(_ *txn.Unit, sc scope, _ access.Party) error {
		return sc.v.Cancel(reason)
	})
}

// StartCheckIn checks the agent's reading against the geofence and sends the
// buyer a one-time code.
func (s *Service) StartCheckIn(ctx context.Context, actor user.Actor, visitID uuid.UUID, reading geo.Point) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.check_in", actor, visitID, access.ActCheckIn, "", func(u *txn.Unit, sc scope, _ access.Party) error {
		if sc.v.Status() != visit.StatusApproved {
			return errs.InvalidTransition("visit", sc.v.Status(), visit.StatusCheckedIn)
		}
		distance, err := s.geofence(sc.p, reading)
		if err != nil {
			return err
		}
		// The code goes out before the unit commits. If the commit fails the
		// buyer holds a code with no stored hash and the agent starts again.
		issued, err := s.otp.Issue(u.Context(), otp.ChannelEmail, sc.v.BuyerID)
		if err != nil {
			return err
		}
		return sc.v.CheckIn(distance, issued.Hash, issued.ExpiresAt, u.Now)
	})
}

// ReissueCheckInOTP sends a new code after the previous one expired. The visit
// stays CHECKED_IN so no transition is recorded.
func (s *Service) ReissueCheckInOTP(ctx context.Context, actor user.Actor, visitID uuid.UUID, reading geo.Point) (*visit.Visit, error) {
	return s.step(ctx, "visit.reissue_otp", actor, visitID, access.ActCheckIn, "", false, func(u *txn.Unit, sc scope, _ access.Party) error {
		if sc.v.Status() != visit.StatusCheckedIn {
			return errs.New(errs.KindInvalidTransition, "visit %s has no check-in code to reissue", sc.v.Status())
		}
		if !sc.v.OTPExpired(u.Now) {
			return errs.New(errs.KindInvalidTransition, "the current code is still valid")
		}
		if _, err := s.geofence(sc.p, reading); err != nil {
			return err
		}
		// Delivered before commit, as in StartCheckIn.
		issued, err := s.otp.Issue(u.Context(), otp.ChannelEmail, sc.v.BuyerID)
		if err != nil {
			return err
		}
		return sc.v.ReissueOTP(issued.Hash, issued.ExpiresAt)
	})
}

// VerifyCheckIn completes the visit when the buyer submits a valid, unexpired code.
// A wrong code changes nothing and may be retried until the code expires.
func (s *Service) VerifyCheckIn(ctx context.Context, actor user.Actor, visitID uuid.UUID, code string) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.verify_check_in", actor, visitID, access.ActVerifyCheckIn, "", func(u *txn.Unit, sc scope, _ access.Party) error {
		if sc.v.Status() != visit.StatusCheckedIn {
			return errs.InvalidTransition("visit", sc.v.Status(), visit.StatusCompleted)
		}
		if sc.v.OTPExpired(u.Now) {
			return errs.Expired("check-in code expired; ask the agent for a new one")
		}
		if sc.v.OTPHash == nil || !s.otp.Verify(code, *sc.v.OTPHash) {
			return errs.New(errs.KindInvalidOTP, "check-in code does not match")
		}
		return sc.v.Complete(u.Now)
	})
}

func (s *Service) MarkNoShow(ctx context.Context, actor user.Actor, visitID uuid.UUID) (*visit.Visit, error) {
	return s.mutate(ctx, "visit.mark_no_show", actor, visitID, access.ActMarkNoShow, "", func(u *txn.Unit, sc scope, _ access.Party) error {
		return sc.v.MarkNoShow(u.Now)
	})
}

func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*visit.Visit, error) {
	var out *visit.Visit
	err := s.runner.Run(ctx, "visit.get", actor, func(u *txn.Unit) error {
		sc, err := load(u, id)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActView, sc.subject()); err != nil {
			return errs.NotFound("visit", id)
		}
		out = sc.v
		return nil
	})
	return out, err
}

// ListByProperty is for the property's seller, its agent and admins.
func (s *Service) ListByProperty(ctx context.Context, actor user.Actor, propertyID uuid.UUID, limit, offset int) ([]*visit.Visit, error) {
	repos := s.runner.Repos()
	p, err := repos.Properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("property", propertyID)
	}
	subj := access.Subject{SellerID: p.SellerID}
	if p.AssignedAgentID != nil {
		subj.AgentID = *p.AssignedAgentID
	}
	if _, err := access.Check(actor, access.ActView, subj); err != nil {
		return nil, err
	}
	return repos.Visits.ListByProperty(ctx, propertyID, limit, offset)
}

func (s *Service) geofence(p *property.Property, reading geo.Point) (float64, error) {
	if !reading.Valid() {
		return 0, errs.Validation("gps reading out of range")
	}
	if p.Location == nil {
		return 0, errs.New(errs.KindIncompleteProperty, "property has no location")
	}
	ok, distance := geo.WithinCheckInRadius(reading, *p.Location)
	if !ok {
		return distance, errs.New(errs.KindGeofenceViolation, "agent is %.2fm from the property (limit %.0fm)", distance, geo.CheckInRadiusMeters)
	}
	return distance, nil
}
