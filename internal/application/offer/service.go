package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/policy"
	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/integrity"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

const sweepBatch = 200

// Action is the seller's answer to an offer.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCounter Action = "counter"
)

// Config holds the negotiation policy.
type Config struct {
	// TTL bounds both an open offer and the reservation window of an accepted one.
	TTL                   time.Duration
	MaxCounterRounds      int
	RequireCompletedVisit bool
}

// Service drives offers and counter-offers.
type Service struct {
	runner  *txn.Runner
	lowball *policy.LowballRule
	cfg     Config
	batch   int
	logger  zerolog.Logger
}

func NewService(runner *txn.Runner, lowball *policy.LowballRule, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		runner:  runner,
		lowball: lowball,
		cfg:     cfg,
		batch:   sweepBatch,
		logger:  logger.With().Str("service", "offer").Logger(),
	}
}

// WithSweepBatch sets how many rows a sweep reads per page.
func (s *Service) WithSweepBatch(n int) *Service {
	s.batch = n
	return s
}

func load(u *txn.Unit, id uuid.UUID) (*offer.Offer, *property.Property, error) {
	o, err := u.Repos.Offers.GetByID(u.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, errs.NotFound("offer", id)
	}
	p, err := u.Repos.Properties.GetByID(u.Context(), o.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, errs.NotFound("property", o.PropertyID)
	}
	return o, p, nil
}

func subject(o *offer.Offer, p *property.Property) access.Subject {
	subj := access.Subject{SellerID: p.SellerID, BuyerID: o.BuyerID}
	if p.AssignedAgentID != nil {
		subj.AgentID = *p.AssignedAgentID
	}
	return subj
}

func recipients(o *offer.Offer, p *property.Property) []uuid.UUID {
	ids := []uuid.UUID{p.SellerID, o.BuyerID}
	if p.AssignedAgentID != nil {
		ids = append(ids, *p.AssignedAgentID)
	}
	return ids
}

func (s *Service) save(u *txn.Unit, o *offer.Offer, p *property.Property, from offer.Status, reason string) error {
	o.UpdatedAt = u.Now
	if err := u.Repos.Offers.Update(u.Context(), o, from); err != nil {
		return err
	}
	u.Record(txn.Transition{
		Entity:     offer.EntityType,
		EntityID:   o.ID,
		PropertyID: p.ID,
		From:       string(from),
		To:         string(o.Status()),
		Reason:     reason,
		Recipients: recipients(o, p),
	})
	return nil
}

// SubmitOffer places a bid on an ACTIVE property. With RequireCompletedVisit the
// buyer must have completed a visit to it first.
func (s *Service) SubmitOffer(ctx context.Context, actor user.Actor, propertyID uuid.UUID, amount int64) (*offer.Offer, error) {
	if _, err := access.Check(actor, access.ActSubmitOffer, access.Subject{BuyerID: actor.ID}); err != nil {
		return nil, err
	}
	var out *offer.Offer
	err := s.runner.Run(ctx, "offer.submit", actor, func(u *txn.Unit) error {
		p, err := u.Repos.Properties.GetByID(u.Context(), propertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return errs.NotFound("property", propertyID)
		}
		if p.Status() != property.StatusActive {
			return errs.New(errs.KindPropertyNotBookable, "property is %s", p.Status())
		}
		if p.SellerID == actor.ID {
			return errs.NotAuthorized("sellers cannot bid on their own property")
		}

		var visitID *uuid.UUID
		completed, err := u.Repos.Visits.FindCompleted(u.Context(), p.ID, actor.ID)
		if err != nil {
			return err
		}
		if completed != nil {
			visitID = &completed.ID
		} else if s.cfg.RequireCompletedVisit {
			return errs.New(errs.KindPropertyNotBookable, "a completed visit is required before making an offer")
		}

		o, err := offer.New(p.ID, actor.ID, visitID, amount, s.cfg.TTL, u.Now)
		if err != nil {
			return err
		}
		o.PctVsAsking = reservation.PctVsAsking(amount, p.Price)
		if s.lowball != nil {
			low, err := s.lowball.Evaluate(o.PctVsAsking, amount, p.Price)
			if err != nil {
				s.logger.Warn().Err(err).Str("rule", s.lowball.String()).Msg("lowball rule failed")
			}
			o.Lowball = low
		}
		if err := u.Repos.Offers.Create(u.Context(), o); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     offer.EntityType,
			EntityID:   o.ID,
			PropertyID: p.ID,
			To:         string(o.Status()),
			Recipients: recipients(o, p),
		})
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("offerId", out.ID.String()).
		Str("propertyId", propertyID.String()).
		Int64("amount", amount).
		Float64("pctVsAsking", out.PctVsAsking).
		Bool("lowball", out.Lowball).
		Msg("offer submitted")
	return out, nil
}

// decide runs one negotiation step. An offer found past its expiry is expired
// in a separate unit and the caller gets errs.ErrExpired.
func (s *Service) decide(ctx context.Context, name string, actor user.Actor, id uuid.UUID, action access.Action, reason string, step func(u *txn.Unit, o *offer.Offer, p *property.Property, side offer.Side) error) (*offer.Offer, error) {
	var out *offer.Offer
	lapsed := false
	err := s.runner.Run(ctx, name, actor, func(u *txn.Unit) error {
		o, p, err := load(u, id)
		if err != nil {
			return err
		}
		party, err := access.Check(actor, action, subject(o, p))
		if err != nil {
			return err
		}
		if o.Lapsed(u.Now) {
			lapsed = true
			return errs.Expired("offer %s expired at %s", o.ID, o.ExpiresAt.Format(time.RFC3339))
		}
		side := offer.SideSeller
		if party == access.PartyBuyer {
			side = offer.SideBuyer
		}
		from := o.Status()
		if err := step(u, o, p, side); err != nil {
			return err
		}
		if err := s.save(u, o, p, from, reason); err != nil {
			return err
		}
		out = o
		return nil
	})
	if lapsed {
		if _, xerr := s.expire(ctx, id); xerr != nil && !errors.Is(xerr, errs.ErrStale) {
			s.logger.Warn().Err(xerr).Str("offerId", id.String()).Msg("lazy offer expiry failed")
		}
	}
	return out, err
}

// accept closes the negotiation. The property row is rewritten with its own
// status so a concurrent acceptance of another offer loses on the version check.
func (s *Service) accept(u *txn.Unit, o *offer.Offer, p *property.Property, side offer.Side) error {
	if p.Status() != property.StatusActive {
		return errs.New(errs.KindPropertyNotBookable, "property is %s", p.Status())
	}
	others, err := u.Repos.Offers.ListByProperty(u.Context(), p.ID, 0, 0)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID == o.ID {
			continue
		}
		until, ok := other.ReservableUntil()
		if !ok || u.Now.After(until) {
			continue
		}
		r, err := u.Repos.Reservations.FindByOffer(u.Context(), other.ID)
		if err != nil {
			return err
		}
		if r == nil {
			return errs.New(errs.KindInvalidTransition, "offer %s is already accepted and awaiting its token payment", other.ID)
		}
	}
	if err := o.Accept(side, s.cfg.TTL, u.Now); err != nil {
		return err
	}
	p.UpdatedAt = u.Now
	return u.Repos.Properties.Update(u.Context(), p, property.StatusActive)
}

// RespondToOffer is the seller, or the agent on the seller's behalf, answering
// the buyer's standing amount.
func (s *Service) RespondToOffer(ctx context.Context, actor user.Actor, offerID uuid.UUID, action Action, counterAmount int64) (*offer.Offer, error) {
	switch action {
	case ActionAccept:
		return s.decide(ctx, "offer.accept", actor, offerID, access.ActRespondOffer, "", s.accept)
	case ActionReject:
		return s.decide(ctx, "offer.reject", actor, offerID, access.ActRespondOffer, "", func(u *txn.Unit, o *offer.Offer, _ *property.Property, side offer.Side) error {
			return o.Reject(side, u.Now)
		})
	case ActionCounter:
		if counterAmount <= 0 {
			return nil, errs.Validation("counter requires a positive counterAmount")
		}
		return s.decide(ctx, "offer.counter", actor, offerID, access.ActRespondOffer, "", func(u *txn.Unit, o *offer.Offer, _ *property.Property, side offer.Side) error {
			return o.Counter(side, counterAmount, s.cfg.TTL, s.cfg.MaxCounterRounds, u.Now)
		})
	default:
		return nil, errs.Validation("unknown offer action %q", action)
	}
}

// RespondToCounter is the buyer accepting or rejecting the seller's counter.
func (s *Service) RespondToCounter(ctx context.Context, actor user.Actor, offerID uuid.UUID, accept bool) (*offer.Offer, error) {
	if accept {
		return s.decide(ctx, "offer.accept_counter", actor, offerID, access.ActRespondOfferCounter, "", func(u *txn.Unit, o *offer.Offer, p *property.Property, side offer.Side) error {
			if o.Status() != offer.StatusCountered {
				return errs.InvalidTransition("offer", o.Status(), offer.StatusAccepted)
			}
			return s.accept(u, o, p, side)
		})
	}
	return s.decide(ctx, "offer.reject_counter", actor, offerID, access.ActRespondOfferCounter, "", func(u *txn.Unit, o *offer.Offer, _ *property.Property, side offer.Side) error {
		if o.Status() != offer.StatusCountered {
			return errs.InvalidTransition("offer", o.Status(), offer.StatusRejected)
		}
		return o.Reject(side, u.Now)
	})
}

// CounterAsBuyer answers the seller's counter with a new amount.
func (s *Service) CounterAsBuyer(ctx context.Context, actor user.Actor, offerID uuid.UUID, amount int64) (*offer.Offer, error) {
	return s.decide(ctx, "offer.counter_as_buyer", actor, offerID, access.ActCounterAsBuyer, "", func(u *txn.Unit, o *offer.Offer, _ *property.Property, side offer.Side) error {
		if o.Status() != offer.StatusCountered {
			return errs.New(errs.KindInvalidTransition, "buyers can only re-counter a countered offer")
		}
		return o.Counter(side, amount, s.cfg.TTL, s.cfg.MaxCounterRounds, u.Now)
	})
}

// expire moves one lapsed offer to EXPIRED. It reports false when the offer
// no longer qualifies, which makes repeated runs harmless.
func (s *Service) expire(ctx context.Context, id uuid.UUID) (bool, error) {
	done := false
	err := s.runner.Run(ctx, "offer.expire", user.System(), func(u *txn.Unit) error {
		o, p, err := load(u, id)
		if err != nil {
			return err
		}
		if !o.Lapsed(u.Now) {
			return nil
		}
		from := o.Status()
		if err := o.Expire(); err != nil {
			return err
		}
		if err := s.save(u, o, p, from, "offer expired"); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done && err == nil, err
}

// ExpireLapsed is the offer expiry sweep. Expired rows drop out of the listing,
// so it reads the first page again until a page comes back short or moved nothing.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	expired := 0
	for {
		candidates, err := s.runner.Repos().Offers.ListLapsed(ctx, s.runner.Now(), s.batch)
		if err != nil {
			return expired, err
		}
		moved := 0
		for _, c := range candidates {
			done, err := s.expire(ctx, c.ID)
			if err != nil {
				if errors.Is(err, errs.ErrStale) {
					continue
				}
				return expired, err
			}
			if done {
				moved++
			}
		}
		expired += moved
		if len(candidates) < s.batch || moved == 0 {
			break
		}
	}
	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("expired lapsed offers")
	}
	return expired, nil
}

// DetectOrphanedAcceptances records a fault for every accepted offer whose
// reservation window ended without a reservation. Nothing is repaired.
func (s *Service) DetectOrphanedAcceptances(ctx context.Context) (int, error) {
	now := s.runner.Now()
	recorded := 0
	// Orphans stay listed after their fault is recorded, so this pages by offset.
	for offset := 0; ; {
		candidates, err := s.runner.Repos().Offers.ListOrphanedAcceptances(ctx, now, s.batch, offset)
		if err != nil {
			return recorded, err
		}
		n, err := s.recordOrphans(ctx, candidates)
		recorded += n
		if err != nil {
			return recorded, err
		}
		if len(candidates) < s.batch {
			return recorded, nil
		}
		offset += len(candidates)
	}
}

func (s *Service) recordOrphans(ctx context.Context, candidates []*offer.Offer) (int, error) {
	recorded := 0
	for _, c := range candidates {
		var fault *integrity.Fault
		err := s.runner.Run(ctx, "offer.detect_orphan", user.System(), func(u *txn.Unit) error {
			r, err := u.Repos.Reservations.FindByOffer(u.Context(), c.ID)
			if err != nil || r != nil {
				return err
			}
			f := integrity.NewFault(integrity.KindOrphanedAcceptance, offer.EntityType, c.ID, c.PropertyID,
				fmt.Sprintf("offer accepted but no reservation was created before %s", c.ExpiresAt.Format(time.RFC3339)), u.Now)
			created, err := u.Repos.Faults.Record(u.Context(), f)
			if err != nil || !created {
				return err
			}
			u.Notify(notification.Event{
				Kind:         notification.KindFault,
				Entity:       offer.EntityType,
				EntityID:     c.ID,
				PropertyID:   c.PropertyID,
				From:         string(c.Status()),
				To:           string(c.Status()),
				NotifyAdmins: true,
			})
			fault = f
			return nil
		})
		if err != nil {
			return recorded, err
		}
		if fault != nil {
			recorded++
			s.logger.WithLevel(zerolog.FatalLevel).
				Str("faultId", fault.ID.String()).
				Str("kind", string(fault.Kind)).
				Str("offerId", c.ID.String()).
				Str("propertyId", c.PropertyID.String()).
				Msg("data integrity fault detected")
		}
	}
	return recorded, nil
}

// Get returns an offer to its buyer, the seller, the agent or an admin. A lapsed
// offer is expired first.
func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*offer.Offer, error) {
	var out *offer.Offer
	lapsed := false
	err := s.runner.Run(ctx, "offer.get", actor, func(u *txn.Unit) error {
		o, p, err := load(u, id)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActView, subject(o, p)); err != nil {
			return errs.NotFound("offer", id)
		}
		lapsed = o.Lapsed(u.Now)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		if _, err := s.expire(ctx, id); err != nil && !errors.Is(err, errs.ErrStale) {
			return nil, err
		}
		return s.runner.Repos().Offers.GetByID(ctx, id)
	}
	return out, nil
}

// ListByProperty is for the seller, the agent and admins.
func (s *Service) ListByProperty(ctx context.Context, actor user.Actor, propertyID uuid.UUID, limit, offset int) ([]*offer.Offer, error) {
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
	return repos.Offers.ListByProperty(ctx, propertyID, limit, offset)
}
