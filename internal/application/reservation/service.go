package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/otp"
	"github.com/estate-hub/estate-hub/internal/domain/payment"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

const sweepBatch = 200

// Service drives reservations and the registration hand-over.
type Service struct {
	runner  *txn.Runner
	gateway payment.Gateway
	otp     otp.Issuer
	window  time.Duration
	batch   int
	logger  zerolog.Logger
}

func NewService(runner *txn.Runner, gateway payment.Gateway, issuer otp.Issuer, window time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		runner:  runner,
		gateway: gateway,
		otp:     issuer,
		window:  window,
		batch:   sweepBatch,
		logger:  logger.With().Str("service", "reservation").Logger(),
	}
}

// WithSweepBatch sets how many rows the expiry sweep reads per page.
func (s *Service) WithSweepBatch(n int) *Service {
	s.batch = n
	return s
}

type scope struct {
	r *reservation.Reservation
	p *property.Property
}

func (sc scope) subject() access.Subject {
	return access.Subject{SellerID: sc.r.SellerID, BuyerID: sc.r.BuyerID, AgentID: sc.r.AgentID}
}

func (sc scope) recipients() []uuid.UUID {
	return []uuid.UUID{sc.r.BuyerID, sc.r.SellerID, sc.r.AgentID}
}

func load(u *txn.Unit, id uuid.UUID) (scope, error) {
	r, err := u.Repos.Reservations.GetByID(u.Context(), id)
	if err != nil {
		return scope{}, err
	}
	if r == nil {
		return scope{}, errs.NotFound("reservation", id)
	}
	p, err := u.Repos.Properties.GetByID(u.Context(), r.PropertyID)
	if err != nil {
		return scope{}, err
	}
	if p == nil {
		return scope{}, errs.NotFound("property", r.PropertyID)
	}
	return scope{r: r, p: p}, nil
}

func (s *Service) saveReservation(u *txn.Unit, sc scope) error {
	sc.r.UpdatedAt = u.Now
	return u.Repos.Reservations.Update(u.Context(), sc.r, reservation.StatusActive)
}

// advance persists a registration step and audits the stage change.
func (s *Service) advance(u *txn.Unit, sc scope, from reservation.Stage) error {
	if err := s.saveReservation(u, sc); err != nil {
		return err
	}
	u.Record(txn.Transition{
		Entity:     reservation.RegistrationEntityType,
		EntityID:   sc.r.ID,
		PropertyID: sc.p.ID,
		From:       string(from),
		To:         string(sc.r.Stage),
		Recipients: sc.recipients(),
	})
	return nil
}

// close ends the reservation and hands the property back to buyers.
func (s *Service) close(u *txn.Unit, sc scope, reason string, end func() error) error {
	if err := end(); err != nil {
		return err
	}
	if err := s.saveReservation(u, sc); err != nil {
		return err
	}
	u.Record(txn.Transition{
		Entity:     reservation.EntityType,
		EntityID:   sc.r.ID,
		PropertyID: sc.p.ID,
		From:       string(reservation.StatusActive),
		To:         string(sc.r.Status()),
		Reason:     reason,
		Recipients: sc.recipients(),
	})
	if sc.p.Status() != property.StatusReserved {
		return nil
	}
	pFrom := sc.p.Status()
	if err := sc.p.Release(); err != nil {
		return err
	}
	sc.p.UpdatedAt = u.Now
	if err := u.Repos.Properties.Update(u.Context(), sc.p, pFrom); err != nil {
		return err
	}
	u.Record(txn.Transition{
		Entity:     property.EntityType,
		EntityID:   sc.p.ID,
		PropertyID: sc.p.ID,
		From:       string(pFrom),
		To:         string(sc.p.Status()),
		Reason:     reason,
		Recipients: sc.recipients(),
	})
	return nil
}

// mutate runs one step on an ACTIVE reservation. A reservation found past its
// window is expired in a separate unit and the caller gets errs.ErrExpired.
func (s *Service) mutate(ctx context.Context, name string, actor user.Actor, id uuid.UUID, action access.Action, step func(u *txn.Unit, sc scope) error) (*reservation.Reservation, error) {
	var out *reservation.Reservation
	lapsed := false
	err := s.runner.Run(ctx, name, actor, func(u *txn.Unit) error {
		sc, err := load(u, id)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, action, sc.subject()); err != nil {
			return err
		}
		if sc.r.Lapsed(u.Now) {
			lapsed = true
			return errs.Expired("reservation %s expired at %s", sc.r.ID, sc.r.ExpiresAt.Format(time.RFC3339))
		}
		if sc.r.Status() != reservation.StatusActive {
			return errs.New(errs.KindInvalidTransition, "reservation is %s", sc.r.Status())
		}
		if err := step(u, sc); err != nil {
			return err
		}
		out = sc.r
		return nil
	})
	if lapsed {
		s.expireLazily(ctx, id)
	}
	return out, err
}

func (s *Service) expireLazily(ctx context.Context, id uuid.UUID) {
	if _, err := s.expire(ctx, id); err != nil && !errors.Is(err, errs.ErrStale) {
		s.logger.Warn().Err(err).Str("reservationId", id.String()).Msg("lazy reservation expiry failed")
	}
}

// CreateReservation charges the token for an accepted offer and reserves the
// property. The charge happens before the transactional unit; if the unit then
// loses a race the token is refunded and nothing is written.
func (s *Service) CreateReservation(ctx context.Context, actor user.Actor, offerID uuid.UUID, paymentSource string) (*reservation.Reservation, error) {
	repos := s.runner.Repos()
	o, err := repos.Offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errs.NotFound("offer", offerID)
	}
	if _, err := access.Check(actor, access.ActCreateReservation, access.Subject{BuyerID: o.BuyerID}); err != nil {
		return nil, err
	}
	p, err := repos.Properties.GetByID(ctx, o.PropertyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("property", o.PropertyID)
	}
	if err := s.reservable(ctx, repos.Reservations, o, p, s.runner.Now()); err != nil {
		return nil, err
	}

	price := p.Price
	token := reservation.TokenAmount(price)
	receipt, err := s.gateway.ChargeToken(ctx, payment.Charge{
		Amount:      token,
		PayerID:     actor.ID,
		Source:      paymentSource,
		Description: fmt.Sprintf("token payment for property %s", p.ID),
	})
	if err != nil {
		return nil, errs.New(errs.KindPaymentFailed, "token charge failed: %v", err)
	}
	if !receipt.Success {
		return nil, errs.New(errs.KindPaymentFailed, "token charge declined: %s", receipt.Message)
	}

	var out *reservation.Reservation
	err = s.runner.Run(ctx, "reservation.create", actor, func(u *txn.Unit) error {
		o, err := u.Repos.Offers.GetByID(u.Context(), offerID)
		if err != nil {
			return err
		}
		p, err := u.Repos.Properties.GetByID(u.Context(), o.PropertyID)
		if err != nil {
			return err
		}
		if err := s.reservable(u.Context(), u.Repos.Reservations, o, p, u.Now); err != nil {
			return err
		}
		if p.Price != price {
			return errs.Stale("property", p.ID)
		}
		r := reservation.New(reservation.Params{
			OfferID:         o.ID,
			PropertyID:      p.ID,
			BuyerID:         o.BuyerID,
			SellerID:        p.SellerID,
			AgentID:         *p.AssignedAgentID,
			Price:           price,
			TokenPaymentRef: receipt.Reference,
		}, s.window, u.Now)
		if err := u.Repos.Reservations.Create(u.Context(), r); err != nil {
			return err
		}
		pFrom := p.Status()
		if err := p.Reserve(); err != nil {
			return err
		}
		p.UpdatedAt = u.Now
		if err := u.Repos.Properties.Update(u.Context(), p, pFrom); err != nil {
			return err
		}
		sc := scope{r: r, p: p}
		u.Record(txn.Transition{
			Entity:     reservation.EntityType,
			EntityID:   r.ID,
			PropertyID: p.ID,
			To:         string(r.Status()),
			Recipients: sc.recipients(),
		})
		u.Record(txn.Transition{
			Entity:     property.EntityType,
			EntityID:   p.ID,
			PropertyID: p.ID,
			From:       string(pFrom),
			To:         string(p.Status()),
			Recipients: sc.recipients(),
		})
		out = r
		return nil
	})
	if err != nil {
		s.refund(ctx, receipt.Reference, token)
		return nil, err
	}
	s.logger.Info().
		Str("reservationId", out.ID.String()).
		Str("propertyId", out.PropertyID.String()).
		Int64("tokenAmount", out.TokenAmount).
		Msg("reservation created")
	return out, nil
}

func (s *Service) reservable(ctx context.Context, reservations reservation.Repository, o *offer.Offer, p *property.Property, now time.Time) error {
	until, ok := o.ReservableUntil()
	if !ok {
		return errs.New(errs.KindInvalidTransition, "offer is %s, not ACCEPTED", o.Status())
	}
	if now.After(until) {
		return errs.Expired("the reservation window for offer %s ended at %s", o.ID, until.Format(time.RFC3339))
	}
	if p.Status() != property.StatusActive || p.AssignedAgentID == nil {
		return errs.New(errs.KindPropertyNotBookable, "property is %s", p.Status())
	}
	existing, err := reservations.FindByOffer(ctx, o.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.New(errs.KindInvalidTransition, "offer %s already has reservation %s", o.ID, existing.ID)
	}
	return nil
}

func (s *Service) refund(ctx context.Context, reference string, amount int64) {
	if err := s.gateway.Refund(ctx, reference, amount); err != nil {
		s.logger.Error().Err(err).Str("paymentRef", reference).Int64("amount", amount).Msg("refund failed; reconcile manually")
		return
	}
	s.logger.Info().Str("paymentRef", reference).Int64("amount", amount).Msg("charge refunded")
}

// ProposeRegistrationSlot is the agent suggesting a registration appointment.
// It may be re-proposed until the buyer accepts.
func (s *Service) ProposeRegistrationSlot(ctx context.Context, actor user.Actor, reservationID uuid.UUID, slot time.Time) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.propose_slot", actor, reservationID, access.ActProposeSlot, func(u *txn.Unit, sc scope) error {
		if !slot.After(u.Now) {
			return errs.Validation("registration slot must be in the future")
		}
		from := sc.r.Stage
		if err := sc.r.ProposeSlot(slot); err != nil {
			return err
		}
		return s.advance(u, sc, from)
	})
}

// AcceptRegistrationSlot is the buyer agreeing to the slot. It opens the transaction.
func (s *Service) AcceptRegistrationSlot(ctx context.Context, actor user.Actor, reservationID uuid.UUID) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.accept_slot", actor, reservationID, access.ActAcceptSlot, func(u *txn.Unit, sc scope) error {
		from := sc.r.Stage
		if err := sc.r.AcceptSlot(u.Now); err != nil {
			return err
		}
		if err := s.advance(u, sc, from); err != nil {
			return err
		}
		t := reservation.NewTransaction(sc.r, u.Now)
		if err := u.Repos.Transactions.Create(u.Context(), t); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     reservation.TransactionEntityType,
			EntityID:   t.ID,
			PropertyID: sc.p.ID,
			To:         string(t.Status()),
			Recipients: sc.recipients(),
		})
		return nil
	})
}

// GenerateRegistrationOTP issues the next registration code: the buyer's first,
// then the seller's. The agent must be on site. A code can only be replaced
// after it expired.
func (s *Service) GenerateRegistrationOTP(ctx context.Context, actor user.Actor, reservationID uuid.UUID, reading geo.Point) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.generate_otp", actor, reservationID, access.ActGenerateOTP, func(u *txn.Unit, sc scope) error {
		stage, err := sc.r.OTPRecipient()
		if err != nil {
			return err
		}
		if sc.r.Stage == stage && !sc.r.OTPExpired(u.Now) {
			return errs.New(errs.KindInvalidTransition, "the current registration code is still valid")
		}
		if err := geofence(sc.p, reading); err != nil {
			return err
		}
		recipient := sc.r.BuyerID
		if stage == reservation.StageSellerOTPIssued {
			recipient = sc.r.SellerID
		}
		// The code goes out before the unit commits. A failed commit leaves the
		// stage unchanged, so the agent generates a fresh code.
		issued, err := s.otp.Issue(u.Context(), otp.ChannelEmail, recipient)
		if err != nil {
			return err
		}
		from := sc.r.Stage
		if err := sc.r.IssueOTP(stage, issued.Hash, issued.ExpiresAt); err != nil {
			return err
		}
		return s.advance(u, sc, from)
	})
}

// checkCode validates a submitted registration code for the expected stage.
// A wrong code changes nothing.
func (s *Service) checkCode(u *txn.Unit, sc scope, want reservation.Stage, code string) error {
	if sc.r.Stage != want {
		return errs.New(errs.KindInvalidTransition, "no %s code is outstanding", want)
	}
	if sc.r.OTPExpired(u.Now) {
		return errs.Expired("registration code expired; ask the agent for a new one")
	}
	if sc.r.OTPHash == nil || !s.otp.Verify(code, *sc.r.OTPHash) {
		return errs.New(errs.KindInvalidOTP, "registration code does not match")
	}
	return nil
}

func (s *Service) VerifyBuyerOTP(ctx context.Context, actor user.Actor, reservationID uuid.UUID, code string) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.verify_buyer_otp", actor, reservationID, access.ActVerifyBuyerOTP, func(u *txn.Unit, sc scope) error {
		if err := s.checkCode(u, sc, reservation.StageBuyerOTPIssued, code); err != nil {
			return err
		}
		from := sc.r.Stage
		if err := sc.r.VerifyBuyer(u.Now); err != nil {
			return err
		}
		return s.advance(u, sc, from)
	})
}

// VerifySellerOTP passes the second gate and marks the transaction VERIFIED.
func (s *Service) VerifySellerOTP(ctx context.Context, actor user.Actor, reservationID uuid.UUID, code string) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.verify_seller_otp", actor, reservationID, access.ActVerifySellerOTP, func(u *txn.Unit, sc scope) error {
		if err := s.checkCode(u, sc, reservation.StageSellerOTPIssued, code); err != nil {
			return err
		}
		from := sc.r.Stage
		if err := sc.r.VerifySeller(u.Now); err != nil {
			return err
		}
		if err := s.advance(u, sc, from); err != nil {
			return err
		}
		t, err := loadTransaction(u, sc.r.ID)
		if err != nil {
			return err
		}
		tFrom := t.Status()
		if err := t.MarkVerified(); err != nil {
			return err
		}
		return s.saveTransaction(u, sc, t, tFrom, "")
	})
}

func loadTransaction(u *txn.Unit, reservationID uuid.UUID) (*reservation.Transaction, error) {
	t, err := u.Repos.Transactions.GetByReservation(u.Context(), reservationID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.NotFound("transaction for reservation", reservationID)
	}
	return t, nil
}

func (s *Service) saveTransaction(u *txn.Unit, sc scope, t *reservation.Transaction, from reservation.TxStatus, reason string) error {
	t.UpdatedAt = u.Now
	if err := u.Repos.Transactions.Update(u.Context(), t, from); err != nil {
		return err
	}
	u.Record(txn.Transition{
		Entity:     reservation.TransactionEntityType,
		EntityID:   t.ID,
		PropertyID: sc.p.ID,
		From:       string(from),
		To:         string(t.Status()),
		Reason:     reason,
		Recipients: sc.recipients(),
	})
	return nil
}

// FinalizePayment charges the seller the remaining 0.9% and closes the sale:
// reservation COMPLETED, transaction COMPLETED with its commission split,
// property SOLD. A declined charge leaves the verified registration in place.
func (s *Service) FinalizePayment(ctx context.Context, actor user.Actor, reservationID uuid.UUID, amount int64, paymentSource string) (*reservation.Transaction, error) {
	repos := s.runner.Repos()
	r, err := repos.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NotFound("reservation", reservationID)
	}
	if _, err := access.Check(actor, access.ActFinalizePayment, access.Subject{SellerID: r.SellerID, BuyerID: r.BuyerID, AgentID: r.AgentID}); err != nil {
		return nil, err
	}
	if r.Lapsed(s.runner.Now()) {
		s.expireLazily(ctx, reservationID)
		return nil, errs.Expired("reservation %s expired at %s", r.ID, r.ExpiresAt.Format(time.RFC3339))
	}
	if r.Status() != reservation.StatusActive || r.Stage != reservation.StageSellerVerified {
		return nil, errs.New(errs.KindInvalidTransition, "both registration codes must be verified before payment")
	}
	due := r.FinalPaymentDue()
	if amount != due {
		return nil, errs.Validation("final payment must be exactly %d, got %d", due, amount)
	}

	receipt, err := s.gateway.ChargeFinal(ctx, payment.Charge{
		Amount:      due,
		PayerID:     actor.ID,
		Source:      paymentSource,
		Description: fmt.Sprintf("final payment for property %s", r.PropertyID),
	})
	if err != nil {
		return nil, errs.New(errs.KindPaymentFailed, "final charge failed: %v", err)
	}
	if !receipt.Success {
		return nil, errs.New(errs.KindPaymentFailed, "final charge declined: %s", receipt.Message)
	}

	var out *reservation.Transaction
	err = s.runner.Run(ctx, "reservation.finalize_payment", actor, func(u *txn.Unit) error {
		sc, err := load(u, reservationID)
		if err != nil {
			return err
		}
		if sc.r.Lapsed(u.Now) {
			return errs.Expired("reservation %s expired at %s", sc.r.ID, sc.r.ExpiresAt.Format(time.RFC3339))
		}
		from := sc.r.Stage
		if err := sc.r.Complete(u.Now); err != nil {
			return err
		}
		if err := s.saveReservation(u, sc); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     reservation.RegistrationEntityType,
			EntityID:   sc.r.ID,
			PropertyID: sc.p.ID,
			From:       string(from),
			To:         string(sc.r.Stage),
			Recipients: sc.recipients(),
		})
		u.Record(txn.Transition{
			Entity:     reservation.EntityType,
			EntityID:   sc.r.ID,
			PropertyID: sc.p.ID,
			From:       string(reservation.StatusActive),
			To:         string(sc.r.Status()),
			Recipients: sc.recipients(),
		})

		t, err := loadTransaction(u, sc.r.ID)
		if err != nil {
			return err
		}
		tFrom := t.Status()
		if err := t.Complete(receipt.Reference, u.Now); err != nil {
			return err
		}
		if err := s.saveTransaction(u, sc, t, tFrom, ""); err != nil {
			return err
		}

		pFrom := sc.p.Status()
		if err := sc.p.MarkSold(); err != nil {
			return err
		}
		sc.p.UpdatedAt = u.Now
		if err := u.Repos.Properties.Update(u.Context(), sc.p, pFrom); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     property.EntityType,
			EntityID:   sc.p.ID,
			PropertyID: sc.p.ID,
			From:       string(pFrom),
			To:         string(sc.p.Status()),
			Recipients: sc.recipients(),
		})
		out = t
		return nil
	})
	if err != nil {
		s.refund(ctx, receipt.Reference, due)
		return nil, err
	}
	s.logger.Info().
		Str("reservationId", reservationID.String()).
		Str("transactionId", out.ID.String()).
		Int64("commission", out.Commission.Total).
		Int64("agentShare", out.Commission.AgentShare).
		Int64("platformShare", out.Commission.PlatformShare).
		Msg("sale completed")
	return out, nil
}

// CancelReservation ends an ACTIVE reservation at the buyer's or seller's request.
// The token payment is not refunded.
func (s *Service) CancelReservation(ctx context.Context, actor user.Actor, reservationID uuid.UUID, reason string) (*reservation.Reservation, error) {
	return s.mutate(ctx, "reservation.cancel", actor, reservationID, access.ActCancelReservation, func(u *txn.Unit, sc scope) error {
		return s.close(u, sc, reason, func() error { return sc.r.Cancel(reason, u.Now) })
	})
}

// expire moves one lapsed reservation to EXPIRED and releases its property.
// It reports false when the row no longer qualifies.
func (s *Service) expire(ctx context.Context, id uuid.UUID) (bool, error) {
	done := false
	err := s.runner.Run(ctx, "reservation.expire", user.System(), func(u *txn.Unit) error {
		sc, err := load(u, id)
		if err != nil {
			return err
		}
		if !sc.r.Lapsed(u.Now) {
			return nil
		}
		if err := s.close(u, sc, "reservation window ended", func() error { return sc.r.Expire(u.Now) }); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done && err == nil, err
}

// ExpireLapsed is the reservation expiry sweep. Each row is its own unit that
// re-checks the row is still ACTIVE and lapsed, so a second run finds nothing
// to do and a row cancelled meanwhile is left alone. Expired rows drop out of
// the listing, so pages are read until one comes back short or moved nothing.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	expired := 0
	for {
		candidates, err := s.runner.Repos().Reservations.ListLapsed(ctx, s.runner.Now(), s.batch)
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
		s.logger.Info().Int("count", expired).Msg("expired lapsed reservations")
	}
	return expired, nil
}

// Get returns a reservation to its parties or an admin, expiring it first if its window ended.
func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*reservation.Reservation, error) {
	repo := s.runner.Repos().Reservations
	r, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NotFound("reservation", id)
	}
	if _, err := access.Check(actor, access.ActView, access.Subject{SellerID: r.SellerID, BuyerID: r.BuyerID, AgentID: r.AgentID}); err != nil {
		return nil, errs.NotFound("reservation", id)
	}
	if r.Lapsed(s.runner.Now()) {
		s.expireLazily(ctx, id)
		return repo.GetByID(ctx, id)
	}
	return r, nil
}

func (s *Service) GetTransaction(ctx context.Context, actor user.Actor, reservationID uuid.UUID) (*reservation.Transaction, error) {
	if _, err := s.Get(ctx, actor, reservationID); err != nil {
		return nil, err
	}
	t, err := s.runner.Repos().Transactions.GetByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.NotFound("transaction for reservation", reservationID)
	}
	return t, nil
}

func geofence(p *property.Property, reading geo.Point) error {
	if !reading.Valid() {
		return errs.Validation("gps reading out of range")
	}
	if p.Location == nil {
		return errs.New(errs.KindIncompleteProperty, "property has no location")
	}
	if ok, distance := geo.WithinCheckInRadius(reading, *p.Location); !ok {
		return errs.New(errs.KindGeofenceViolation, "agent is %.2fm from the property (limit %.0fm)", distance, geo.CheckInRadiusMeters)
	}
	return nil
}
