package offer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

// Status represents the negotiation status of an offer.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCountered Status = "COUNTERED"
	StatusExpired   Status = "EXPIRED"
)

const EntityType = "OFFER"

var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCountered, StatusExpired},
	StatusCountered: {StatusAccepted, StatusRejected, StatusCountered, StatusExpired},
	StatusAccepted:  {},
	StatusRejected:  {},
	StatusExpired:   {},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Side is the negotiating party. An agent answering for the seller acts as SideSeller.
type Side string

const (
	SideSeller Side = "SELLER"
	SideBuyer  Side = "BUYER"
)

// Offer is a buyer's bid on a property.
type Offer struct {
	ID             uuid.UUID  `json:"id"`
	PropertyID     uuid.UUID  `json:"propertyId"`
	BuyerID        uuid.UUID  `json:"buyerId"`
	VisitID        *uuid.UUID `json:"visitId,omitempty"`
	Amount         int64      `json:"amount"`
	CounterAmount  *int64     `json:"counterAmount,omitempty"`
	CounterBy      *Side      `json:"counterBy,omitempty"`
	CounterRounds  int        `json:"counterRounds"`
	AcceptedAmount *int64     `json:"acceptedAmount,omitempty"`
	PctVsAsking    float64    `json:"pctVsAsking"`
	Lowball        bool       `json:"lowball"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RespondedAt    *time.Time `json:"respondedAt,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	status Status
}

func New(propertyID, buyerID uuid.UUID, visitID *uuid.UUID, amount int64, ttl time.Duration, now time.Time) (*Offer, error) {
	if amount <= 0 {
		return nil, errs.Validation("offer amount must be positive")
	}
	return &Offer{
		ID:         uuid.New(),
		PropertyID: propertyID,
		BuyerID:    buyerID,
		VisitID:    visitID,
		Amount:     amount,
		ExpiresAt:  now.Add(ttl),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		status:     StatusPending,
	}, nil
}

func (o *Offer) Restore(s Status) { o.status = s }

func (o *Offer) Status() Status { return o.status }

func (o *Offer) transition(target Status) error {
	if !CanTransition(o.status, target) {
		return errs.InvalidTransition("offer", o.status, target)
	}
	o.status = target
	return nil
}

// Open reports whether the offer is still under negotiation.
func (o *Offer) Open() bool {
	return o.status == StatusPending || o.status == StatusCountered
}

// Lapsed reports an open offer past its expiry.
func (o *Offer) Lapsed(now time.Time) bool {
	return o.Open() && now.After(o.ExpiresAt)
}

func (o *Offer) Expire() error {
	return o.transition(StatusExpired)
}

// turn checks that side is the one expected to answer. A pending offer is
// always answered by the seller; a countered offer by whoever did not counter.
func (o *Offer) turn(side Side) error {
	switch o.status {
	case StatusPending:
		if side != SideSeller {
			return errs.NotAuthorized("a pending offer is answered by the seller")
		}
	case StatusCountered:
		if o.CounterBy != nil && *o.CounterBy == side {
			return errs.NotAuthorized("a counter cannot be answered by the party that proposed it")
		}
	}
	return nil
}

// Accept closes the negotiation on the standing amount and opens the
// reservation window.
func (o *Offer) Accept(side Side, window time.Duration, now time.Time) error {
	if !CanTransition(o.status, StatusAccepted) {
		return errs.InvalidTransition("offer", o.status, StatusAccepted)
	}
	if err := o.turn(side); err != nil {
		return err
	}
	amount := o.Amount
	if o.status == StatusCountered && o.CounterAmount != nil {
		amount = *o.CounterAmount
	}
	if err := o.transition(StatusAccepted); err != nil {
		return err
	}
	o.AcceptedAmount = &amount
	o.ExpiresAt = now.Add(window)
	o.RespondedAt = &now
	return nil
}

func (o *Offer) Reject(side Side, now time.Time) error {
	if !CanTransition(o.status, StatusRejected) {
		return errs.InvalidTransition("offer", o.status, StatusRejected)
	}
	if err := o.turn(side); err != nil {
		return err
	}
	o.RespondedAt = &now
	return o.transition(StatusRejected)
}

// Counter proposes a new amount and resets the expiry.
func (o *Offer) Counter(side Side, amount int64, ttl time.Duration, maxRounds int, now time.Time) error {
	if !CanTransition(o.status, StatusCountered) {
		return errs.InvalidTransition("offer", o.status, StatusCountered)
	}
	if amount <= 0 {
		return errs.Validation("counter amount must be positive")
	}
	if err := o.turn(side); err != nil {
		return err
	}
	if maxRounds > 0 && o.CounterRounds >= maxRounds {
		return errs.New(errs.KindLimitExceeded, "offer reached the limit of %d counter rounds", maxRounds)
	}
	if err := o.transition(StatusCountered); err != nil {
		return err
	}
	o.CounterAmount = &amount
	o.CounterBy = &side
	o.CounterRounds++
	o.ExpiresAt = now.Add(ttl)
	o.RespondedAt = &now
	return nil
}

// ReservableUntil is the end of the window in which an accepted offer may be
// turned into a reservation.
func (o *Offer) ReservableUntil() (time.Time, bool) {
	if o.status != StatusAccepted {
		return time.Time{}, false
	}
	return o.ExpiresAt, true
}

func (o *Offer) Override(target Status) error {
	if !ValidStatus(target) {
		return errs.Validation("unknown offer status %q", target)
	}
	o.status = target
	return nil
}

func (o Offer) MarshalJSON() ([]byte, error) {
	type alias Offer
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(o), o.status})
}
