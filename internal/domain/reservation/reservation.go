package reservation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

// Status represents the reservation status.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

const (
	EntityType = "RESERVATION"
	// RegistrationEntityType audits the registration sub-flow of a reservation.
	RegistrationEntityType = "REGISTRATION"
)

var transitions = map[Status][]Status{
	StatusActive:    {StatusExpired, StatusCancelled, StatusCompleted},
	StatusExpired:   {},
	StatusCancelled: {},
	StatusCompleted: {},
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

// Stage is the registration progress inside an ACTIVE reservation.
type Stage string

const (
	StageNone            Stage = ""
	StageSlotProposed    Stage = "SLOT_PROPOSED"
	StageSlotAccepted    Stage = "SLOT_ACCEPTED"
	StageBuyerOTPIssued  Stage = "BUYER_OTP_ISSUED"
	StageBuyerVerified   Stage = "BUYER_VERIFIED"
	StageSellerOTPIssued Stage = "SELLER_OTP_ISSUED"
	StageSellerVerified  Stage = "SELLER_VERIFIED"
	StagePaid            Stage = "PAID"
)

var stageTransitions = map[Stage][]Stage{
	StageNone:            {StageSlotProposed},
	StageSlotProposed:    {StageSlotProposed, StageSlotAccepted},
	StageSlotAccepted:    {StageBuyerOTPIssued},
	StageBuyerOTPIssued:  {StageBuyerOTPIssued, StageBuyerVerified},
	StageBuyerVerified:   {StageSellerOTPIssued},
	StageSellerOTPIssued: {StageSellerOTPIssued, StageSellerVerified},
	StageSellerVerified:  {StagePaid},
	StagePaid:            {},
}

func CanAdvance(from, to Stage) bool {
	for _, s := range stageTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidStage(s Stage) bool {
	_, ok := stageTransitions[s]
	return ok
}

// Reservation holds a property for a buyer after the token payment cleared.
type Reservation struct {
	ID               uuid.UUID  `json:"id"`
	OfferID          uuid.UUID  `json:"offerId"`
	PropertyID       uuid.UUID  `json:"propertyId"`
	BuyerID          uuid.UUID  `json:"buyerId"`
	SellerID         uuid.UUID  `json:"sellerId"`
	AgentID          uuid.UUID  `json:"agentId"`
	PriceSnapshot    int64      `json:"priceSnapshot"`
	TokenAmount      int64      `json:"tokenAmount"`
	TokenPaymentRef  string     `json:"tokenPaymentRef"`
	Stage            Stage      `json:"stage"`
	SlotProposed     *time.Time `json:"registrationSlotProposed,omitempty"`
	SlotAcceptedAt   *time.Time `json:"registrationSlotAcceptedAt,omitempty"`
	OTPHash          *string    `json:"-"`
	OTPExpiresAt     *time.Time `json:"otpExpiresAt,omitempty"`
	BuyerVerifiedAt  *time.Time `json:"buyerVerifiedAt,omitempty"`
	SellerVerifiedAt *time.Time `json:"registrationVerifiedAt,omitempty"`
	CancelReason     *string    `json:"cancelReason,omitempty"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	status Status
}

// Params carries the snapshot taken when the token payment clears.
type Params struct {
	OfferID         uuid.UUID
	PropertyID      uuid.UUID
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	AgentID         uuid.UUID
	Price           int64
	TokenPaymentRef string
}

// New fixes the token amount from the price snapshot; it is never recomputed.
func New(p Params, window time.Duration, now time.Time) *Reservation {
	return &Reservation{
		ID:              uuid.New(),
		OfferID:         p.OfferID,
		PropertyID:      p.PropertyID,
		BuyerID:         p.BuyerID,
		SellerID:        p.SellerID,
		AgentID:         p.AgentID,
		PriceSnapshot:   p.Price,
		TokenAmount:     TokenAmount(p.Price),
		TokenPaymentRef: p.TokenPaymentRef,
		Stage:           StageNone,
		ExpiresAt:       now.Add(window),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		status:          StatusActive,
	}
}

func (r *Reservation) Restore(s Status) { r.status = s }

func (r *Reservation) Status() Status { return r.status }

// Lapsed reports an ACTIVE reservation whose window has ended.
func (r *Reservation) Lapsed(now time.Time) bool {
	return r.status == StatusActive && now.After(r.ExpiresAt)
}

// FinalPaymentDue is the amount the seller pays at registration.
func (r *Reservation) FinalPaymentDue() int64 {
	return FinalPaymentAmount(r.PriceSnapshot)
}

func (r *Reservation) transition(target Status, now time.Time) error {
	if !CanTransition(r.status, target) {
		return errs.InvalidTransition("reservation", r.status, target)
	}
	r.status = target
	r.ClosedAt = &now
	r.OTPHash = nil
	return nil
}

func (r *Reservation) Expire(now time.Time) error {
	return r.transition(StatusExpired, now)
}

func (r *Reservation) Cancel(reason string, now time.Time) error {
	if err := r.transition(StatusCancelled, now); err != nil {
		return err
	}
	if reason != "" {
		r.CancelReason = &reason
	}
	return nil
}

func (r *Reservation) advance(to Stage) error {
	if r.status != StatusActive {
		return errs.New(errs.KindInvalidTransition, "reservation is %s", r.status)
	}
	if !CanAdvance(r.Stage, to) {
		return errs.InvalidTransition("registration", stageName(r.Stage), to)
	}
	r.Stage = to
	return nil
}

func (r *Reservation) ProposeSlot(slot time.Time) error {
	if err := r.advance(StageSlotProposed); err != nil {
		return err
	}
	r.SlotProposed = &slot
	return nil
}

func (r *Reservation) AcceptSlot(now time.Time) error {
	if err := r.advance(StageSlotAccepted); err != nil {
		return err
	}
	r.SlotAcceptedAt = &now
	return nil
}

// OTPRecipient tells which party the next registration code is for.
// Buyer codes come first; the seller code is only issued after the buyer verified.
func (r *Reservation) OTPRecipient() (Stage, error) {
	switch r.Stage {
	case StageSlotAccepted, StageBuyerOTPIssued:
		return StageBuyerOTPIssued, nil
	case StageBuyerVerified, StageSellerOTPIssued:
		return StageSellerOTPIssued, nil
	default:
		return "", errs.New(errs.KindInvalidTransition, "registration %s does not take a code", stageName(r.Stage))
	}
}

// IssueOTP stores the hash of a freshly issued code for the given stage.
func (r *Reservation) IssueOTP(stage Stage, hash string, expiresAt time.Time) error {
	if stage != StageBuyerOTPIssued && stage != StageSellerOTPIssued {
		return errs.Validation("stage %s does not issue a code", stage)
	}
	if err := r.advance(stage); err != nil {
		return err
	}
	r.OTPHash = &hash
	r.OTPExpiresAt = &expiresAt
	return nil
}

func (r *Reservation) OTPExpired(now time.Time) bool {
	return r.OTPExpiresAt == nil || now.After(*r.OTPExpiresAt)
}

func (r *Reservation) VerifyBuyer(now time.Time) error {
	if err := r.advance(StageBuyerVerified); err != nil {
		return err
	}
	r.BuyerVerifiedAt = &now
	r.OTPHash = nil
	return nil
}

func (r *Reservation) VerifySeller(now time.Time) error {
	if err := r.advance(StageSellerVerified); err != nil {
		return err
	}
	r.SellerVerifiedAt = &now
	r.OTPHash = nil
	return nil
}

// Complete closes the reservation after the final payment.
func (r *Reservation) Complete(now time.Time) error {
	if r.Stage != StageSellerVerified {
		return errs.New(errs.KindInvalidTransition, "both registration codes must be verified before payment")
	}
	if err := r.advance(StagePaid); err != nil {
		return err
	}
	return r.transition(StatusCompleted, now)
}

func (r *Reservation) Override(target Status) error {
	if !ValidStatus(target) {
		return errs.Validation("unknown reservation status %q", target)
	}
	r.status = target
	return nil
}

func (r Reservation) MarshalJSON() ([]byte, error) {
	type alias Reservation
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(r), r.status})
}

func stageName(s Stage) string {
	if s == StageNone {
		return "NONE"
	}
	return string(s)
}
