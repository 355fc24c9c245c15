package visit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

// Status represents the visit request status.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCountered Status = "COUNTERED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

const EntityType = "VISIT"

var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCountered, StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCountered: {StatusApproved, StatusCancelled, StatusCountered},
	StatusCheckedIn: {StatusCompleted},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
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

// Side identifies who proposed the current counter date.
type Side string

const (
	SideBuyer Side = "BUYER"
	SideAgent Side = "AGENT"
)

// Visit is a buyer's request to see a property with its assigned agent.
type Visit struct {
	ID               uuid.UUID  `json:"id"`
	PropertyID       uuid.UUID  `json:"propertyId"`
	BuyerID          uuid.UUID  `json:"buyerId"`
	AgentID          uuid.UUID  `json:"agentId"`
	PreferredDate    time.Time  `json:"preferredDate"`
	ConfirmedDate    *time.Time `json:"confirmedDate,omitempty"`
	CounterDate      *time.Time `json:"counterDate,omitempty"`
	CounterMessage   *string    `json:"counterMessage,omitempty"`
	CounterBy        *Side      `json:"counterBy,omitempty"`
	CounterRounds    int        `json:"counterRounds"`
	Reason           *string    `json:"reason,omitempty"`
	CheckInDistanceM *float64   `json:"checkInDistanceM,omitempty"`
	CheckedInAt      *time.Time `json:"checkedInAt,omitempty"`
	OTPHash          *string    `json:"-"`
	OTPExpiresAt     *time.Time `json:"otpExpiresAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	status Status
}

func New(propertyID, buyerID, agentID uuid.UUID, preferred, now time.Time) (*Visit, error) {
	if preferred.Before(now) {
		return nil, errs.Validation("preferred date must be in the future")
	}
	return &Visit{
		ID:            uuid.New(),
		PropertyID:    propertyID,
		BuyerID:       buyerID,
		AgentID:       agentID,
		PreferredDate: preferred,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		status:        StatusRequested,
	}, nil
}

func (v *Visit) Restore(s Status) { v.status = s }

func (v *Visit) Status() Status { return v.status }

func (v *Visit) transition(target Status) error {
	if !CanTransition(v.status, target) {
		return errs.InvalidTransition("visit", v.status, target)
	}
	v.status = target
	return nil
}

func (v *Visit) Approve(confirmed time.Time) error {
	if v.status != StatusRequested {
		return errs.InvalidTransition("visit", v.status, StatusApproved)
	}
	if err := v.transition(StatusApproved); err != nil {
		return err
	}
	v.ConfirmedDate = &confirmed
	return nil
}

func (v *Visit) Reject(reason string) error {
	if err := v.transition(StatusRejected); err != nil {
		return err
	}
	v.Reason = &reason
	return nil
}

// Counter proposes a new date. Parties alternate, and at most maxRounds
// counters are allowed per visit.
func (v *Visit) Counter(by Side, date time.Time, message string, maxRounds int) error {
	if v.status != StatusApproved && v.status != StatusCountered {
		return errs.InvalidTransition("visit", v.status, StatusCountered)
	}
	if v.status == StatusCountered && v.CounterBy != nil && *v.CounterBy == by {
		return errs.New(errs.KindInvalidTransition, "waiting for the other party to answer the counter")
	}
	if maxRounds > 0 && v.CounterRounds >= maxRounds {
		return errs.New(errs.KindLimitExceeded, "visit reached the limit of %d counter rounds", maxRounds)
	}
	if err := v.transition(StatusCountered); err != nil {
		return err
	}
	v.CounterDate = &date
	v.CounterBy = &by
	v.CounterRounds++
	if message != "" {
		v.CounterMessage = &message
	} else {
		v.CounterMessage = nil
	}
	return nil
}

// RespondToCounter is answered by the party that did not counter. Accepting
// confirms the counter date; rejecting cancels the visit.
func (v *Visit) RespondToCounter(by Side, accept bool) error {
	if v.status != StatusCountered {
		return errs.InvalidTransition("visit", v.status, StatusApproved)
	}
	if v.CounterBy != nil && *v.CounterBy == by {
		return errs.NotAuthorized("a counter cannot be answered by the party that proposed it")
	}
	if !accept {
		return v.transition(StatusCancelled)
	}
	if err := v.transition(StatusApproved); err != nil {
		return err
	}
	v.ConfirmedDate = v.CounterDate
	return nil
}

func (v *Visit) Cancel(reason string) error {
	if err := v.transition(StatusCancelled); err != nil {
		return err
	}
	if reason != "" {
		v.Reason = &reason
	}
	return nil
}

// CheckIn records the agent on site and stores the hash of the buyer's code.
func (v *Visit) CheckIn(distanceM float64, otpHash string, otpExpiresAt, now time.Time) error {
	if err := v.transition(StatusCheckedIn); err != nil {
		return err
	}
	v.CheckInDistanceM = &distanceM
	v.CheckedInAt = &now
	v.OTPHash = &otpHash
	v.OTPExpiresAt = &otpExpiresAt
	return nil
}

// ReissueOTP replaces the check-in code while the visit is still CHECKED_IN.
func (v *Visit) ReissueOTP(otpHash string, otpExpiresAt time.Time) error {
	if v.status != StatusCheckedIn {
		return errs.New(errs.KindInvalidTransition, "visit %s has no check-in code to reissue", v.status)
	}
	v.OTPHash = &otpHash
	v.OTPExpiresAt = &otpExpiresAt
	return nil
}

// OTPExpired reports whether the current check-in code is past its validity.
func (v *Visit) OTPExpired(now time.Time) bool {
	return v.OTPExpiresAt == nil || now.After(*v.OTPExpiresAt)
}

func (v *Visit) Complete(now time.Time) error {
	if err := v.transition(StatusCompleted); err != nil {
		return err
	}
	v.CompletedAt = &now
	v.OTPHash = nil
	return nil
}

// MarkNoShow closes an approved visit whose confirmed date has passed.
func (v *Visit) MarkNoShow(now time.Time) error {
	if v.status != StatusApproved {
		return errs.InvalidTransition("visit", v.status, StatusNoShow)
	}
	if v.ConfirmedDate == nil || !v.ConfirmedDate.Before(now) {
		return errs.New(errs.KindInvalidTransition, "visit date has not passed yet")
	}
	return v.transition(StatusNoShow)
}

func (v *Visit) Override(target Status) error {
	if !ValidStatus(target) {
		return errs.Validation("unknown visit status %q", target)
	}
	v.status = target
	return nil
}

func (v Visit) MarshalJSON() ([]byte, error) {
	type alias Visit
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(v), v.status})
}
