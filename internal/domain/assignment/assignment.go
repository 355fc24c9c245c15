package assignment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

// Status represents the agent hand-off status.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
)

const EntityType = "AGENT_ASSIGNMENT"

var transitions = map[Status][]Status{
	StatusRequested: {StatusAccepted, StatusDeclined},
	StatusAccepted:  {},
	StatusDeclined:  {},
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

// SLA tiers by distance from the agent's base to the property.
var tiers = []struct {
	maxKm float64
	sla   time.Duration
}{
	{maxKm: 20, sla: 24 * time.Hour},
	{maxKm: 50, sla: 48 * time.Hour},
	{maxKm: geo.ServiceAreaKm, sla: 72 * time.Hour},
}

// TierFor returns the SLA window for a distance, or OUT_OF_SERVICE_AREA beyond 100km.
func TierFor(distanceKm float64) (time.Duration, error) {
	if distanceKm < 0 {
		return 0, errs.Validation("distance must not be negative")
	}
	for _, t := range tiers {
		if distanceKm <= t.maxKm {
			return t.sla, nil
		}
	}
	return 0, errs.New(errs.KindOutOfServiceArea, "agent is %.1fkm from the property (limit %.0fkm)", distanceKm, geo.ServiceAreaKm)
}

// Assignment is a seller-to-agent hand-off for one property.
type Assignment struct {
	ID               uuid.UUID     `json:"id"`
	PropertyID       uuid.UUID     `json:"propertyId"`
	AgentID          uuid.UUID     `json:"agentId"`
	DistanceKm       float64       `json:"distanceKm"`
	SLATier          time.Duration `json:"slaTier"`
	SLADeadline      *time.Time    `json:"slaDeadline,omitempty"`
	DeclineReason    *string       `json:"declineReason,omitempty"`
	RespondedAt      *time.Time    `json:"respondedAt,omitempty"`
	ReleasedAt       *time.Time    `json:"releasedAt,omitempty"`
	BreachReportedAt *time.Time    `json:"breachReportedAt,omitempty"`
	Version          int           `json:"version"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`

	status Status
}

// New validates the distance and fixes the SLA tier for the request.
func New(propertyID, agentID uuid.UUID, distanceKm float64, now time.Time) (*Assignment, error) {
	tier, err := TierFor(distanceKm)
	if err != nil {
		return nil, err
	}
	return &Assignment{
		ID:         uuid.New(),
		PropertyID: propertyID,
		AgentID:    agentID,
		DistanceKm: distanceKm,
		SLATier:    tier,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		status:     StatusRequested,
	}, nil
}

func (a *Assignment) Restore(s Status) { a.status = s }

func (a *Assignment) Status() Status { return a.status }

func (a *Assignment) transition(target Status) error {
	if !CanTransition(a.status, target) {
		return errs.InvalidTransition("assignment", a.status, target)
	}
	a.status = target
	return nil
}

// Accept starts the SLA clock. The deadline is written once and never moved.
func (a *Assignment) Accept(now time.Time) error {
	if err := a.transition(StatusAccepted); err != nil {
		return err
	}
	if a.SLADeadline == nil {
		deadline := now.Add(a.SLATier)
		a.SLADeadline = &deadline
	}
	a.RespondedAt = &now
	return nil
}

func (a *Assignment) Decline(reason string, now time.Time) error {
	if err := a.transition(StatusDeclined); err != nil {
		return err
	}
	if reason != "" {
		a.DeclineReason = &reason
	}
	a.RespondedAt = &now
	return nil
}

// Release ends an accepted assignment without a status change, e.g. after the
// agent rejected the listing. A released assignment no longer counts as active.
func (a *Assignment) Release(now time.Time) error {
	if a.status != StatusAccepted || a.ReleasedAt != nil {
		return errs.New(errs.KindInvalidTransition, "assignment %s cannot be released", a.status)
	}
	a.ReleasedAt = &now
	return nil
}

// Active reports whether the assignment still holds the property.
func (a *Assignment) Active() bool {
	return a.status != StatusDeclined && a.ReleasedAt == nil
}

// Breached reports an accepted assignment past its SLA that has not been reported yet.
func (a *Assignment) Breached(now time.Time) bool {
	return a.status == StatusAccepted &&
		a.ReleasedAt == nil &&
		a.BreachReportedAt == nil &&
		a.SLADeadline != nil &&
		now.After(*a.SLADeadline)
}

func (a *Assignment) MarkBreachReported(now time.Time) {
	a.BreachReportedAt = &now
}

func (a *Assignment) Override(target Status) error {
	if !ValidStatus(target) {
		return errs.Validation("unknown assignment status %q", target)
	}
	a.status = target
	return nil
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	type alias Assignment
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(a), a.status})
}
