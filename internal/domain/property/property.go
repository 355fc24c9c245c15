package property

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

// Status represents the listing lifecycle status.
type Status string

const (
	StatusDraft                  Status = "DRAFT"
	StatusPendingAssignment      Status = "PENDING_ASSIGNMENT"
	StatusAssigned               Status = "ASSIGNED"
	StatusVerificationInProgress Status = "VERIFICATION_IN_PROGRESS"
	StatusActive                 Status = "ACTIVE"
	StatusReserved               Status = "RESERVED"
	StatusInactive               Status = "INACTIVE"
	StatusSold                   Status = "SOLD"
)

// EntityType is the audit entity name for properties.
const EntityType = "PROPERTY"

var transitions = map[Status][]Status{
	StatusDraft:                  {StatusPendingAssignment},
	StatusPendingAssignment:      {StatusAssigned},
	StatusAssigned:               {StatusVerificationInProgress},
	StatusVerificationInProgress: {StatusActive, StatusDraft},
	StatusActive:                 {StatusReserved, StatusInactive},
	StatusInactive:               {StatusActive},
	StatusReserved:               {StatusSold, StatusActive},
	StatusSold:                   {},
}

// CanTransition reports whether from->to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s belongs to the declared enum.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Draft carries the seller-editable fields.
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	Location    *geo.Point `json:"location,omitempty"`
	Media       []string   `json:"media"`
}

// Property is the root aggregate of a listing.
type Property struct {
	ID              uuid.UUID  `json:"id"`
	SellerID        uuid.UUID  `json:"sellerId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Price           int64      `json:"price"`
	Location        *geo.Point `json:"location,omitempty"`
	Media           []string   `json:"media"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	status Status
}

// NewDraft creates a DRAFT property owned by the seller.
func NewDraft(sellerID uuid.UUID, d Draft, now time.Time) (*Property, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	return &Property{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Price:       d.Price,
		Location:    d.Location,
		Media:       append([]string(nil), d.Media...),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		status:      StatusDraft,
	}, nil
}

// Restore sets the persisted status when a storage adapter loads a row.
func (p *Property) Restore(s Status) {
	p.status = s
}

func (p *Property) Status() Status {
	return p.status
}

// Missing lists the required fields that are not populated yet.
func (p *Property) Missing() []string {
	var missing []string
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if p.Price <= 0 {
		missing = append(missing, "price")
	}
	if p.Location == nil {
		missing = append(missing, "location")
	}
	if len(p.Media) == 0 {
		missing = append(missing, "media")
	}
	return missing
}

// CanTransitionTo validates a status transition from the current status.
func (p *Property) CanTransitionTo(target Status) bool {
	return CanTransition(p.status, target)
}

func (p *Property) transition(target Status) error {
	if !p.CanTransitionTo(target) {
		return errs.InvalidTransition("property", p.status, target)
	}
	p.status = target
	return nil
}

// RequestAssignment moves a complete draft to PENDING_ASSIGNMENT.
func (p *Property) RequestAssignment() error {
	if p.status != StatusDraft {
		return errs.InvalidTransition("property", p.status, StatusPendingAssignment)
	}
	if err := p.CheckComplete(); err != nil {
		return err
	}
	p.RejectionReason = nil
	return p.transition(StatusPendingAssignment)
}

// CheckComplete fails with KindIncompleteProperty naming every missing field.
func (p *Property) CheckComplete() error {
	if missing := p.Missing(); len(missing) > 0 {
		return errs.New(errs.KindIncompleteProperty, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Assign records the accepting agent.
func (p *Property) Assign(agentID uuid.UUID) error {
	if err := p.transition(StatusAssigned); err != nil {
		return err
	}
	p.AssignedAgentID = &agentID
	return nil
}

func (p *Property) StartVerification() error {
	return p.transition(StatusVerificationInProgress)
}

// Approve publishes the listing.
func (p *Property) Approve() error {
	return p.transition(StatusActive)
}

// Reject returns the listing to the seller with the agent's reason and releases the agent.
func (p *Property) Reject(reason string) error {
	if err := p.transition(StatusDraft); err != nil {
		return err
	}
	p.RejectionReason = &reason
	p.AssignedAgentID = nil
	return nil
}

// SetListed toggles ACTIVE and INACTIVE.
func (p *Property) SetListed(active bool) error {
	if active {
		if p.status != StatusInactive {
			return errs.InvalidTransition("property", p.status, StatusActive)
		}
		return p.transition(StatusActive)
	}
	if p.status != StatusActive {
		return errs.InvalidTransition("property", p.status, StatusInactive)
	}
	return p.transition(StatusInactive)
}

func (p *Property) Reserve() error {
	return p.transition(StatusReserved)
}

// Release returns a reserved property to ACTIVE after cancellation or expiry.
func (p *Property) Release() error {
	if p.status != StatusReserved {
		return errs.InvalidTransition("property", p.status, StatusActive)
	}
	return p.transition(StatusActive)
}

func (p *Property) MarkSold() error {
	return p.transition(StatusSold)
}

// Override bypasses the graph. Only the admin surface calls it.
func (p *Property) Override(target Status) error {
	if !ValidStatus(target) {
		return errs.Validation("unknown property status %q", target)
	}
	p.status = target
	return nil
}

// UpdateDraft replaces the editable fields while the property is a draft.
func (p *Property) UpdateDraft(d Draft) error {
	if p.status != StatusDraft {
		return errs.New(errs.KindInvalidTransition, "property %s can only be edited as a draft", p.status)
	}
	if err := validateDraft(d); err != nil {
		return err
	}
	p.Title = strings.TrimSpace(d.Title)
	p.Description = d.Description
	p.Price = d.Price
	p.Location = d.Location
	p.Media = append([]string(nil), d.Media...)
	return nil
}

// UpdatePrice changes the asking price. Reservations keep the price they snapshotted.
func (p *Property) UpdatePrice(price int64) error {
	if p.status == StatusSold {
		return errs.New(errs.KindInvalidTransition, "sold property price is final")
	}
	if price <= 0 {
		return errs.Validation("price must be positive")
	}
	p.Price = price
	return nil
}

// Visible reports whether buyers can find the property.
func (p *Property) Visible() bool {
	return p.status == StatusActive
}

func (p Property) MarshalJSON() ([]byte, error) {
	type alias Property
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(p), p.status})
}

func validateDraft(d Draft) error {
	if d.Price < 0 {
		return errs.Validation("price must not be negative")
	}
	if d.Location != nil && !d.Location.Valid() {
		return errs.Validation("location out of range")
	}
	return nil
}
