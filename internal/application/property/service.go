package property

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

// SearchIndex lists the ids of buyer-visible properties.
type SearchIndex interface {
	ActiveIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error)
}

// Service drives the property lifecycle.
type Service struct {
	runner *txn.Runner
	index  SearchIndex
	logger zerolog.Logger
}

func NewService(runner *txn.Runner, index SearchIndex, logger zerolog.Logger) *Service {
	return &Service{
		runner: runner,
		index:  index,
		logger: logger.With().Str("service", "property").Logger(),
	}
}

func load(u *txn.Unit, id uuid.UUID) (*property.Property, error) {
	p, err := u.Repos.Properties.GetByID(u.Context(), id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("property", id)
	}
	return p, nil
}

func save(u *txn.Unit, p *property.Property, from property.Status) error {
	p.UpdatedAt = u.Now
	return u.Repos.Properties.Update(u.Context(), p, from)
}

func recordTransition(u *txn.Unit, p *property.Property, from property.Status, reason string) {
	var agentID uuid.UUID
	if p.AssignedAgentID != nil {
		agentID = *p.AssignedAgentID
	}
	u.Record(txn.Transition{
		Entity:     property.EntityType,
		EntityID:   p.ID,
		PropertyID: p.ID,
		From:       string(from),
		To:         string(p.Status()),
		Reason:     reason,
		Recipients: []uuid.UUID{p.SellerID, agentID},
	})
}

func subject(p *property.Property) access.Subject {
	subj := access.Subject{SellerID: p.SellerID}
	if p.AssignedAgentID != nil {
		subj.AgentID = *p.AssignedAgentID
	}
	return subj
}

// CreateDraft creates a DRAFT owned by the calling seller.
func (s *Service) CreateDraft(ctx context.Context, actor user.Actor, d property.Draft) (*property.Property, error) {
	if _, err := access.Check(actor, access.ActCreateDraft, access.Subject{SellerID: actor.ID}); err != nil {
		return nil, err
	}
	var created *property.Property
	err := s.runner.Run(ctx, "property.create_draft", actor, func(u *txn.Unit) error {
		p, err := property.NewDraft(actor.ID, d, u.Now)
		if err != nil {
			return err
		}
		if err := u.Repos.Properties.Create(u.Context(), p); err != nil {
			return err
		}
		recordTransition(u, p, "", "")
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("propertyId", created.ID.String()).Str("sellerId", actor.ID.String()).Msg("draft created")
	return created, nil
}

func (s *Service) UpdateDraft(ctx context.Context, actor user.Actor, id uuid.UUID, d property.Draft) (*property.Property, error) {
	var out *property.Property
	err := s.runner.Run(ctx, "property.update_draft", actor, func(u *txn.Unit) error {
		p, err := load(u, id)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActEditProperty, subject(p)); err != nil {
			return err
		}
		if err := p.UpdateDraft(d); err != nil {
			return err
		}
		out = p
		return save(u, p, p.Status())
	})
	return out, err
}

// UpdatePrice changes the asking price. Existing reservations keep their snapshot.
func (s *Service) UpdatePrice(ctx context.Context, actor user.Actor, id uuid.UUID, price int64) (*property.Property, error) {
	var out *property.Property
	err := s.runner.Run(ctx, "property.update_price", actor, func(u *txn.Unit) error {
		p, err := load(u, id)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActEditProperty, subject(p)); err != nil {
			return err
		}
		if err := p.UpdatePrice(price); err != nil {
			return err
		}
		out = p
		return save(u, p, p.Status())
	})
	return out, err
}

// RequestAgentAssignment hands a complete draft to an agent. It is also used to
// pick another agent while the property waits in PENDING_ASSIGNMENT after a decline.
func (s *Service) RequestAgentAssignment(ctx context.Context, actor user.Actor, propertyID, agentID uuid.UUID) (*assignment.Assignment, error) {
	var created *assignment.Assignment
	err := s.runner.Run(ctx, "property.request_agent_assignment", actor, func(u *txn.Unit) error {
		p, err := load(u, propertyID)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActRequestAssignment, subject(p)); err != nil {
			return err
		}

		from := p.Status()
		switch from {
		case property.StatusDraft:
			if err := p.RequestAssignment(); err != nil {
				return err
			}
		case property.StatusPendingAssignment:
			// An admin override can land an unfinished draft here.
			if err := p.CheckComplete(); err != nil {
				return err
			}
			active, err := u.Repos.Assignments.FindActiveByProperty(u.Context(), p.ID)
			if err != nil {
				return err
			}
			if active != nil {
				return errs.New(errs.KindInvalidTransition, "property already has an open assignment %s", active.ID)
			}
		default:
			return errs.InvalidTransition("property", from, property.StatusPendingAssignment)
		}

		profile, err := u.Repos.Agents.Get(u.Context(), agentID)
		if err != nil {
			return err
		}
		if profile == nil {
			return errs.NotFound("agent", agentID)
		}
		if !profile.Verified {
			return errs.Validation("agent %s is not verified", agentID)
		}

		a, err := assignment.New(p.ID, agentID, geo.DistanceKm(profile.Base, *p.Location), u.Now)
		if err != nil {
			return err
		}
		if err := u.Repos.Assignments.Create(u.Context(), a); err != nil {
			return err
		}
		if from != p.Status() {
			if err := save(u, p, from); err != nil {
				return err
			}
			recordTransition(u, p, from, "")
		}
		u.Record(txn.Transition{
			Entity:     assignment.EntityType,
			EntityID:   a.ID,
			PropertyID: p.ID,
			From:       "",
			To:         string(a.Status()),
			Recipients: []uuid.UUID{p.SellerID, a.AgentID},
		})
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("propertyId", propertyID.String()).
		Str("agentId", agentID.String()).
		Float64("distanceKm", created.DistanceKm).
		Dur("slaTier", created.SLATier).
		Msg("agent assignment requested")
	return created, nil
}

// StartVerification is the assigned agent beginning the on-site check.
func (s *Service) StartVerification(ctx context.Context, actor user.Actor, propertyID uuid.UUID) (*property.Property, error) {
	var out *property.Property
	err := s.runner.Run(ctx, "property.start_verification", actor, func(u *txn.Unit) error {
		p, err := load(u, propertyID)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActStartVerification, subject(p)); err != nil {
			return err
		}
		from := p.Status()
		if err := p.StartVerification(); err != nil {
			return err
		}
		if err := save(u, p, from); err != nil {
			return err
		}
		recordTransition(u, p, from, "")
		out = p
		return nil
	})
	return out, err
}

// SubmitVerificationResult publishes the listing or returns it to the seller.
// A rejection releases the agent so the seller can request a new assignment.
func (s *Service) SubmitVerificationResult(ctx context.Context, actor user.Actor, propertyID uuid.UUID, approved bool, reason string) (*property.Property, error) {
	reason = strings.TrimSpace(reason)
	if !approved && reason == "" {
		return nil, errs.Validation("a rejection needs a reason")
	}
	var out *property.Property
	err := s.runner.Run(ctx, "property.submit_verification_result", actor, func(u *txn.Unit) error {
		p, err := load(u, propertyID)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActSubmitVerification, subject(p)); err != nil {
			return err
		}
		from := p.Status()
		if from != property.StatusVerificationInProgress {
			target := property.StatusActive
			if !approved {
				target = property.StatusDraft
			}
			return errs.InvalidTransition("property", from, target)
		}
		// Notify the agent before Reject clears the assignment.
		agentID := *p.AssignedAgentID
		if approved {
			if err := p.Approve(); err != nil {
				return err
			}
		} else {
			if err := p.Reject(reason); err != nil {
				return err
			}
			active, err := u.Repos.Assignments.FindActiveByProperty(u.Context(), p.ID)
			if err != nil {
				return err
			}
			if active != nil {
				if err := active.Release(u.Now); err != nil {
					return err
				}
				active.UpdatedAt = u.Now
				if err := u.Repos.Assignments.Update(u.Context(), active, active.Status()); err != nil {
					return err
				}
			}
		}
		if err := save(u, p, from); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     property.EntityType,
			EntityID:   p.ID,
			PropertyID: p.ID,
			From:       string(from),
			To:         string(p.Status()),
			Reason:     reason,
			Recipients: []uuid.UUID{p.SellerID, agentID},
		})
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("propertyId", propertyID.String()).Bool("approved", approved).Msg("verification submitted")
	return out, nil
}

// SetListed toggles a listing between ACTIVE and INACTIVE.
func (s *Service) SetListed(ctx context.Context, actor user.Actor, propertyID uuid.UUID, active bool) (*property.Property, error) {
	var out *property.Property
	err := s.runner.Run(ctx, "property.set_listed", actor, func(u *txn.Unit) error {
		p, err := load(u, propertyID)
		if err != nil {
			return err
		}
		if _, err := access.Check(actor, access.ActToggleListing, subject(p)); err != nil {
			return err
		}
		from := p.Status()
		if err := p.SetListed(active); err != nil {
			return err
		}
		if err := save(u, p, from); err != nil {
			return err
		}
		recordTransition(u, p, from, "")
		out = p
		return nil
	})
	return out, err
}

// Get returns a property. Anyone may see an ACTIVE listing; other states are
// visible to its seller, its agent and admins.
func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*property.Property, error) {
	p, err := s.runner.Repos().Properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("property", id)
	}
	if p.Visible() {
		return p, nil
	}
	if _, err := access.Check(actor, access.ActView, subject(p)); err != nil {
		return nil, errs.NotFound("property", id)
	}
	return p, nil
}

// SearchActive lists buyer-visible properties, from the search index when one is configured.
func (s *Service) SearchActive(ctx context.Context, limit, offset int) ([]*property.Property, error) {
	repo := s.runner.Repos().Properties
	if s.index != nil {
		ids, err := s.index.ActiveIDs(ctx, limit, offset)
		if err == nil {
			props, err := repo.ListByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			out := props[:0]
			for _, p := range props {
				if p.Visible() {
					out = append(out, p)
				}
			}
			return out, nil
		}
		s.logger.Warn().Err(err).Msg("search index unavailable, falling back to storage")
	}
	return repo.ListByStatus(ctx, property.StatusActive, limit, offset)
}
