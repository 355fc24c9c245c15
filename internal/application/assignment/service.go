package assignment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/access"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

const sweepBatch = 200

// Service drives the agent hand-off.
type Service struct {
	runner *txn.Runner
	batch  int
	logger zerolog.Logger
}

func NewService(runner *txn.Runner, logger zerolog.Logger) *Service {
	return &Service{
		runner: runner,
		batch:  sweepBatch,
		logger: logger.With().Str("service", "assignment").Logger(),
	}
}

// WithSweepBatch sets how many rows the breach sweep reads per page.
func (s *Service) WithSweepBatch(n int) *Service {
	s.batch = n
	return s
}

// RespondToAssignment records the targeted agent's answer. Accepting moves the
// property to ASSIGNED and starts the SLA clock; declining leaves it in
// PENDING_ASSIGNMENT so the seller can pick another agent.
func (s *Service) RespondToAssignment(ctx context.Context, actor user.Actor, assignmentID uuid.UUID, accept bool, reason string) (*assignment.Assignment, error) {
	var out *assignment.Assignment
	err := s.runner.Run(ctx, "assignment.respond", actor, func(u *txn.Unit) error {
		a, err := u.Repos.Assignments.GetByID(u.Context(), assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return errs.NotFound("assignment", assignmentID)
		}
		if _, err := access.Check(actor, access.ActRespondAssignment, access.Subject{AgentID: a.AgentID}); err != nil {
			return err
		}
		p, err := u.Repos.Properties.GetByID(u.Context(), a.PropertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return errs.NotFound("property", a.PropertyID)
		}

		from := a.Status()
		if accept {
			if err := a.Accept(u.Now); err != nil {
				return err
			}
		} else if err := a.Decline(reason, u.Now); err != nil {
			return err
		}
		a.UpdatedAt = u.Now
		if err := u.Repos.Assignments.Update(u.Context(), a, from); err != nil {
			return err
		}
		u.Record(txn.Transition{
			Entity:     assignment.EntityType,
			EntityID:   a.ID,
			PropertyID: p.ID,
			From:       string(from),
			To:         string(a.Status()),
			Reason:     reason,
			Recipients: []uuid.UUID{p.SellerID, a.AgentID},
		})

		if accept {
			pFrom := p.Status()
			if err := p.Assign(a.AgentID); err != nil {
				return err
			}
			p.UpdatedAt = u.Now
			if err := u.Repos.Properties.Update(u.Context(), p, pFrom); err != nil {
				return err
			}
			u.Record(txn.Transition{
				Entity:     property.EntityType,
				EntityID:   p.ID,
				PropertyID: p.ID,
				From:       string(pFrom),
				To:         string(p.Status()),
				Recipients: []uuid.UUID{p.SellerID, a.AgentID},
			})
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("assignmentId", assignmentID.String()).
		Bool("accepted", accept).
		Msg("assignment answered")
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*assignment.Assignment, error) {
	repos := s.runner.Repos()
	a, err := repos.Assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errs.NotFound("assignment", id)
	}
	p, err := repos.Properties.GetByID(ctx, a.PropertyID)
	if err != nil {
		return nil, err
	}
	subj := access.Subject{AgentID: a.AgentID}
	if p != nil {
		subj.SellerID = p.SellerID
	}
	if _, err := access.Check(actor, access.ActView, subj); err != nil {
		return nil, errs.NotFound("assignment", id)
	}
	return a, nil
}

// ListForAgent is the agent's inbox.
func (s *Service) ListForAgent(ctx context.Context, actor user.Actor, agentID uuid.UUID, limit, offset int) ([]*assignment.Assignment, error) {
	if _, err := access.Check(actor, access.ActView, access.Subject{AgentID: agentID}); err != nil {
		return nil, err
	}
	return s.runner.Repos().Assignments.ListByAgent(ctx, agentID, limit, offset)
}

// DetectSLABreaches reports accepted assignments past their deadline to the
// seller and admins. It changes no status and reports each breach once.
// Marked rows drop out of the listing, so pages are read until one comes back
// short or marked nothing.
func (s *Service) DetectSLABreaches(ctx context.Context) (int, error) {
	reported := 0
	for {
		candidates, err := s.runner.Repos().Assignments.ListBreached(ctx, s.runner.Now(), s.batch)
		if err != nil {
			return reported, err
		}
		marked := 0
		for _, c := range candidates {
			done, notified, err := s.reportBreach(ctx, c.ID)
			if errors.Is(err, errs.ErrStale) {
				continue
			}
			if err != nil {
				return reported, err
			}
			if done {
				marked++
			}
			if notified {
				reported++
			}
		}
		if len(candidates) < s.batch || marked == 0 {
			return reported, nil
		}
	}
}

// reportBreach marks one breached assignment as reported. It notifies only
// while the agent still holds an unverified listing.
func (s *Service) reportBreach(ctx context.Context, id uuid.UUID) (marked, notified bool, err error) {
	err = s.runner.Run(ctx, "assignment.sla_breach", user.System(), func(u *txn.Unit) error {
		a, err := u.Repos.Assignments.GetByID(u.Context(), id)
		if err != nil {
			return err
		}
		if a == nil || !a.Breached(u.Now) {
			return nil
		}
		p, err := u.Repos.Properties.GetByID(u.Context(), a.PropertyID)
		if err != nil {
			return err
		}
		a.MarkBreachReported(u.Now)
		a.UpdatedAt = u.Now
		if err := u.Repos.Assignments.Update(u.Context(), a, a.Status()); err != nil {
			return err
		}
		marked = true
		if p == nil || (p.Status() != property.StatusAssigned && p.Status() != property.StatusVerificationInProgress) {
			return nil
		}
		u.Notify(notification.Event{
			Kind:         notification.KindSLABreach,
			Entity:       assignment.EntityType,
			EntityID:     a.ID,
			PropertyID:   p.ID,
			From:         string(a.Status()),
			To:           string(a.Status()),
			Recipients:   []uuid.UUID{p.SellerID, a.AgentID},
			NotifyAdmins: true,
		})
		notified = true
		s.logger.Warn().
			Str("assignmentId", a.ID.String()).
			Str("propertyId", p.ID.String()).
			Time("slaDeadline", *a.SLADeadline).
			Msg("agent SLA breached")
		return nil
	})
	if err != nil {
		return false, false, err
	}
	return marked, notified, nil
}
