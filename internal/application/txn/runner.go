package txn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

// Runner executes transactional units: every entity write, its audit entries
// and its notification events commit together, and events are published only
// after the commit succeeded.
type Runner struct {
	store      store.Store
	publisher  notification.Publisher
	signingKey []byte
	clock      func() time.Time
	tracer     trace.Tracer
	logger     zerolog.Logger
}

func NewRunner(st store.Store, publisher notification.Publisher, signingKey []byte, logger zerolog.Logger) *Runner {
	return &Runner{
		store:      st,
		publisher:  publisher,
		signingKey: signingKey,
		clock:      func() time.Time { return time.Now().UTC() },
		tracer:     otel.Tracer("github.com/estate-hub/estate-hub/txn"),
		logger:     logger.With().Str("component", "txn").Logger(),
	}
}

// WithClock replaces the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.clock = now
	return r
}

func (r *Runner) Now() time.Time { return r.clock() }

// Repos gives non-transactional access for reads.
func (r *Runner) Repos() store.Repos { return r.store.Repos() }

// Run executes fn as one unit. Business-rule errors from fn roll everything back.
func (r *Runner) Run(ctx context.Context, name string, actor user.Actor, fn func(u *Unit) error) error {
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("actor.id", actor.ID.String()),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	// Microseconds match what postgres stores, so signatures verify after a reload.
	now := r.clock().Truncate(time.Microsecond)
	var events []notification.Event
	err := r.store.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		u := &Unit{ctx: ctx, Repos: repos, Actor: actor, Now: now}
		if err := fn(u); err != nil {
			return err
		}
		traceID := span.SpanContext().TraceID()
		for _, e := range u.entries {
			if traceID.IsValid() {
				e.TraceID = traceID.String()
			}
			if len(r.signingKey) > 0 {
				sig, err := audit.Sign(e, r.signingKey)
				if err != nil {
					return err
				}
				e.Signature = sig
			}
			if err := repos.Audit.Append(ctx, e); err != nil {
				return err
			}
		}
		events = u.events
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logFailure(name, actor, err)
		return err
	}

	span.SetAttributes(attribute.Int("events", len(events)))
	r.publish(ctx, events)
	return nil
}

func (r *Runner) logFailure(name string, actor user.Actor, err error) {
	kind := errs.KindOf(err)
	if kind == "" {
		r.logger.Error().Err(err).Str("unit", name).Str("actor", actor.ActorString()).Msg("transactional unit failed")
		return
	}
	r.logger.Debug().Str("unit", name).Str("kind", string(kind)).Str("actor", actor.ActorString()).Msg(err.Error())
}

func (r *Runner) publish(ctx context.Context, events []notification.Event) {
	if r.publisher == nil {
		return
	}
	for _, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.logger.Warn().Err(err).Str("routingKey", e.RoutingKey()).Str("entityId", e.EntityID.String()).Msg("failed to publish event")
		}
	}
}

// Unit is the state of one transactional unit.
type Unit struct {
	ctx     context.Context
	Repos   store.Repos
	Actor   user.Actor
	Now     time.Time
	entries []*audit.Entry
	events  []notification.Event
}

func (u *Unit) Context() context.Context { return u.ctx }

// Transition describes one audited state change.
type Transition struct {
	Entity       string
	EntityID     uuid.UUID
	PropertyID   uuid.UUID
	From         string
	To           string
	Reason       string
	Override     bool
	Recipients   []uuid.UUID
	NotifyAdmins bool
}

// Record queues the audit entry and notification event for a transition.
func (u *Unit) Record(t Transition) {
	entry := audit.NewEntry(t.Entity, t.EntityID, t.From, t.To, u.Actor, t.Reason, u.Now)
	entry.Override = t.Override
	u.entries = append(u.entries, entry)
	u.events = append(u.events, notification.Event{
		ID:           uuid.New(),
		Kind:         notification.KindTransition,
		Entity:       t.Entity,
		EntityID:     t.EntityID,
		PropertyID:   t.PropertyID,
		From:         t.From,
		To:           t.To,
		ActorID:      u.Actor.ID,
		ActorRole:    u.Actor.Role,
		Recipients:   notification.Recipients(t.Recipients...),
		NotifyAdmins: t.NotifyAdmins || t.Override,
		OccurredAt:   u.Now,
	})
}

// Notify queues an event that is not a state transition.
func (u *Unit) Notify(e notification.Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.ActorID = u.Actor.ID
	e.ActorRole = u.Actor.Role
	e.OccurredAt = u.Now
	e.Recipients = notification.Recipients(e.Recipients...)
	u.events = append(u.events, e)
}
