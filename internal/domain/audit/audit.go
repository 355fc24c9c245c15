package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/user"
)

// MinOverrideReason is the minimum length of an admin override reason.
const MinOverrideReason = 10

// Entry is one append-only record of a state change.
type Entry struct {
	ID         int64     `json:"id"`
	AuditID    uuid.UUID `json:"auditId"`
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	FromState  string    `json:"fromState"`
	ToState    string    `json:"toState"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorRole  user.Role `json:"actorRole"`
	Reason     *string   `json:"reason,omitempty"`
	Override   bool      `json:"override"`
	TraceID    string    `json:"traceId,omitempty"`
	Signature  []byte    `json:"signature,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewEntry builds an entry for a transition performed by actor.
func NewEntry(entityType string, entityID uuid.UUID, from, to string, actor user.Actor, reason string, now time.Time) *Entry {
	e := &Entry{
		AuditID:    uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		FromState:  from,
		ToState:    to,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		CreatedAt:  now,
	}
	if reason != "" {
		e.Reason = &reason
	}
	return e
}

// Filter narrows audit queries.
type Filter struct {
	EntityType *string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Override   *bool
	StartTime  *time.Time
	EndTime    *time.Time
}

// Cursor pages through entries newest first.
type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        int64     `json:"id"`
}

// Repository is append-only: entries are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	// ListByEntity returns the trail of one entity oldest first.
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*Entry, error)
	Query(ctx context.Context, filter Filter, cursor *Cursor, limit int) ([]*Entry, *Cursor, error)
}
