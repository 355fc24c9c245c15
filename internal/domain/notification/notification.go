package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_publisher.go -package=mocks . Publisher

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/user"
)

// Kind separates state transitions from signals that change no state.
type Kind string

const (
	KindTransition Kind = "TRANSITION"
	KindSLABreach  Kind = "SLA_BREACH"
	KindFault      Kind = "INTEGRITY_FAULT"
)

// Event tells the parties of an entity that their next actions changed.
type Event struct {
	ID           uuid.UUID   `json:"id"`
	Kind         Kind        `json:"kind"`
	Entity       string      `json:"entity"`
	EntityID     uuid.UUID   `json:"entityId"`
	PropertyID   uuid.UUID   `json:"propertyId"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	ActorID      uuid.UUID   `json:"actorId"`
	ActorRole    user.Role   `json:"actorRole"`
	Recipients   []uuid.UUID `json:"recipients"`
	NotifyAdmins bool        `json:"notifyAdmins"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

// RoutingKey is "<entity>.<to-state>" in lower case, e.g. "offer.accepted".
func (e Event) RoutingKey() string {
	to := e.To
	if e.Kind != KindTransition {
		to = string(e.Kind)
	}
	return strings.ToLower(e.Entity) + "." + strings.ToLower(to)
}

// Publisher delivers events after the transactional unit committed. Delivery
// failures never undo a committed transition.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Recipients dedupes ids and drops empty ones.
func Recipients(ids ...uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
