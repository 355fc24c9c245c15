package user

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Role represents a marketplace role.
type Role string

const (
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
	RoleAgent  Role = "AGENT"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
)

// SystemID identifies the scheduler when it acts as an actor.
var SystemID = uuid.Nil

// Actor is the resolved (actor_id, actor_role) pair every operation runs as.
// Credentials are checked upstream; the core only checks role and ownership.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// System returns the actor used by sweeps.
func System() Actor {
	return Actor{ID: SystemID, Role: RoleSystem}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) ActorString() string {
	return strings.ToLower(string(a.Role)) + ":" + a.ID.String()
}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if err := ValidateRole(r); err != nil {
		return "", err
	}
	return r, nil
}

func ValidateRole(role Role) error {
	switch role {
	case RoleSeller, RoleBuyer, RoleAgent, RoleAdmin, RoleSystem:
		return nil
	default:
		return errors.New("invalid role")
	}
}
