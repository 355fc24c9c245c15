package user

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	ok := map[string]Role{"seller": RoleSeller, " BUYER ": RoleBuyer, "Agent": RoleAgent, "admin": RoleAdmin}
	for in, want := range ok {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("expected valid role %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	bad := []string{"", "operator", "root"}
	for _, v := range bad {
		if _, err := ParseRole(v); err == nil {
			t.Fatalf("expected invalid role %q", v)
		}
	}
}

func TestActorString(t *testing.T) {
	id := uuid.MustParse("6f1c1d2e-95e4-4d8a-9a55-0d8f0d3e8b11")
	a := Actor{ID: id, Role: RoleAgent}
	if got := a.ActorString(); got != "agent:"+id.String() {
		t.Fatalf("unexpected actor string %s", got)
	}
	if System().IsAdmin() {
		t.Fatalf("system actor must not be admin")
	}
	if System().Role != RoleSystem {
		t.Fatalf("expected SYSTEM role")
	}
}
