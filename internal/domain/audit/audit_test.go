package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/user"
)

func lineGraph(from, to string) bool {
	edges := map[string]string{"A": "B", "B": "C"}
	return edges[from] == to
}

func trail(pairs ...string) []*Entry {
	actor := user.Actor{ID: uuid.New(), Role: user.RoleSeller}
	id := uuid.New()
	var out []*Entry
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, NewEntry("THING", id, pairs[i], pairs[i+1], actor, "", time.Now()))
	}
	return out
}

func TestVerifyWalk(t *testing.T) {
	t.Run("valid walk", func(t *testing.T) {
		assert.NoError(t, VerifyWalk(trail("", "A", "A", "B", "B", "C"), lineGraph))
	})

	t.Run("skipped state", func(t *testing.T) {
		err := VerifyWalk(trail("", "A", "A", "C"), lineGraph)
		var v *WalkViolation
		require.ErrorAs(t, err, &v)
		assert.Equal(t, 1, v.Index)
	})

	t.Run("broken continuity", func(t *testing.T) {
		err := VerifyWalk(trail("", "A", "B", "C"), lineGraph)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `expected from-state "A"`)
	})

	t.Run("override jumps", func(t *testing.T) {
		entries := trail("", "A", "A", "C", "C", "A")
		entries[1].Override = true
		entries[2].Override = true
		assert.NoError(t, VerifyWalk(entries, lineGraph))
	})
}

func TestSignature(t *testing.T) {
	key := []byte("secret-key")
	e := NewEntry("PROPERTY", uuid.New(), "DRAFT", "PENDING_ASSIGNMENT", user.Actor{ID: uuid.New(), Role: user.RoleSeller}, "", time.Now())

	ok, err := VerifySignature(e, key)
	require.NoError(t, err)
	assert.False(t, ok)

	sig, err := Sign(e, key)
	require.NoError(t, err)
	e.Signature = sig

	ok, err = VerifySignature(e, key)
	require.NoError(t, err)
	assert.True(t, ok)

	e.ToState = "ACTIVE"
	ok, err = VerifySignature(e, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
