package property

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

func completeDraft() Draft {
	return Draft{
		Title:    "3BHK near the lake",
		Price:    10_000_000,
		Location: &geo.Point{Lat: 12.97, Lng: 77.59},
		Media:    []string{"https://cdn.example/1.jpg"},
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{name: "DRAFT -> PENDING_ASSIGNMENT", from: StatusDraft, to: StatusPendingAssignment, expected: true},
		{name: "DRAFT -> ACTIVE (invalid)", from: StatusDraft, to: StatusActive, expected: false},
		{name: "PENDING_ASSIGNMENT -> ASSIGNED", from: StatusPendingAssignment, to: StatusAssigned, expected: true},
		{name: "ASSIGNED -> VERIFICATION_IN_PROGRESS", from: StatusAssigned, to: StatusVerificationInProgress, expected: true},
		{name: "VERIFICATION_IN_PROGRESS -> ACTIVE", from: StatusVerificationInProgress, to: StatusActive, expected: true},
		{name: "VERIFICATION_IN_PROGRESS -> DRAFT", from: StatusVerificationInProgress, to: StatusDraft, expected: true},
		{name: "ACTIVE -> RESERVED", from: StatusActive, to: StatusReserved, expected: true},
		{name: "ACTIVE -> INACTIVE", from: StatusActive, to: StatusInactive, expected: true},
		{name: "INACTIVE -> ACTIVE", from: StatusInactive, to: StatusActive, expected: true},
		{name: "RESERVED -> ACTIVE", from: StatusReserved, to: StatusActive, expected: true},
		{name: "RESERVED -> SOLD", from: StatusReserved, to: StatusSold, expected: true},
		{name: "ACTIVE -> SOLD (invalid)", from: StatusActive, to: StatusSold, expected: false},
		{name: "SOLD -> ACTIVE (terminal)", from: StatusSold, to: StatusActive, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRequestAssignment(t *testing.T) {
	t.Run("complete draft", func(t *testing.T) {
		p, err := NewDraft(uuid.New(), completeDraft(), time.Now())
		require.NoError(t, err)
		require.NoError(t, p.RequestAssignment())
		assert.Equal(t, StatusPendingAssignment, p.Status())
	})

	t.Run("missing media and location", func(t *testing.T) {
		d := completeDraft()
		d.Media = nil
		d.Location = nil
		p, err := NewDraft(uuid.New(), d, time.Now())
		require.NoError(t, err)

		err = p.RequestAssignment()
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrIncompleteProperty)
		assert.Contains(t, err.Error(), "location")
		assert.Contains(t, err.Error(), "media")
		assert.Equal(t, StatusDraft, p.Status())
	})

	t.Run("not a draft", func(t *testing.T) {
		p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
		p.Restore(StatusActive)
		assert.ErrorIs(t, p.RequestAssignment(), errs.ErrInvalidTransition)
	})
}

func TestVerificationOutcome(t *testing.T) {
	agentID := uuid.New()
	p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
	require.NoError(t, p.RequestAssignment())
	require.NoError(t, p.Assign(agentID))
	require.NoError(t, p.StartVerification())

	require.NoError(t, p.Reject("photos do not match the site"))
	assert.Equal(t, StatusDraft, p.Status())
	assert.Nil(t, p.AssignedAgentID)
	require.NotNil(t, p.RejectionReason)

	require.NoError(t, p.RequestAssignment())
	assert.Nil(t, p.RejectionReason)
}

func TestSetListed(t *testing.T) {
	p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
	p.Restore(StatusActive)
	require.NoError(t, p.SetListed(false))
	assert.Equal(t, StatusInactive, p.Status())
	assert.ErrorIs(t, p.SetListed(false), errs.ErrInvalidTransition)
	require.NoError(t, p.SetListed(true))
	assert.True(t, p.Visible())
}

func TestOverride(t *testing.T) {
	p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
	p.Restore(StatusSold)
	require.NoError(t, p.Override(StatusActive))
	assert.Equal(t, StatusActive, p.Status())
	assert.ErrorIs(t, p.Override(Status("ARCHIVED")), errs.ErrValidation)
}

func TestUpdatePrice(t *testing.T) {
	p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
	p.Restore(StatusReserved)
	require.NoError(t, p.UpdatePrice(12_000_000))
	assert.Equal(t, int64(12_000_000), p.Price)

	p.Restore(StatusSold)
	assert.ErrorIs(t, p.UpdatePrice(1), errs.ErrInvalidTransition)
}

func TestMarshalJSONIncludesStatus(t *testing.T) {
	p, _ := NewDraft(uuid.New(), completeDraft(), time.Now())
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "DRAFT", out["status"])
	assert.Equal(t, "3BHK near the lake", out["title"])
}
