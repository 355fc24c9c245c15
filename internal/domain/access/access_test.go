package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

func TestCheck(t *testing.T) {
	seller := user.Actor{ID: uuid.New(), Role: user.RoleSeller}
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}
	agent := user.Actor{ID: uuid.New(), Role: user.RoleAgent}
	otherAgent := user.Actor{ID: uuid.New(), Role: user.RoleAgent}
	admin := user.Actor{ID: uuid.New(), Role: user.RoleAdmin}
	subj := Subject{SellerID: seller.ID, BuyerID: buyer.ID, AgentID: agent.ID}

	tests := []struct {
		name   string
		actor  user.Actor
		action Action
		party  Party
		ok     bool
	}{
		{name: "seller responds to offer", actor: seller, action: ActRespondOffer, party: PartySeller, ok: true},
		{name: "agent responds for seller", actor: agent, action: ActRespondOffer, party: PartyAgent, ok: true},
		{name: "buyer cannot respond to own offer", actor: buyer, action: ActRespondOffer},
		{name: "unassigned agent rejected", actor: otherAgent, action: ActDecideVisit},
		{name: "buyer verifies check-in", actor: buyer, action: ActVerifyCheckIn, party: PartyBuyer, ok: true},
		{name: "admin overrides", actor: admin, action: ActOverride, party: PartyAdmin, ok: true},
		{name: "admin cannot finalize payment", actor: admin, action: ActFinalizePayment},
		{name: "seller cannot override", actor: seller, action: ActOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party, err := Check(tt.actor, tt.action, subj)
			if !tt.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrNotAuthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.party, party)
		})
	}
}

func TestPartyOfRequiresMatchingRole(t *testing.T) {
	id := uuid.New()
	// same id in the buyer slot, but acting with the seller role
	_, ok := PartyOf(user.Actor{ID: id, Role: user.RoleSeller}, Subject{BuyerID: id})
	assert.False(t, ok)

	_, ok = PartyOf(user.Actor{ID: uuid.Nil, Role: user.RoleAgent}, Subject{})
	assert.False(t, ok)
}
