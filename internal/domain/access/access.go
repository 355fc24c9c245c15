package access

import (
	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

// Party is the relationship an actor has to the entity being acted on.
type Party string

const (
	PartySeller Party = "SELLER"
	PartyBuyer  Party = "BUYER"
	PartyAgent  Party = "AGENT"
	PartyAdmin  Party = "ADMIN"
	PartySystem Party = "SYSTEM"
)

// Action names an operation guarded by the capability table.
type Action string

const (
	ActCreateDraft         Action = "property.create_draft"
	ActEditProperty        Action = "property.edit"
	ActRequestAssignment   Action = "property.request_assignment"
	ActStartVerification   Action = "property.start_verification"
	ActSubmitVerification  Action = "property.submit_verification"
	ActToggleListing       Action = "property.toggle_listing"
	ActRespondAssignment   Action = "assignment.respond"
	ActRequestVisit        Action = "visit.request"
	ActDecideVisit         Action = "visit.decide"
	ActCounterVisit        Action = "visit.counter"
	ActRespondVisitCounter Action = "visit.respond_counter"
	ActCancelVisit         Action = "visit.cancel"
	ActCheckIn             Action = "visit.check_in"
	ActVerifyCheckIn       Action = "visit.verify_check_in"
	ActMarkNoShow          Action = "visit.mark_no_show"
	ActSubmitOffer         Action = "offer.submit"
	ActRespondOffer        Action = "offer.respond"
	ActRespondOfferCounter Action = "offer.respond_counter"
	ActCounterAsBuyer      Action = "offer.counter_as_buyer"
	ActCreateReservation   Action = "reservation.create"
	ActProposeSlot         Action = "reservation.propose_slot"
	ActAcceptSlot          Action = "reservation.accept_slot"
	ActGenerateOTP         Action = "reservation.generate_otp"
	ActVerifyBuyerOTP      Action = "reservation.verify_buyer_otp"
	ActVerifySellerOTP     Action = "reservation.verify_seller_otp"
	ActFinalizePayment     Action = "reservation.finalize_payment"
	ActCancelReservation   Action = "reservation.cancel"
	ActOverride            Action = "admin.override"
	ActView                Action = "entity.view"
)

var policy = map[Action][]Party{
	ActCreateDraft:         {PartySeller},
	ActEditProperty:        {PartySeller},
	ActRequestAssignment:   {PartySeller},
	ActStartVerification:   {PartyAgent},
	ActSubmitVerification:  {PartyAgent},
	ActToggleListing:       {PartySeller},
	ActRespondAssignment:   {PartyAgent},
	ActRequestVisit:        {PartyBuyer},
	ActDecideVisit:         {PartyAgent},
	ActCounterVisit:        {PartyBuyer, PartyAgent},
	ActRespondVisitCounter: {PartyBuyer, PartyAgent},
	ActCancelVisit:         {PartyBuyer, PartyAgent},
	ActCheckIn:             {PartyAgent},
	ActVerifyCheckIn:       {PartyBuyer},
	ActMarkNoShow:          {PartyAgent},
	ActSubmitOffer:         {PartyBuyer},
	ActRespondOffer:        {PartySeller, PartyAgent},
	ActRespondOfferCounter: {PartyBuyer},
	ActCounterAsBuyer:      {PartyBuyer},
	ActCreateReservation:   {PartyBuyer},
	ActProposeSlot:         {PartyAgent},
	ActAcceptSlot:          {PartyBuyer},
	ActGenerateOTP:         {PartyAgent},
	ActVerifyBuyerOTP:      {PartyBuyer},
	ActVerifySellerOTP:     {PartySeller},
	ActFinalizePayment:     {PartySeller},
	ActCancelReservation:   {PartyBuyer, PartySeller},
	ActOverride:            {PartyAdmin},
	ActView:                {PartySeller, PartyBuyer, PartyAgent, PartyAdmin},
}

// Subject lists who holds each party slot on an entity. Zero ids mean the slot is empty.
type Subject struct {
	SellerID uuid.UUID
	BuyerID  uuid.UUID
	AgentID  uuid.UUID
}

// PartyOf resolves the actor's party on the subject.
func PartyOf(actor user.Actor, subj Subject) (Party, bool) {
	switch actor.Role {
	case user.RoleAdmin:
		return PartyAdmin, true
	case user.RoleSystem:
		return PartySystem, true
	case user.RoleSeller:
		if subj.SellerID != uuid.Nil && actor.ID == subj.SellerID {
			return PartySeller, true
		}
	case user.RoleBuyer:
		if subj.BuyerID != uuid.Nil && actor.ID == subj.BuyerID {
			return PartyBuyer, true
		}
	case user.RoleAgent:
		if subj.AgentID != uuid.Nil && actor.ID == subj.AgentID {
			return PartyAgent, true
		}
	}
	return "", false
}

// Check returns the actor's party when the action is allowed, NotAuthorized otherwise.
func Check(actor user.Actor, action Action, subj Subject) (Party, error) {
	party, ok := PartyOf(actor, subj)
	if !ok {
		return "", errs.NotAuthorized("%s is not a party to this %s", actor.ActorString(), action)
	}
	for _, allowed := range policy[action] {
		if allowed == party {
			return party, nil
		}
	}
	return "", errs.NotAuthorized("%s may not perform %s", party, action)
}
