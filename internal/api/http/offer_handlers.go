package httpapi

import (
	"net/http"

	offerapp "github.com/estate-hub/estate-hub/internal/application/offer"
)

type offerRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) submitOffer(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req offerRequest
	if !body(w, r, &req) {
		return
	}
	o, err := s.svc.Offers.SubmitOffer(r.Context(), actorFrom(r), propertyID, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	limit, offset := parseLimitOffset(r, 20, 100)
	items, err := s.svc.Offers.ListByProperty(r.Context(), actorFrom(r), propertyID, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"offers": items, "limit": limit, "offset": offset})
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "offerId")
	if !ok {
		return
	}
	o, err := s.svc.Offers.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type respondOfferRequest struct {
	Action        offerapp.Action `json:"action"`
	CounterAmount int64           `json:"counterAmount"`
}

func (s *Server) respondOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "offerId")
	if !ok {
		return
	}
	var req respondOfferRequest
	if !body(w, r, &req) {
		return
	}
	o, err := s.svc.Offers.RespondToOffer(r.Context(), actorFrom(r), id, req.Action, req.CounterAmount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) respondOfferCounter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "offerId")
	if !ok {
		return
	}
	var req acceptRequest
	if !body(w, r, &req) {
		return
	}
	o, err := s.svc.Offers.RespondToCounter(r.Context(), actorFrom(r), id, req.Accept)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) counterAsBuyer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "offerId")
	if !ok {
		return
	}
	var req offerRequest
	if !body(w, r, &req) {
		return
	}
	o, err := s.svc.Offers.CounterAsBuyer(r.Context(), actorFrom(r), id, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
