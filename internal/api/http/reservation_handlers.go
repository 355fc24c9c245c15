package httpapi

import (
	"net/http"
	"time"

	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

type reservationRequest struct {
	PaymentSource string `json:"paymentSource"`
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathID(w, r, "offerId")
	if !ok {
		return
	}
	var req reservationRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.CreateReservation(r.Context(), actorFrom(r), offerID, req.PaymentSource)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	res, err := s.svc.Reservations.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	t, err := s.svc.Reservations.GetTransaction(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

type slotRequest struct {
	Slot time.Time `json:"slot"`
}

func (s *Server) proposeSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var req slotRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.ProposeRegistrationSlot(r.Context(), actorFrom(r), id, req.Slot)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) acceptSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	res, err := s.svc.Reservations.AcceptRegistrationSlot(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) generateOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var reading geo.Point
	if !body(w, r, &reading) {
		return
	}
	res, err := s.svc.Reservations.GenerateRegistrationOTP(r.Context(), actorFrom(r), id, reading)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) verifyBuyerOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var req codeRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.VerifyBuyerOTP(r.Context(), actorFrom(r), id, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) verifySellerOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var req codeRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.VerifySellerOTP(r.Context(), actorFrom(r), id, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type paymentRequest struct {
	Amount        int64  `json:"amount"`
	PaymentSource string `json:"paymentSource"`
}

func (s *Server) finalizePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var req paymentRequest
	if !body(w, r, &req) {
		return
	}
	t, err := s.svc.Reservations.FinalizePayment(r.Context(), actorFrom(r), id, req.Amount, req.PaymentSource)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return
	}
	var req reasonRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Reservations.CancelReservation(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
