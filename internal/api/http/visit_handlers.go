package httpapi

import (
	"net/http"
	"time"

	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

type visitRequest struct {
	PreferredDate time.Time `json:"preferredDate"`
}

func (s *Server) requestVisit(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req visitRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.RequestVisit(r.Context(), actorFrom(r), propertyID, req.PreferredDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (s *Server) listVisits(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	limit, offset := parseLimitOffset(r, 20, 100)
	items, err := s.svc.Visits.ListByProperty(r.Context(), actorFrom(r), propertyID, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"visits": items, "limit": limit, "offset": offset})
}

func (s *Server) getVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	v, err := s.svc.Visits.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type approveVisitRequest struct {
	ConfirmedDate time.Time `json:"confirmedDate"`
}

func (s *Server) approveVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req approveVisitRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.ApproveVisit(r.Context(), actorFrom(r), id, req.ConfirmedDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req reasonRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.RejectVisit(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type counterVisitRequest struct {
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

func (s *Server) counterVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req counterVisitRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.CounterVisit(r.Context(), actorFrom(r), id, req.Date, req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type acceptRequest struct {
	Accept bool `json:"accept"`
}

func (s *Server) respondVisitCounter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req acceptRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.RespondToVisitCounter(r.Context(), actorFrom(r), id, req.Accept)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) cancelVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req reasonRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.CancelVisit(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) startCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var reading geo.Point
	if !body(w, r, &reading) {
		return
	}
	v, err := s.svc.Visits.StartCheckIn(r.Context(), actorFrom(r), id, reading)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) reissueCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var reading geo.Point
	if !body(w, r, &reading) {
		return
	}
	v, err := s.svc.Visits.ReissueCheckInOTP(r.Context(), actorFrom(r), id, reading)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) verifyCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	var req codeRequest
	if !body(w, r, &req) {
		return
	}
	v, err := s.svc.Visits.VerifyCheckIn(r.Context(), actorFrom(r), id, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) markNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "visitId")
	if !ok {
		return
	}
	v, err := s.svc.Visits.MarkNoShow(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}
