package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/property"
)

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	var req property.Draft
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Properties.CreateDraft(r.Context(), actorFrom(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req property.Draft
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Properties.UpdateDraft(r.Context(), actorFrom(r), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type priceRequest struct {
	Price int64 `json:"price"`
}

func (s *Server) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req priceRequest
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Properties.UpdatePrice(r.Context(), actorFrom(r), id, req.Price)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type assignmentRequest struct {
	AgentID uuid.UUID `json:"agentId"`
}

func (s *Server) requestAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req assignmentRequest
	if !body(w, r, &req) {
		return
	}
	a, err := s.svc.Properties.RequestAgentAssignment(r.Context(), actorFrom(r), id, req.AgentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) startVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	p, err := s.svc.Properties.StartVerification(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type verificationRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

func (s *Server) submitVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req verificationRequest
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Properties.SubmitVerificationResult(r.Context(), actorFrom(r), id, req.Approved, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type listingRequest struct {
	Active bool `json:"active"`
}

func (s *Server) setListed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	var req listingRequest
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Properties.SetListed(r.Context(), actorFrom(r), id, req.Active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) getProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId")
	if !ok {
		return
	}
	p, err := s.svc.Properties.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) searchProperties(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 20, 100)
	items, err := s.svc.Properties.SearchActive(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"properties": items, "limit": limit, "offset": offset})
}

type respondAssignmentRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

func (s *Server) respondAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "assignmentId")
	if !ok {
		return
	}
	var req respondAssignmentRequest
	if !body(w, r, &req) {
		return
	}
	a, err := s.svc.Assignments.RespondToAssignment(r.Context(), actorFrom(r), id, req.Accept, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "assignmentId")
	if !ok {
		return
	}
	a, err := s.svc.Assignments.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) listAgentAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "agentId")
	if !ok {
		return
	}
	limit, offset := parseLimitOffset(r, 20, 100)
	items, err := s.svc.Assignments.ListForAgent(r.Context(), actorFrom(r), id, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"assignments": items, "limit": limit, "offset": offset})
}
