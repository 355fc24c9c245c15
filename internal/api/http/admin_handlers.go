package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	adminapp "github.com/estate-hub/estate-hub/internal/application/admin"
	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
)

type overrideRequest struct {
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
}

func (s *Server) override(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !body(w, r, &req) {
		return
	}
	res, err := s.svc.Admin.Override(r.Context(), actorFrom(r), req.EntityType, req.EntityID, req.Status, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) listFaults(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	unresolved := r.URL.Query().Get("unresolved") != "false"
	items, err := s.svc.Admin.ListIntegrityFaults(r.Context(), actorFrom(r), unresolved, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"faults": items, "limit": limit, "offset": offset})
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (s *Server) resolveFault(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "faultId")
	if !ok {
		return
	}
	var req resolveRequest
	if !body(w, r, &req) {
		return
	}
	f, err := s.svc.Admin.ResolveFault(r.Context(), actorFrom(r), id, req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "agentId")
	if !ok {
		return
	}
	var req adminapp.AgentInput
	if !body(w, r, &req) {
		return
	}
	p, err := s.svc.Admin.RegisterAgent(r.Context(), actorFrom(r), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) queryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params auditapp.QueryParams
	if v := q.Get("entity_type"); v != "" {
		params.EntityType = &v
	}
	for key, dst := range map[string]**uuid.UUID{"entity_id": &params.EntityID, "actor_id": &params.ActorID} {
		if v := q.Get(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid "+key)
				return
			}
			*dst = &id
		}
	}
	if v := q.Get("override"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid override")
			return
		}
		params.Override = &b
	}
	for key, dst := range map[string]**time.Time{"start_time": &params.StartTime, "end_time": &params.EndTime} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid "+key)
				return
			}
			*dst = &t
		}
	}
	if v := q.Get("cursor"); v != "" {
		params.Cursor = &v
	}
	params.Limit, _ = parseLimitOffset(r, 50, 500)

	res, err := s.svc.Audit.Query(r.Context(), actorFrom(r), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) auditHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "entityId")
	if !ok {
		return
	}
	entries, err := s.svc.Audit.History(r.Context(), actorFrom(r), chi.URLParam(r, "entityType"), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) auditWalk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "entityId")
	if !ok {
		return
	}
	res, err := s.svc.Audit.VerifyWalk(r.Context(), actorFrom(r), chi.URLParam(r, "entityType"), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) auditSignatures(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "entityId")
	if !ok {
		return
	}
	res, err := s.svc.Audit.VerifySignatures(r.Context(), actorFrom(r), chi.URLParam(r, "entityType"), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
