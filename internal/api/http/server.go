package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	adminapp "github.com/estate-hub/estate-hub/internal/application/admin"
	assignmentapp "github.com/estate-hub/estate-hub/internal/application/assignment"
	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
	offerapp "github.com/estate-hub/estate-hub/internal/application/offer"
	propertyapp "github.com/estate-hub/estate-hub/internal/application/property"
	reservationapp "github.com/estate-hub/estate-hub/internal/application/reservation"
	visitapp "github.com/estate-hub/estate-hub/internal/application/visit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/infrastructure/sse"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Properties   *propertyapp.Service
	Assignments  *assignmentapp.Service
	Visits       *visitapp.Service
	Offers       *offerapp.Service
	Reservations *reservationapp.Service
	Admin        *adminapp.Service
	Audit        *auditapp.Service
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc       Services
	hub       *sse.Hub
	jwtSecret []byte
	logger    zerolog.Logger
}

func NewServer(svc Services, hub *sse.Hub, jwtSecret []byte, logger zerolog.Logger) *Server {
	return &Server{
		svc:       svc,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireActor)

		// Streams stay open, so they sit outside the request timeout.
		r.Get("/events", s.streamEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/properties", func(r chi.Router) {
				r.Post("/", s.createDraft)
				r.Get("/", s.searchProperties)
				r.Get("/{propertyId}", s.getProperty)
				r.Put("/{propertyId}", s.updateDraft)
				r.Put("/{propertyId}/price", s.updatePrice)
				r.Post("/{propertyId}/assignment", s.requestAssignment)
				r.Post("/{propertyId}/verification/start", s.startVerification)
				r.Post("/{propertyId}/verification", s.submitVerification)
				r.Post("/{propertyId}/listing", s.setListed)
				r.Post("/{propertyId}/visits", s.requestVisit)
				r.Get("/{propertyId}/visits", s.listVisits)
				r.Post("/{propertyId}/offers", s.submitOffer)
				r.Get("/{propertyId}/offers", s.listOffers)
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/{assignmentId}", s.getAssignment)
				r.Post("/{assignmentId}/respond", s.respondAssignment)
			})
			r.Get("/agents/{agentId}/assignments", s.listAgentAssignments)

			r.Route("/visits/{visitId}", func(r chi.Router) {
				r.Get("/", s.getVisit)
				r.Post("/approve", s.approveVisit)
				r.Post("/reject", s.rejectVisit)
				r.Post("/counter", s.counterVisit)
				r.Post("/counter/respond", s.respondVisitCounter)
				r.Post("/cancel", s.cancelVisit)
				r.Post("/check-in", s.startCheckIn)
				r.Post("/check-in/reissue", s.reissueCheckIn)
				r.Post("/check-in/verify", s.verifyCheckIn)
				r.Post("/no-show", s.markNoShow)
			})

			r.Route("/offers/{offerId}", func(r chi.Router) {
				r.Get("/", s.getOffer)
				r.Post("/respond", s.respondOffer)
				r.Post("/counter", s.counterAsBuyer)
				r.Post("/counter/respond", s.respondOfferCounter)
				r.Post("/reservation", s.createReservation)
			})

			r.Route("/reservations/{reservationId}", func(r chi.Router) {
				r.Get("/", s.getReservation)
				r.Get("/transaction", s.getTransaction)
				r.Post("/slot", s.proposeSlot)
				r.Post("/slot/accept", s.acceptSlot)
				r.Post("/otp", s.generateOTP)
				r.Post("/otp/buyer", s.verifyBuyerOTP)
				r.Post("/otp/seller", s.verifySellerOTP)
				r.Post("/payment", s.finalizePayment)
				r.Post("/cancel", s.cancelReservation)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/overrides", s.override)
				r.Get("/faults", s.listFaults)
				r.Post("/faults/{faultId}/resolve", s.resolveFault)
				r.Put("/agents/{agentId}", s.registerAgent)
			})

			r.Route("/audit", func(r chi.Router) {
				r.Get("/", s.queryAudit)
				r.Get("/{entityType}/{entityId}", s.auditHistory)
				r.Get("/{entityType}/{entityId}/walk", s.auditWalk)
				r.Get("/{entityType}/{entityId}/signatures", s.auditSignatures)
			})
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// fail maps a service error to its stable code. Untyped errors are internal
// and their text is logged, not returned.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	if kind == "" {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("requestId", middleware.GetReqID(r.Context())).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	respondError(w, errs.HTTPStatus(kind), string(kind), err.Error())
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

// pathID parses a uuid path parameter and answers 400 itself when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := parseUUIDParam(r, key)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid "+key)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// body decodes the request into v and answers 400 itself on failure.
func body(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(r, v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return false
	}
	return true
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
