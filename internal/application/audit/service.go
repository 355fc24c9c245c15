package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/reservation"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// edges maps each audited entity type to its state graph.
var edges = map[string]audit.EdgeFunc{
	property.EntityType: func(from, to string) bool {
		return property.CanTransition(property.Status(from), property.Status(to))
	},
	assignment.EntityType: func(from, to string) bool {
		return assignment.CanTransition(assignment.Status(from), assignment.Status(to))
	},
	visit.EntityType: func(from, to string) bool {
		return visit.CanTransition(visit.Status(from), visit.Status(to))
	},
	offer.EntityType: func(from, to string) bool {
		return offer.CanTransition(offer.Status(from), offer.Status(to))
	},
	reservation.EntityType: func(from, to string) bool {
		return reservation.CanTransition(reservation.Status(from), reservation.Status(to))
	},
	reservation.RegistrationEntityType: func(from, to string) bool {
		return reservation.CanAdvance(reservation.Stage(from), reservation.Stage(to))
	},
	reservation.TransactionEntityType: func(from, to string) bool {
		return reservation.CanTransitionTx(reservation.TxStatus(from), reservation.TxStatus(to))
	},
}

// Service reads and checks the audit trail. Writes happen inside transactional units.
type Service struct {
	repo    audit.Repository
	signKey []byte
	logger  zerolog.Logger
}

func NewService(repo audit.Repository, signKey []byte, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "audit").Logger(),
	}
}

func requireAdmin(actor user.Actor) error {
	if !actor.IsAdmin() {
		return errs.NotAuthorized("the audit log is visible to admins only")
	}
	return nil
}

// History returns the trail of one entity, oldest first.
func (s *Service) History(ctx context.Context, actor user.Actor, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		s.logger.Error().Err(err).Str("entityType", entityType).Str("entityId", entityID.String()).Msg("failed to get entity history")
		return nil, fmt.Errorf("failed to get entity history: %w", err)
	}
	return entries, nil
}

// QueryParams represents query parameters for audit entries
type QueryParams struct {
	EntityType *string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Override   *bool
	StartTime  *time.Time
	EndTime    *time.Time
	Cursor     *string
	Limit      int
}

// QueryResult is one page of entries, newest first.
type QueryResult struct {
	Entries    []*audit.Entry `json:"entries"`
	Pagination Pagination     `json:"pagination"`
}

type Pagination struct {
	Cursor  *string `json:"cursor,omitempty"`
	HasMore bool    `json:"hasMore"`
	Count   int     `json:"count"`
}

func (s *Service) Query(ctx context.Context, actor user.Actor, params QueryParams) (*QueryResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	var cursor *audit.Cursor
	if params.Cursor != nil && *params.Cursor != "" {
		c, err := decodeCursor(*params.Cursor)
		if err != nil {
			return nil, errs.Validation("invalid cursor: %v", err)
		}
		cursor = c
	}

	filter := audit.Filter{
		EntityType: params.EntityType,
		EntityID:   params.EntityID,
		ActorID:    params.ActorID,
		Override:   params.Override,
		StartTime:  params.StartTime,
		EndTime:    params.EndTime,
	}
	entries, next, err := s.repo.Query(ctx, filter, cursor, params.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query audit log")
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	result := &QueryResult{
		Entries: entries,
		Pagination: Pagination{
			Count:   len(entries),
			HasMore: next != nil,
		},
	}
	if next != nil {
		encoded, err := encodeCursor(next)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to encode cursor")
		} else {
			result.Pagination.Cursor = &encoded
		}
	}
	return result, nil
}

// WalkResult reports whether an entity's trail is a walk on its state graph.
type WalkResult struct {
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	Entries    int     `json:"entries"`
	Valid      bool    `json:"valid"`
	Violation  *string `json:"violation,omitempty"`
}

// VerifyWalk checks the trail of one entity against its graph. Overrides may jump.
func (s *Service) VerifyWalk(ctx context.Context, actor user.Actor, entityType string, entityID uuid.UUID) (*WalkResult, error) {
	edge, ok := edges[entityType]
	if !ok {
		return nil, errs.Validation("unknown entity type %q", entityType)
	}
	entries, err := s.History(ctx, actor, entityType, entityID)
	if err != nil {
		return nil, err
	}
	result := &WalkResult{EntityType: entityType, EntityID: entityID.String(), Entries: len(entries), Valid: true}
	if err := audit.VerifyWalk(entries, edge); err != nil {
		var violation *audit.WalkViolation
		if !errors.As(err, &violation) {
			return nil, err
		}
		msg := violation.Error()
		result.Valid = false
		result.Violation = &msg
		s.logger.Warn().Str("entityType", entityType).Str("entityId", entityID.String()).Msg(msg)
	}
	return result, nil
}

// SignatureResult reports how many entries of a trail carry a valid signature.
type SignatureResult struct {
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	Verified   int     `json:"verified"`
	Invalid    []int64 `json:"invalid"`
	Message    string  `json:"message"`
}

// VerifySignatures checks the HMAC of every entry of an entity's trail.
func (s *Service) VerifySignatures(ctx context.Context, actor user.Actor, entityType string, entityID uuid.UUID) (*SignatureResult, error) {
	if len(s.signKey) == 0 {
		return nil, errs.Validation("audit signing is not configured")
	}
	entries, err := s.History(ctx, actor, entityType, entityID)
	if err != nil {
		return nil, err
	}
	result := &SignatureResult{EntityType: entityType, EntityID: entityID.String(), Invalid: []int64{}}
	for _, e := range entries {
		ok, err := audit.VerifySignature(e, s.signKey)
		if err != nil {
			return nil, fmt.Errorf("failed to verify signature: %w", err)
		}
		if ok {
			result.Verified++
			continue
		}
		result.Invalid = append(result.Invalid, e.ID)
	}
	if len(result.Invalid) == 0 {
		result.Message = "audit trail integrity verified"
	} else {
		result.Message = "audit signature mismatch - possible tampering detected"
		s.logger.Warn().
			Str("entityType", entityType).
			Str("entityId", entityID.String()).
			Int("invalid", len(result.Invalid)).
			Msg("audit signature verification failed")
	}
	return result, nil
}

func encodeCursor(c *audit.Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

func decodeCursor(s string) (*audit.Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var c audit.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
