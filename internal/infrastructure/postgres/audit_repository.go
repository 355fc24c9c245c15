package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/audit"
)

// AuditRepository implements audit.Repository. A trigger rejects UPDATE and
// DELETE on audit_log.
type AuditRepository struct {
	q querier
}

const auditColumns = `id, audit_id, entity_type, entity_id, from_state, to_state, actor_id, actor_role, reason, override, trace_id, signature, created_at`

func (r *AuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO audit_log (audit_id, entity_type, entity_id, from_state, to_state, actor_id, actor_role, reason, override, trace_id, signature, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, e.AuditID, e.EntityType, e.EntityID, e.FromState, e.ToState, e.ActorID, e.ActorRole, e.Reason, e.Override, e.TraceID,
		e.Signature, e.CreatedAt).Scan(&e.ID)
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+auditColumns+` FROM audit_log WHERE entity_type=$1 AND entity_id=$2 ORDER BY id
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAudit)
}

func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter, cursor *audit.Cursor, limit int) ([]*audit.Entry, *audit.Cursor, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += addWhere(query) + " " + cond + "$" + itoa(len(args))
	}
	if filter.EntityType != nil {
		add("entity_type=", *filter.EntityType)
	}
	if filter.EntityID != nil {
		add("entity_id=", *filter.EntityID)
	}
	if filter.ActorID != nil {
		add("actor_id=", *filter.ActorID)
	}
	if filter.Override != nil {
		add("override=", *filter.Override)
	}
	if filter.StartTime != nil {
		add("created_at >= ", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("created_at <= ", *filter.EndTime)
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += addWhere(query) + " (created_at, id) < ($" + itoa(len(args)-1) + ", $" + itoa(len(args)) + ")"
	}
	query, args = limitOffset(query+" ORDER BY created_at DESC, id DESC", args, limit, 0)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	entries, err := collect(rows, scanAudit)
	if err != nil {
		return nil, nil, err
	}

	var next *audit.Cursor
	if limit > 0 && len(entries) == limit {
		last := entries[len(entries)-1]
		next = &audit.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return entries, next, nil
}

func scanAudit(row pgx.Row) (*audit.Entry, error) {
	var e audit.Entry
	if err := row.Scan(&e.ID, &e.AuditID, &e.EntityType, &e.EntityID, &e.FromState, &e.ToState, &e.ActorID, &e.ActorRole,
		&e.Reason, &e.Override, &e.TraceID, &e.Signature, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
