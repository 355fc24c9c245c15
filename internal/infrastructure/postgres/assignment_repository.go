package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/assignment"
)

// AssignmentRepository implements assignment.Repository. The partial unique
// index uq_assignments_active enforces one open assignment per property.
type AssignmentRepository struct {
	q querier
}

const assignmentColumns = `id, property_id, agent_id, distance_km, sla_tier_seconds, sla_deadline, status, decline_reason, responded_at, released_at, breach_reported_at, version, created_at, updated_at`

func (r *AssignmentRepository) Create(ctx context.Context, a *assignment.Assignment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO agent_assignments (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, a.ID, a.PropertyID, a.AgentID, a.DistanceKm, int64(a.SLATier/time.Second), a.SLADeadline, a.Status(), a.DeclineReason,
		a.RespondedAt, a.ReleasedAt, a.BreachReportedAt, a.Version, a.CreatedAt, a.UpdatedAt)
	return translate(err, "assignment for property", a.PropertyID)
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*assignment.Assignment, error) {
	a, err := scanAssignment(r.q.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM agent_assignments WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return a, err
}

func (r *AssignmentRepository) Update(ctx context.Context, a *assignment.Assignment, expected assignment.Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE agent_assignments SET status=$1, sla_deadline=$2, decline_reason=$3, responded_at=$4, released_at=$5,
			breach_reported_at=$6, updated_at=$7, version=version+1
		WHERE id=$8 AND status=$9 AND version=$10
	`, a.Status(), a.SLADeadline, a.DeclineReason, a.RespondedAt, a.ReleasedAt, a.BreachReportedAt, a.UpdatedAt, a.ID, expected, a.Version)
	if err := updated(tag, err, "assignment", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}

func (r *AssignmentRepository) FindActiveByProperty(ctx context.Context, propertyID uuid.UUID) (*assignment.Assignment, error) {
	a, err := scanAssignment(r.q.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM agent_assignments
		WHERE property_id=$1 AND status <> 'DECLINED' AND released_at IS NULL
	`, propertyID))
	if noRows(err) {
		return nil, nil
	}
	return a, err
}

func (r *AssignmentRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*assignment.Assignment, error) {
	query, args := limitOffset(`SELECT `+assignmentColumns+` FROM agent_assignments WHERE agent_id=$1 ORDER BY created_at DESC, id`, []any{agentID}, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAssignment)
}

func (r *AssignmentRepository) ListBreached(ctx context.Context, now time.Time, limit int) ([]*assignment.Assignment, error) {
	query, args := limitOffset(`
		SELECT `+assignmentColumns+` FROM agent_assignments
		WHERE status='ACCEPTED' AND released_at IS NULL AND breach_reported_at IS NULL AND sla_deadline < $1
		ORDER BY sla_deadline`, []any{now}, limit, 0)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAssignment)
}

func scanAssignment(row pgx.Row) (*assignment.Assignment, error) {
	var a assignment.Assignment
	var status assignment.Status
	var tierSeconds int64
	if err := row.Scan(&a.ID, &a.PropertyID, &a.AgentID, &a.DistanceKm, &tierSeconds, &a.SLADeadline, &status, &a.DeclineReason,
		&a.RespondedAt, &a.ReleasedAt, &a.BreachReportedAt, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.SLATier = time.Duration(tierSeconds) * time.Second
	a.Restore(status)
	return &a, nil
}
