package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/visit"
)

// VisitRepository implements visit.Repository.
type VisitRepository struct {
	q querier
}

const visitColumns = `id, property_id, buyer_id, agent_id, preferred_date, confirmed_date, counter_date, counter_message, counter_by, counter_rounds, reason, check_in_distance, checked_in_at, otp_hash, otp_expires_at, completed_at, status, version, created_at, updated_at`

func (r *VisitRepository) Create(ctx context.Context, v *visit.Visit) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, v.ID, v.PropertyID, v.BuyerID, v.AgentID, v.PreferredDate, v.ConfirmedDate, v.CounterDate, v.CounterMessage, v.CounterBy,
		v.CounterRounds, v.Reason, v.CheckInDistanceM, v.CheckedInAt, v.OTPHash, v.OTPExpiresAt, v.CompletedAt, v.Status(),
		v.Version, v.CreatedAt, v.UpdatedAt)
	return translate(err, "visit", v.ID)
}

func (r *VisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, err := scanVisit(r.q.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return v, err
}

func (r *VisitRepository) Update(ctx context.Context, v *visit.Visit, expected visit.Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE visits SET confirmed_date=$1, counter_date=$2, counter_message=$3, counter_by=$4, counter_rounds=$5, reason=$6,
			check_in_distance=$7, checked_in_at=$8, otp_hash=$9, otp_expires_at=$10, completed_at=$11, status=$12,
			updated_at=$13, version=version+1
		WHERE id=$14 AND status=$15 AND version=$16
	`, v.ConfirmedDate, v.CounterDate, v.CounterMessage, v.CounterBy, v.CounterRounds, v.Reason, v.CheckInDistanceM,
		v.CheckedInAt, v.OTPHash, v.OTPExpiresAt, v.CompletedAt, v.Status(), v.UpdatedAt, v.ID, expected, v.Version)
	if err := updated(tag, err, "visit", v.ID); err != nil {
		return err
	}
	v.Version++
	return nil
}

func (r *VisitRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID, limit, offset int) ([]*visit.Visit, error) {
	query, args := limitOffset(`SELECT `+visitColumns+` FROM visits WHERE property_id=$1 ORDER BY created_at DESC, id`, []any{propertyID}, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanVisit)
}

func (r *VisitRepository) FindCompleted(ctx context.Context, propertyID, buyerID uuid.UUID) (*visit.Visit, error) {
	v, err := scanVisit(r.q.QueryRow(ctx, `
		SELECT `+visitColumns+` FROM visits
		WHERE property_id=$1 AND buyer_id=$2 AND status='COMPLETED'
		ORDER BY completed_at DESC LIMIT 1
	`, propertyID, buyerID))
	if noRows(err) {
		return nil, nil
	}
	return v, err
}

func scanVisit(row pgx.Row) (*visit.Visit, error) {
	var v visit.Visit
	var status visit.Status
	if err := row.Scan(&v.ID, &v.PropertyID, &v.BuyerID, &v.AgentID, &v.PreferredDate, &v.ConfirmedDate, &v.CounterDate,
		&v.CounterMessage, &v.CounterBy, &v.CounterRounds, &v.Reason, &v.CheckInDistanceM, &v.CheckedInAt, &v.OTPHash,
		&v.OTPExpiresAt, &v.CompletedAt, &status, &v.Version, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Restore(status)
	return &v, nil
}
