package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/integrity"
)

// FaultRepository implements integrity.Repository.
type FaultRepository struct {
	q querier
}

const faultColumns = `id, kind, entity_type, entity_id, property_id, detail, detected_at, resolved_at, resolved_by, resolution_note`

func (r *FaultRepository) Record(ctx context.Context, f *integrity.Fault) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO integrity_faults (`+faultColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (kind, entity_id) DO NOTHING
	`, f.ID, f.Kind, f.EntityType, f.EntityID, f.PropertyID, f.Detail, f.DetectedAt, f.ResolvedAt, f.ResolvedBy, f.ResolutionNote)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *FaultRepository) GetByID(ctx context.Context, id uuid.UUID) (*integrity.Fault, error) {
	f, err := scanFault(r.q.QueryRow(ctx, `SELECT `+faultColumns+` FROM integrity_faults WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return f, err
}

func (r *FaultRepository) List(ctx context.Context, unresolvedOnly bool, limit, offset int) ([]*integrity.Fault, error) {
	query := `SELECT ` + faultColumns + ` FROM integrity_faults`
	if unresolvedOnly {
		query += " WHERE resolved_at IS NULL"
	}
	query, args := limitOffset(query+" ORDER BY detected_at DESC, id", nil, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFault)
}

func (r *FaultRepository) Resolve(ctx context.Context, id, by uuid.UUID, note string, now time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE integrity_faults SET resolved_at=$1, resolved_by=$2, resolution_note=$3
		WHERE id=$4 AND resolved_at IS NULL
	`, now, by, note, id)
	return updated(tag, err, "integrity fault", id)
}

func scanFault(row pgx.Row) (*integrity.Fault, error) {
	var f integrity.Fault
	if err := row.Scan(&f.ID, &f.Kind, &f.EntityType, &f.EntityID, &f.PropertyID, &f.Detail, &f.DetectedAt, &f.ResolvedAt,
		&f.ResolvedBy, &f.ResolutionNote); err != nil {
		return nil, err
	}
	return &f, nil
}
