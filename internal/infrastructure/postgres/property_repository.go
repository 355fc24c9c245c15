package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/property"
)

// PropertyRepository implements property.Repository.
type PropertyRepository struct {
	q querier
}

const propertyColumns = `id, seller_id, title, description, price, lat, lng, media, status, assigned_agent_id, rejection_reason, version, created_at, updated_at`

func (r *PropertyRepository) Create(ctx context.Context, p *property.Property) error {
	lat, lng := splitPoint(p.Location)
	_, err := r.q.Exec(ctx, `
		INSERT INTO properties (`+propertyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, p.ID, p.SellerID, p.Title, p.Description, p.Price, lat, lng, nonNil(p.Media), p.Status(), p.AssignedAgentID, p.RejectionReason, p.Version, p.CreatedAt, p.UpdatedAt)
	return translate(err, "property", p.ID)
}

func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	p, err := scanProperty(r.q.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (r *PropertyRepository) Update(ctx context.Context, p *property.Property, expected property.Status) error {
	lat, lng := splitPoint(p.Location)
	tag, err := r.q.Exec(ctx, `
		UPDATE properties SET title=$1, description=$2, price=$3, lat=$4, lng=$5, media=$6, status=$7,
			assigned_agent_id=$8, rejection_reason=$9, updated_at=$10, version=version+1
		WHERE id=$11 AND status=$12 AND version=$13
	`, p.Title, p.Description, p.Price, lat, lng, nonNil(p.Media), p.Status(), p.AssignedAgentID, p.RejectionReason, p.UpdatedAt, p.ID, expected, p.Version)
	if err := updated(tag, err, "property", p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (r *PropertyRepository) ListByStatus(ctx context.Context, status property.Status, limit, offset int) ([]*property.Property, error) {
	query, args := limitOffset(`SELECT `+propertyColumns+` FROM properties WHERE status=$1 ORDER BY created_at DESC, id`, []any{status}, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProperty)
}

// ListByIDs keeps the order of ids and skips unknown ones.
func (r *PropertyRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*property.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := collect(rows, scanProperty)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*property.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*property.Property, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func scanProperty(row pgx.Row) (*property.Property, error) {
	var p property.Property
	var status property.Status
	var lat, lng *float64
	if err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &lat, &lng, &p.Media, &status,
		&p.AssignedAgentID, &p.RejectionReason, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	p.Restore(status)
	return &p, nil
}

func splitPoint(pt *geo.Point) (*float64, *float64) {
	if pt == nil {
		return nil, nil
	}
	lat, lng := pt.Lat, pt.Lng
	return &lat, &lng
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
