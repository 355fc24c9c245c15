package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/offer"
)

// OfferRepository implements offer.Repository.
type OfferRepository struct {
	q querier
}

const offerColumns = `id, property_id, buyer_id, visit_id, amount, counter_amount, counter_by, counter_rounds, accepted_amount, pct_vs_asking, lowball, expires_at, responded_at, status, version, created_at, updated_at`

func (r *OfferRepository) Create(ctx context.Context, o *offer.Offer) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, o.ID, o.PropertyID, o.BuyerID, o.VisitID, o.Amount, o.CounterAmount, o.CounterBy, o.CounterRounds, o.AcceptedAmount,
		o.PctVsAsking, o.Lowball, o.ExpiresAt, o.RespondedAt, o.Status(), o.Version, o.CreatedAt, o.UpdatedAt)
	return translate(err, "offer", o.ID)
}

func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	o, err := scanOffer(r.q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return o, err
}

func (r *OfferRepository) Update(ctx context.Context, o *offer.Offer, expected offer.Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE offers SET counter_amount=$1, counter_by=$2, counter_rounds=$3, accepted_amount=$4, expires_at=$5,
			responded_at=$6, status=$7, updated_at=$8, version=version+1
		WHERE id=$9 AND status=$10 AND version=$11
	`, o.CounterAmount, o.CounterBy, o.CounterRounds, o.AcceptedAmount, o.ExpiresAt, o.RespondedAt, o.Status(), o.UpdatedAt,
		o.ID, expected, o.Version)
	if err := updated(tag, err, "offer", o.ID); err != nil {
		return err
	}
	o.Version++
	return nil
}

func (r *OfferRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID, limit, offset int) ([]*offer.Offer, error) {
	query, args := limitOffset(`SELECT `+offerColumns+` FROM offers WHERE property_id=$1 ORDER BY created_at DESC, id`, []any{propertyID}, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOffer)
}

func (r *OfferRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]*offer.Offer, error) {
	query, args := limitOffset(`
		SELECT `+offerColumns+` FROM offers
		WHERE status IN ('PENDING', 'COUNTERED') AND expires_at < $1
		ORDER BY expires_at`, []any{now}, limit, 0)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOffer)
}

func (r *OfferRepository) ListOrphanedAcceptances(ctx context.Context, now time.Time, limit, offset int) ([]*offer.Offer, error) {
	query, args := limitOffset(`
		SELECT `+prefixed("o", offerColumns)+` FROM offers o
		WHERE o.status='ACCEPTED' AND o.expires_at < $1
			AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.offer_id = o.id)
		ORDER BY o.expires_at, o.id`, []any{now}, limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOffer)
}

func scanOffer(row pgx.Row) (*offer.Offer, error) {
	var o offer.Offer
	var status offer.Status
	if err := row.Scan(&o.ID, &o.PropertyID, &o.BuyerID, &o.VisitID, &o.Amount, &o.CounterAmount, &o.CounterBy, &o.CounterRounds,
		&o.AcceptedAmount, &o.PctVsAsking, &o.Lowball, &o.ExpiresAt, &o.RespondedAt, &status, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Restore(status)
	return &o, nil
}
