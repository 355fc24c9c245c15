package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/estate-hub/estate-hub/internal/domain/reservation"
)

// ReservationRepository implements reservation.Repository. offer_id is unique
// and uq_reservations_active allows one ACTIVE reservation per property.
type ReservationRepository struct {
	q querier
}

const reservationColumns = `id, offer_id, property_id, buyer_id, seller_id, agent_id, price_snapshot, token_amount, token_payment_ref, stage, slot_proposed, slot_accepted_at, otp_hash, otp_expires_at, buyer_verified_at, seller_verified_at, cancel_reason, expires_at, closed_at, status, version, created_at, updated_at`

func (r *ReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, res.ID, res.OfferID, res.PropertyID, res.BuyerID, res.SellerID, res.AgentID, res.PriceSnapshot, res.TokenAmount,
		res.TokenPaymentRef, res.Stage, res.SlotProposed, res.SlotAcceptedAt, res.OTPHash, res.OTPExpiresAt, res.BuyerVerifiedAt,
		res.SellerVerifiedAt, res.CancelReason, res.ExpiresAt, res.ClosedAt, res.Status(), res.Version, res.CreatedAt, res.UpdatedAt)
	return translate(err, "reservation for offer", res.OfferID)
}

func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return res, err
}

func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation, expected reservation.Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE reservations SET stage=$1, slot_proposed=$2, slot_accepted_at=$3, otp_hash=$4, otp_expires_at=$5,
			buyer_verified_at=$6, seller_verified_at=$7, cancel_reason=$8, closed_at=$9, status=$10, updated_at=$11,
			version=version+1
		WHERE id=$12 AND status=$13 AND version=$14
	`, res.Stage, res.SlotProposed, res.SlotAcceptedAt, res.OTPHash, res.OTPExpiresAt, res.BuyerVerifiedAt, res.SellerVerifiedAt,
		res.CancelReason, res.ClosedAt, res.Status(), res.UpdatedAt, res.ID, expected, res.Version)
	if err := updated(tag, err, "reservation", res.ID); err != nil {
		return err
	}
	res.Version++
	return nil
}

func (r *ReservationRepository) FindByOffer(ctx context.Context, offerID uuid.UUID) (*reservation.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE offer_id=$1`, offerID))
	if noRows(err) {
		return nil, nil
	}
	return res, err
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*reservation.Reservation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE property_id=$1 ORDER BY created_at`, propertyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReservation)
}

func (r *ReservationRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	query, args := limitOffset(`
		SELECT `+reservationColumns+` FROM reservations
		WHERE status='ACTIVE' AND expires_at < $1
		ORDER BY expires_at`, []any{now}, limit, 0)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReservation)
}

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var res reservation.Reservation
	var status reservation.Status
	if err := row.Scan(&res.ID, &res.OfferID, &res.PropertyID, &res.BuyerID, &res.SellerID, &res.AgentID, &res.PriceSnapshot,
		&res.TokenAmount, &res.TokenPaymentRef, &res.Stage, &res.SlotProposed, &res.SlotAcceptedAt, &res.OTPHash, &res.OTPExpiresAt,
		&res.BuyerVerifiedAt, &res.SellerVerifiedAt, &res.CancelReason, &res.ExpiresAt, &res.ClosedAt, &status, &res.Version,
		&res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Restore(status)
	return &res, nil
}

// TransactionRepository implements reservation.TransactionRepository.
type TransactionRepository struct {
	q querier
}

const transactionColumns = `id, reservation_id, property_id, token_amount, final_payment_amount, commission_total, commission_agent, commission_platform, payment_ref, completed_at, status, version, created_at, updated_at`

func (r *TransactionRepository) Create(ctx context.Context, t *reservation.Transaction) error {
	total, agentShare, platform := splitCommission(t.Commission)
	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, t.ID, t.ReservationID, t.PropertyID, t.TokenAmount, t.FinalPaymentAmount, total, agentShare, platform, t.PaymentRef,
		t.CompletedAt, t.Status(), t.Version, t.CreatedAt, t.UpdatedAt)
	return translate(err, "transaction for reservation", t.ReservationID)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*reservation.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
	if noRows(err) {
		return nil, nil
	}
	return t, err
}

func (r *TransactionRepository) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*reservation.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reservation_id=$1`, reservationID))
	if noRows(err) {
		return nil, nil
	}
	return t, err
}

func (r *TransactionRepository) Update(ctx context.Context, t *reservation.Transaction, expected reservation.TxStatus) error {
	total, agentShare, platform := splitCommission(t.Commission)
	tag, err := r.q.Exec(ctx, `
		UPDATE transactions SET commission_total=$1, commission_agent=$2, commission_platform=$3, payment_ref=$4,
			completed_at=$5, status=$6, updated_at=$7, version=version+1
		WHERE id=$8 AND status=$9 AND version=$10
	`, total, agentShare, platform, t.PaymentRef, t.CompletedAt, t.Status(), t.UpdatedAt, t.ID, expected, t.Version)
	if err := updated(tag, err, "transaction", t.ID); err != nil {
		return err
	}
	t.Version++
	return nil
}

func scanTransaction(row pgx.Row) (*reservation.Transaction, error) {
	var t reservation.Transaction
	var status reservation.TxStatus
	var total, agentShare, platform *int64
	if err := row.Scan(&t.ID, &t.ReservationID, &t.PropertyID, &t.TokenAmount, &t.FinalPaymentAmount, &total, &agentShare,
		&platform, &t.PaymentRef, &t.CompletedAt, &status, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if total != nil && agentShare != nil && platform != nil {
		t.Commission = &reservation.Commission{Total: *total, AgentShare: *agentShare, PlatformShare: *platform}
	}
	t.Restore(status)
	return &t, nil
}

func splitCommission(c *reservation.Commission) (total, agentShare, platform *int64) {
	if c == nil {
		return nil, nil, nil
	}
	return &c.Total, &c.AgentShare, &c.PlatformShare
}
