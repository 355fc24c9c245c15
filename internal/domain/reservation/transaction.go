package reservation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

// TxStatus represents the registration transaction status.
type TxStatus string

const (
	TxInitiated TxStatus = "INITIATED"
	TxVerified  TxStatus = "VERIFIED"
	TxCompleted TxStatus = "COMPLETED"
)

const TransactionEntityType = "TRANSACTION"

var txTransitions = map[TxStatus][]TxStatus{
	TxInitiated: {TxVerified},
	TxVerified:  {TxCompleted},
	TxCompleted: {},
}

func CanTransitionTx(from, to TxStatus) bool {
	for _, s := range txTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidTxStatus(s TxStatus) bool {
	_, ok := txTransitions[s]
	return ok
}

// Transaction is the money side of a registration.
type Transaction struct {
	ID                 uuid.UUID   `json:"id"`
	ReservationID      uuid.UUID   `json:"reservationId"`
	PropertyID         uuid.UUID   `json:"propertyId"`
	TokenAmount        int64       `json:"tokenAmount"`
	FinalPaymentAmount int64       `json:"finalPaymentAmount"`
	Commission         *Commission `json:"commission,omitempty"`
	PaymentRef         *string     `json:"paymentRef,omitempty"`
	CompletedAt        *time.Time  `json:"completedAt,omitempty"`
	Version            int         `json:"version"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`

	status TxStatus
}

// NewTransaction opens the transaction once the registration slot is agreed.
func NewTransaction(r *Reservation, now time.Time) *Transaction {
	return &Transaction{
		ID:                 uuid.New(),
		ReservationID:      r.ID,
		PropertyID:         r.PropertyID,
		TokenAmount:        r.TokenAmount,
		FinalPaymentAmount: r.FinalPaymentDue(),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
		status:             TxInitiated,
	}
}

func (t *Transaction) Restore(s TxStatus) { t.status = s }

func (t *Transaction) Status() TxStatus { return t.status }

func (t *Transaction) transition(target TxStatus) error {
	if !CanTransitionTx(t.status, target) {
		return errs.InvalidTransition("transaction", t.status, target)
	}
	t.status = target
	return nil
}

// MarkVerified records that both registration codes were confirmed.
func (t *Transaction) MarkVerified() error {
	return t.transition(TxVerified)
}

// Complete persists the commission split. It is computed once and never changed.
func (t *Transaction) Complete(paymentRef string, now time.Time) error {
	if t.Commission != nil {
		return errs.New(errs.KindInvalidTransition, "commission already settled")
	}
	if err := t.transition(TxCompleted); err != nil {
		return err
	}
	split := SplitCommission(t.TokenAmount, t.FinalPaymentAmount)
	t.Commission = &split
	t.PaymentRef = &paymentRef
	t.CompletedAt = &now
	return nil
}

func (t *Transaction) Override(target TxStatus) error {
	if !ValidTxStatus(target) {
		return errs.Validation("unknown transaction status %q", target)
	}
	t.status = target
	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Status TxStatus `json:"status"`
	}{alias(t), t.status})
}
