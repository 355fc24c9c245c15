package reservation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func newReservation(price int64) *Reservation {
	return New(Params{
		OfferID:    uuid.New(),
		PropertyID: uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		AgentID:    uuid.New(),
		Price:      price,
	}, 30*24*time.Hour, now)
}

func TestMoney(t *testing.T) {
	tests := []struct {
		price int64
		token int64
		final int64
	}{
		{price: 10_000_000, token: 10_000, final: 90_000},
		{price: 1_234_567, token: 1_235, final: 11_111},
		{price: 500, token: 1, final: 5},
		{price: 499, token: 0, final: 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.token, TokenAmount(tt.price), "token for %d", tt.price)
		assert.Equal(t, tt.final, FinalPaymentAmount(tt.price), "final for %d", tt.price)
	}
}

func TestSplitCommission(t *testing.T) {
	c := SplitCommission(10_000, 90_000)
	assert.Equal(t, Commission{Total: 100_000, AgentShare: 80_000, PlatformShare: 20_000}, c)

	odd := SplitCommission(1_235, 11_111)
	assert.Equal(t, int64(12_346), odd.Total)
	assert.Equal(t, odd.Total, odd.AgentShare+odd.PlatformShare)
}

func TestPctVsAsking(t *testing.T) {
	assert.Equal(t, -10.0, PctVsAsking(9_000_000, 10_000_000))
	assert.Equal(t, -15.5, PctVsAsking(8_450_000, 10_000_000))
	assert.Equal(t, 0.0, PctVsAsking(1, 0))
}

func TestTokenFixedAtCreation(t *testing.T) {
	r := newReservation(10_000_000)
	assert.Equal(t, int64(10_000), r.TokenAmount)
	assert.Equal(t, now.Add(30*24*time.Hour), r.ExpiresAt)
	assert.Equal(t, int64(90_000), r.FinalPaymentDue())
}

func TestRegistrationOrder(t *testing.T) {
	r := newReservation(10_000_000)

	_, err := r.OTPRecipient()
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	assert.ErrorIs(t, r.AcceptSlot(now), errs.ErrInvalidTransition)

	require.NoError(t, r.ProposeSlot(now.Add(48*time.Hour)))
	require.NoError(t, r.ProposeSlot(now.Add(72*time.Hour)))
	require.NoError(t, r.AcceptSlot(now))

	stage, err := r.OTPRecipient()
	require.NoError(t, err)
	assert.Equal(t, StageBuyerOTPIssued, stage)

	assert.ErrorIs(t, r.VerifySeller(now), errs.ErrInvalidTransition)
	require.NoError(t, r.IssueOTP(stage, "h1", now.Add(10*time.Minute)))
	require.NoError(t, r.IssueOTP(stage, "h2", now.Add(20*time.Minute)))
	require.NoError(t, r.VerifyBuyer(now))

	stage, err = r.OTPRecipient()
	require.NoError(t, err)
	assert.Equal(t, StageSellerOTPIssued, stage)

	assert.ErrorIs(t, r.Complete(now), errs.ErrInvalidTransition)
	require.NoError(t, r.IssueOTP(stage, "h3", now.Add(10*time.Minute)))
	require.NoError(t, r.VerifySeller(now))
	require.NoError(t, r.Complete(now))
	assert.Equal(t, StatusCompleted, r.Status())
	assert.Equal(t, StagePaid, r.Stage)
}

func TestExpireOnlyFromActive(t *testing.T) {
	r := newReservation(10_000_000)
	assert.False(t, r.Lapsed(now.Add(30*24*time.Hour)))
	assert.True(t, r.Lapsed(now.Add(31*24*time.Hour)))
	require.NoError(t, r.Expire(now.Add(31*24*time.Hour)))
	assert.ErrorIs(t, r.Expire(now), errs.ErrInvalidTransition)
	assert.ErrorIs(t, r.Cancel("changed mind", now), errs.ErrInvalidTransition)
	assert.ErrorIs(t, r.ProposeSlot(now), errs.ErrInvalidTransition)
}

func TestTransactionCommissionOnce(t *testing.T) {
	r := newReservation(10_000_000)
	tx := NewTransaction(r, now)
	assert.Equal(t, TxInitiated, tx.Status())
	assert.ErrorIs(t, tx.Complete("ch_1", now), errs.ErrInvalidTransition)

	require.NoError(t, tx.MarkVerified())
	require.NoError(t, tx.Complete("ch_1", now))
	require.NotNil(t, tx.Commission)
	assert.Equal(t, int64(80_000), tx.Commission.AgentShare)
	assert.Equal(t, int64(20_000), tx.Commission.PlatformShare)

	assert.ErrorIs(t, tx.Complete("ch_2", now), errs.ErrInvalidTransition)
	assert.Equal(t, "ch_1", *tx.PaymentRef)
}
