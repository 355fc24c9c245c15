package offer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/errs"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func pending(t *testing.T) *Offer {
	t.Helper()
	o, err := New(uuid.New(), uuid.New(), nil, 9_000_000, 72*time.Hour, now)
	require.NoError(t, err)
	return o
}

func TestNewValidatesAmount(t *testing.T) {
	_, err := New(uuid.New(), uuid.New(), nil, 0, time.Hour, now)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestAcceptPending(t *testing.T) {
	o := pending(t)
	require.NoError(t, o.Accept(SideSeller, 48*time.Hour, now.Add(time.Hour)))
	assert.Equal(t, StatusAccepted, o.Status())
	assert.Equal(t, int64(9_000_000), *o.AcceptedAmount)
	assert.Equal(t, now.Add(49*time.Hour), o.ExpiresAt)

	until, ok := o.ReservableUntil()
	assert.True(t, ok)
	assert.Equal(t, o.ExpiresAt, until)
}

func TestBuyerCannotAnswerOwnOffer(t *testing.T) {
	o := pending(t)
	assert.ErrorIs(t, o.Accept(SideBuyer, time.Hour, now), errs.ErrNotAuthorized)
	assert.ErrorIs(t, o.Counter(SideBuyer, 1, time.Hour, 5, now), errs.ErrNotAuthorized)
	assert.Equal(t, StatusPending, o.Status())
}

func TestCounterThenBuyerAccepts(t *testing.T) {
	o := pending(t)
	require.NoError(t, o.Counter(SideSeller, 9_500_000, 72*time.Hour, 5, now.Add(time.Hour)))
	assert.Equal(t, StatusCountered, o.Status())
	assert.Equal(t, now.Add(73*time.Hour), o.ExpiresAt)

	assert.ErrorIs(t, o.Accept(SideSeller, time.Hour, now), errs.ErrNotAuthorized)

	require.NoError(t, o.Accept(SideBuyer, 48*time.Hour, now.Add(2*time.Hour)))
	assert.Equal(t, StatusAccepted, o.Status())
	assert.Equal(t, int64(9_500_000), *o.AcceptedAmount)
}

func TestRecounterRounds(t *testing.T) {
	o := pending(t)
	require.NoError(t, o.Counter(SideSeller, 9_800_000, time.Hour, 2, now))
	require.NoError(t, o.Counter(SideBuyer, 9_200_000, time.Hour, 2, now))
	assert.ErrorIs(t, o.Counter(SideSeller, 9_600_000, time.Hour, 2, now), errs.ErrLimitExceeded)

	require.NoError(t, o.Accept(SideSeller, time.Hour, now))
	assert.Equal(t, int64(9_200_000), *o.AcceptedAmount)
}

func TestLapsedAndExpire(t *testing.T) {
	o := pending(t)
	assert.False(t, o.Lapsed(now.Add(72*time.Hour)))
	assert.True(t, o.Lapsed(now.Add(72*time.Hour+time.Nanosecond)))
	require.NoError(t, o.Expire())
	assert.False(t, o.Lapsed(now.Add(100*time.Hour)))
	assert.ErrorIs(t, o.Accept(SideSeller, time.Hour, now), errs.ErrInvalidTransition)
	assert.ErrorIs(t, o.Expire(), errs.ErrInvalidTransition)
}

func TestRejectTerminal(t *testing.T) {
	o := pending(t)
	require.NoError(t, o.Reject(SideSeller, now))
	assert.ErrorIs(t, o.Counter(SideSeller, 1, time.Hour, 5, now), errs.ErrInvalidTransition)
}
