package omise

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/payment"
)

type fakeAPI struct {
	charge  *omise.Charge
	err     error
	lastReq *operations.CreateCharge
	refunds []*operations.CreateRefund
}

func (f *fakeAPI) CreateCharge(req *operations.CreateCharge) (*omise.Charge, error) {
	f.lastReq = req
	return f.charge, f.err
}

func (f *fakeAPI) CreateRefund(req *operations.CreateRefund) (*omise.Refund, error) {
	f.refunds = append(f.refunds, req)
	return &omise.Refund{}, f.err
}

func TestChargeTokenSuccess(t *testing.T) {
	api := &fakeAPI{charge: &omise.Charge{Status: omise.ChargeSuccessful}}
	api.charge.ID = "chrg_1"
	g := newGateway(api, "", zerolog.Nop())

	r, err := g.ChargeToken(context.Background(), payment.Charge{Amount: 10_000, PayerID: uuid.New(), Source: "tokn_test_1"})
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "chrg_1", r.Reference)
	assert.Equal(t, "tokn_test_1", api.lastReq.Card)
	assert.Empty(t, api.lastReq.Source)
	assert.Equal(t, "thb", api.lastReq.Currency)
}

func TestChargeFinalDeclined(t *testing.T) {
	msg := "insufficient funds"
	api := &fakeAPI{charge: &omise.Charge{Status: omise.ChargeFailed, FailureMessage: &msg}}
	g := newGateway(api, "thb", zerolog.Nop())

	r, err := g.ChargeFinal(context.Background(), payment.Charge{Amount: 90_000, Source: "src_test_1"})
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, msg, r.Message)
	assert.Equal(t, "src_test_1", api.lastReq.Source)
}

func TestTransportErrorIsReturned(t *testing.T) {
	g := newGateway(&fakeAPI{err: errors.New("timeout")}, "thb", zerolog.Nop())
	_, err := g.ChargeToken(context.Background(), payment.Charge{Amount: 1, Source: "tokn_x"})
	assert.ErrorContains(t, err, "timeout")
}

func TestRefund(t *testing.T) {
	api := &fakeAPI{}
	g := newGateway(api, "thb", zerolog.Nop())
	require.NoError(t, g.Refund(context.Background(), "chrg_9", 10_000))
	require.Len(t, api.refunds, 1)
	assert.Equal(t, "chrg_9", api.refunds[0].ChargeID)
	assert.Equal(t, int64(10_000), api.refunds[0].Amount)
}

func TestFromKeysWithoutKeysDeclines(t *testing.T) {
	g, err := FromKeys("", "", "thb", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, DecliningGateway{}, g)

	g, err = FromKeys("pkey_test_1", "skey_test_1", "thb", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Gateway{}, g)
}

func TestDecliningGatewayChargesNothing(t *testing.T) {
	var g payment.Gateway = DecliningGateway{Logger: zerolog.Nop()}
	ctx := context.Background()
	c := payment.Charge{Amount: 10_000, PayerID: uuid.New(), Source: "tokn_test_1"}

	r, err := g.ChargeToken(ctx, c)
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Empty(t, r.Reference)
	assert.Equal(t, notConfigured, r.Message)

	r, err = g.ChargeFinal(ctx, c)
	require.NoError(t, err)
	assert.False(t, r.Success)

	assert.Error(t, g.Refund(ctx, "chrg_1", 10_000))
}
