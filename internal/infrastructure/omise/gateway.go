package omise

import (
	"context"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/rs/zerolog"

	"github.com/estate-hub/estate-hub/internal/domain/payment"
)

// client is the slice of the Omise API the gateway needs.
type client interface {
	CreateCharge(req *operations.CreateCharge) (*omise.Charge, error)
	CreateRefund(req *operations.CreateRefund) (*omise.Refund, error)
}

type sdkClient struct {
	c *omise.Client
}

func (s sdkClient) CreateCharge(req *operations.CreateCharge) (*omise.Charge, error) {
	ch := &omise.Charge{}
	if err := s.c.Do(ch, req); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s sdkClient) CreateRefund(req *operations.CreateRefund) (*omise.Refund, error) {
	rf := &omise.Refund{}
	if err := s.c.Do(rf, req); err != nil {
		return nil, err
	}
	return rf, nil
}

// Gateway charges through Omise. Token charges take a card token from the
// client; final payments take either a card token or a source id.
type Gateway struct {
	api      client
	currency string
	logger   zerolog.Logger
}

func NewGateway(publicKey, secretKey, currency string, logger zerolog.Logger) (*Gateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	c.SetDebug(false)
	return newGateway(sdkClient{c: c}, currency, logger), nil
}

// FromKeys returns an Omise gateway, or a DecliningGateway when neither key is set.
func FromKeys(publicKey, secretKey, currency string, logger zerolog.Logger) (payment.Gateway, error) {
	if publicKey == "" && secretKey == "" {
		logger.Warn().Msg("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY not set; every charge is declined")
		return DecliningGateway{Logger: logger.With().Str("component", "payments").Logger()}, nil
	}
	return NewGateway(publicKey, secretKey, currency, logger)
}

func newGateway(api client, currency string, logger zerolog.Logger) *Gateway {
	if currency == "" {
		currency = "thb"
	}
	return &Gateway{api: api, currency: currency, logger: logger.With().Str("component", "omise").Logger()}
}

func (g *Gateway) ChargeToken(ctx context.Context, c payment.Charge) (*payment.Receipt, error) {
	return g.charge(ctx, "token", c)
}

func (g *Gateway) ChargeFinal(ctx context.Context, c payment.Charge) (*payment.Receipt, error) {
	return g.charge(ctx, "final", c)
}

func (g *Gateway) charge(ctx context.Context, kind string, c payment.Charge) (*payment.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := &operations.CreateCharge{
		Amount:      c.Amount,
		Currency:    g.currency,
		Description: c.Description,
		Metadata:    map[string]interface{}{"payer_id": c.PayerID.String(), "kind": kind},
	}
	if isSource(c.Source) {
		req.Source = c.Source
	} else {
		req.Card = c.Source
	}
	ch, err := g.api.CreateCharge(req)
	if err != nil {
		return nil, fmt.Errorf("omise create charge: %w", err)
	}
	return receiptOf(ch), nil
}

func (g *Gateway) Refund(ctx context.Context, reference string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rf, err := g.api.CreateRefund(&operations.CreateRefund{ChargeID: reference, Amount: amount})
	if err != nil {
		return fmt.Errorf("omise refund %s: %w", reference, err)
	}
	g.logger.Info().Str("charge", reference).Str("refund", rf.ID).Int64("amount", amount).Msg("charge refunded")
	return nil
}

func receiptOf(ch *omise.Charge) *payment.Receipt {
	r := &payment.Receipt{Reference: ch.ID}
	switch ch.Status {
	case omise.ChargeSuccessful:
		r.Success = true
	case omise.ChargePending:
		// Redirect flows settle later through a webhook; a pending charge is not a payment yet.
		r.Message = "charge pending"
	default:
		r.Message = string(ch.Status)
		if ch.FailureMessage != nil && *ch.FailureMessage != "" {
			r.Message = *ch.FailureMessage
		}
	}
	return r
}

// Omise source ids look like src_test_xxx; card tokens look like tokn_test_xxx.
func isSource(id string) bool {
	return len(id) > 4 && id[:4] == "src_"
}

// DecliningGateway stands in when no Omise keys are configured. Every charge is
// declined, so nothing is reserved or sold without a real payment.
type DecliningGateway struct {
	Logger zerolog.Logger
}

const notConfigured = "payments are not configured"

func (d DecliningGateway) ChargeToken(_ context.Context, c payment.Charge) (*payment.Receipt, error) {
	return d.decline("token", c), nil
}

func (d DecliningGateway) ChargeFinal(_ context.Context, c payment.Charge) (*payment.Receipt, error) {
	return d.decline("final", c), nil
}

func (d DecliningGateway) decline(kind string, c payment.Charge) *payment.Receipt {
	d.Logger.Warn().Str("kind", kind).Str("payer", c.PayerID.String()).Int64("amount", c.Amount).Msg("charge declined: " + notConfigured)
	return &payment.Receipt{Message: notConfigured}
}

func (d DecliningGateway) Refund(_ context.Context, reference string, _ int64) error {
	return fmt.Errorf("refund %s: %s", reference, notConfigured)
}
