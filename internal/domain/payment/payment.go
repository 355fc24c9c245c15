package payment

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_gateway.go -package=mocks . Gateway

import (
	"context"

	"github.com/google/uuid"
)

// Charge is a request to move money from the payer.
type Charge struct {
	Amount      int64
	PayerID     uuid.UUID
	Source      string // card token or payment confirmation from the client
	Description string
}

// Receipt is the gateway outcome. Success=false carries the decline message.
type Receipt struct {
	Success   bool
	Reference string
	Message   string
}

// Gateway is the external payment processor. A transport error or an
// unsuccessful receipt leaves nothing charged and can be retried.
type Gateway interface {
	ChargeToken(ctx context.Context, c Charge) (*Receipt, error)
	ChargeFinal(ctx context.Context, c Charge) (*Receipt, error)
	Refund(ctx context.Context, reference string, amount int64) error
}
