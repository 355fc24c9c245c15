package otp

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_issuer.go -package=mocks . Issuer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TTL is the system-wide validity of a one-time code.
const TTL = 10 * time.Minute

// Channel is the out-of-band delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Issued is what the core keeps of a code: only its hash and expiry.
// The plain code goes straight to the recipient.
type Issued struct {
	Hash      string
	ExpiresAt time.Time
}

// Issuer creates and checks one-time codes. Expiry is enforced by the caller
// comparing ExpiresAt against its clock.
type Issuer interface {
	Issue(ctx context.Context, channel Channel, recipient uuid.UUID) (*Issued, error)
	Verify(submitted, hash string) bool
}
