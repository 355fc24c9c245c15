package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/estate-hub/estate-hub/internal/domain/otp"
)

const codeDigits = 6

// Sender delivers a plain code to its recipient over a channel.
type Sender interface {
	SendCode(ctx context.Context, channel otp.Channel, recipient uuid.UUID, code string) error
}

// Issuer generates numeric codes, hands them to a Sender and keeps only the bcrypt hash.
type Issuer struct {
	sender Sender
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger zerolog.Logger
}

func NewIssuer(sender Sender, ttl time.Duration, logger zerolog.Logger) *Issuer {
	if ttl <= 0 {
		ttl = otp.TTL
	}
	return &Issuer{
		sender: sender,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "otp").Logger(),
	}
}

// WithClock replaces the time source used for expiry.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(ctx context.Context, channel otp.Channel, recipient uuid.UUID) (*otp.Issued, error) {
	code, err := generateCode(codeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), i.cost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}
	if err := i.sender.SendCode(ctx, channel, recipient, code); err != nil {
		return nil, fmt.Errorf("deliver otp: %w", err)
	}
	i.logger.Debug().Str("channel", string(channel)).Str("recipient", recipient.String()).Msg("otp issued")
	return &otp.Issued{Hash: string(hash), ExpiresAt: i.now().Add(i.ttl)}, nil
}

func (i *Issuer) Verify(submitted, hash string) bool {
	if submitted == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(submitted)) == nil
}

func generateCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// LogSender writes codes to the log. It is meant for local development only.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendCode(_ context.Context, channel otp.Channel, recipient uuid.UUID, code string) error {
	s.Logger.Info().Str("channel", string(channel)).Str("recipient", recipient.String()).Str("code", code).Msg("otp delivery")
	return nil
}
