package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/estate-hub/estate-hub/internal/domain/otp"
)

type captureSender struct {
	codes map[uuid.UUID]string
	err   error
}

func (c *captureSender) SendCode(_ context.Context, _ otp.Channel, recipient uuid.UUID, code string) error {
	if c.err != nil {
		return c.err
	}
	c.codes[recipient] = code
	return nil
}

func TestIssueHashesAndDelivers(t *testing.T) {
	sender := &captureSender{codes: map[uuid.UUID]string{}}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewIssuer(sender, 0, zerolog.Nop()).WithClock(func() time.Time { return now })
	issuer.cost = bcrypt.MinCost
	buyer := uuid.New()

	issued, err := issuer.Issue(context.Background(), otp.ChannelSMS, buyer)
	require.NoError(t, err)
	code := sender.codes[buyer]
	require.Len(t, code, codeDigits)
	assert.NotContains(t, issued.Hash, code)
	assert.Equal(t, now.Add(otp.TTL), issued.ExpiresAt)

	assert.True(t, issuer.Verify(code, issued.Hash))
	assert.False(t, issuer.Verify("", issued.Hash))
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.False(t, issuer.Verify(wrong, issued.Hash))
}

func TestIssueFailsWhenDeliveryFails(t *testing.T) {
	issuer := NewIssuer(&captureSender{err: errors.New("smtp down")}, time.Minute, zerolog.Nop())
	issuer.cost = bcrypt.MinCost
	_, err := issuer.Issue(context.Background(), otp.ChannelEmail, uuid.New())
	assert.ErrorContains(t, err, "smtp down")
}
