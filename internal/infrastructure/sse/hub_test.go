package sse

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

func TestPublishReachesRecipientsAndAdmins(t *testing.T) {
	hub := NewHub()
	buyer := NewClient(user.Actor{ID: uuid.New(), Role: user.RoleBuyer})
	bystander := NewClient(user.Actor{ID: uuid.New(), Role: user.RoleSeller})
	admin := NewClient(user.Actor{ID: uuid.New(), Role: user.RoleAdmin})
	for _, c := range []*Client{buyer, bystander, admin} {
		hub.Register(c)
	}
	require.Equal(t, 3, hub.ClientCount())

	e := notification.Event{ID: uuid.New(), Entity: "OFFER", To: "ACCEPTED", Recipients: []uuid.UUID{buyer.UserID}}
	require.NoError(t, hub.Publish(context.Background(), e))
	assert.Len(t, buyer.Messages, 1)
	assert.Empty(t, bystander.Messages)
	assert.Empty(t, admin.Messages)

	e.NotifyAdmins = true
	require.NoError(t, hub.Publish(context.Background(), e))
	assert.Len(t, admin.Messages, 1)

	hub.Unregister(buyer.ID)
	_, open := <-buyer.Messages
	assert.True(t, open)
	_, open = <-buyer.Messages
	assert.False(t, open)
	assert.Equal(t, 2, hub.ClientCount())
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	c := NewClient(user.Actor{ID: uuid.New(), Role: user.RoleBuyer})
	hub.Register(c)
	e := notification.Event{Recipients: []uuid.UUID{c.UserID}}
	for i := 0; i < bufferSize+5; i++ {
		require.NoError(t, hub.Publish(context.Background(), e))
	}
	assert.Len(t, c.Messages, bufferSize)
	hub.Stop()
	assert.Zero(t, hub.ClientCount())
}
