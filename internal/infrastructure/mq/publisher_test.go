package mq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/otp"
)

type sent struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type recordingChannel struct {
	sent []sent
}

func (r *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.sent = append(r.sent, sent{exchange: exchange, key: key, msg: msg})
	return nil
}

func (r *recordingChannel) Close() error { return nil }

func TestPublishUsesRoutingKey(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{ch: ch, exchange: "estate.events"}
	e := notification.Event{
		ID:       uuid.New(),
		Kind:     notification.KindTransition,
		Entity:   "PROPERTY",
		EntityID: uuid.New(),
		From:     "VERIFICATION_IN_PROGRESS",
		To:       "ACTIVE",
	}
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "estate.events", ch.sent[0].exchange)
	assert.Equal(t, "property.active", ch.sent[0].key)
	assert.Equal(t, e.ID.String(), ch.sent[0].msg.MessageId)

	var got notification.Event
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &got))
	assert.Equal(t, e.EntityID, got.EntityID)
}

func TestSendCodeRoutesByChannel(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{ch: ch, exchange: "estate.events"}
	require.NoError(t, p.SendCode(context.Background(), otp.ChannelSMS, uuid.New(), "123456"))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "otp.sms", ch.sent[0].key)
	assert.Contains(t, string(ch.sent[0].msg.Body), `"code":"123456"`)
}
