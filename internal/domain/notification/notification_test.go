package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/notification/mocks"
)

func TestRoutingKey(t *testing.T) {
	e := notification.Event{Kind: notification.KindTransition, Entity: "AGENT_ASSIGNMENT", To: "ACCEPTED"}
	assert.Equal(t, "agent_assignment.accepted", e.RoutingKey())

	e.Kind = notification.KindSLABreach
	assert.Equal(t, "agent_assignment.sla_breach", e.RoutingKey())
}

func TestRecipientsDedupes(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, []uuid.UUID{a, b}, notification.Recipients(a, uuid.Nil, b, a))
}

func TestFanoutContinuesPastFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockPublisher(ctrl)
	second := mocks.NewMockPublisher(ctrl)
	e := notification.Event{ID: uuid.New()}

	first.EXPECT().Publish(gomock.Any(), e).Return(errors.New("broker unreachable"))
	second.EXPECT().Publish(gomock.Any(), e).Return(nil)

	err := notification.Fanout{first, nil, second}.Publish(context.Background(), e)
	assert.ErrorContains(t, err, "broker unreachable")
}
