// Package apptest builds in-memory environments for service tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/notification/mocks"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/infrastructure/memory"
)

// Start is the fixed time every environment begins at.
var Start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Bangkok is where test properties are located.
var Bangkok = geo.Point{Lat: 13.7563, Lng: 100.5018}

// SigningKey signs audit entries in test environments.
var SigningKey = []byte("test-audit-signing-key")

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Env is a runner over an in-memory store with a recording publisher.
type Env struct {
	Store     *memory.Store
	Runner    *txn.Runner
	Clock     *Clock
	Publisher *mocks.MockPublisher
	Logger    zerolog.Logger

	mu     sync.Mutex
	events []notification.Event
}

// New builds an environment on the in-memory store.
func New(t *testing.T) *Env {
	t.Helper()
	return NewWithStore(t, nil)
}

// NewWithStore builds an environment whose runner uses st; nil means the
// environment's own memory store.
func NewWithStore(t *testing.T, st store.Store) *Env {
	t.Helper()
	return NewWrapped(t, func(own *memory.Store) store.Store {
		if st == nil {
			return own
		}
		return st
	})
}

// NewWrapped builds an environment whose runner goes through wrap(env.Store),
// so helpers reading env.Store see what the runner committed.
func NewWrapped(t *testing.T, wrap func(*memory.Store) store.Store) *Env {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &Env{
		Store:     memory.NewStore(),
		Clock:     &Clock{now: Start},
		Publisher: mocks.NewMockPublisher(ctrl),
		Logger:    zerolog.Nop(),
	}
	env.Publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e notification.Event) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.events = append(env.events, e)
		return nil
	}).AnyTimes()
	env.Runner = txn.NewRunner(wrap(env.Store), env.Publisher, SigningKey, env.Logger).WithClock(env.Clock.Now)
	return env
}

// Events returns the events published so far.
func (e *Env) Events() []notification.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]notification.Event(nil), e.events...)
}

// EventsFor returns published events with the given routing key.
func (e *Env) EventsFor(routingKey string) []notification.Event {
	var out []notification.Event
	for _, ev := range e.Events() {
		if ev.RoutingKey() == routingKey {
			out = append(out, ev)
		}
	}
	return out
}

func Seller() user.Actor { return user.Actor{ID: uuid.New(), Role: user.RoleSeller} }
func Buyer() user.Actor  { return user.Actor{ID: uuid.New(), Role: user.RoleBuyer} }
func Admin() user.Actor  { return user.Actor{ID: uuid.New(), Role: user.RoleAdmin} }

// Agent registers a verified agent based km kilometres east of Bangkok.
func (e *Env) Agent(t *testing.T, km float64) user.Actor {
	t.Helper()
	a := user.Actor{ID: uuid.New(), Role: user.RoleAgent}
	require.NoError(t, e.Store.Repos().Agents.Save(context.Background(), &agent.Profile{
		ID:        a.ID,
		Name:      "Agent " + a.ID.String()[:8],
		Verified:  true,
		Base:      geo.Destination(Bangkok, 90, km*1000),
		UpdatedAt: Start,
	}))
	return a
}

// Draft is a complete listing located in Bangkok.
func Draft(price int64) property.Draft {
	loc := Bangkok
	return property.Draft{
		Title:       "Riverside condo",
		Description: "Two bedrooms, river view",
		Price:       price,
		Location:    &loc,
		Media:       []string{"front.jpg"},
	}
}

// ActiveProperty stores an ACTIVE listing owned by seller and assigned to agent.
// It bypasses the services, so it has no audit trail.
func (e *Env) ActiveProperty(t *testing.T, seller, agentActor user.Actor, price int64) *property.Property {
	t.Helper()
	p, err := property.NewDraft(seller.ID, Draft(price), e.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, p.RequestAssignment())
	require.NoError(t, p.Assign(agentActor.ID))
	require.NoError(t, p.StartVerification())
	require.NoError(t, p.Approve())
	require.NoError(t, e.Store.Repos().Properties.Create(context.Background(), p))
	return p
}

// Property reloads a property from the store.
func (e *Env) Property(t *testing.T, id uuid.UUID) *property.Property {
	t.Helper()
	p, err := e.Store.Repos().Properties.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}
