package assignment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/application/apptest"
	assignmentapp "github.com/estate-hub/estate-hub/internal/application/assignment"
	propertyapp "github.com/estate-hub/estate-hub/internal/application/property"
	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/assignment"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/domain/user"
)

type fixture struct {
	env    *apptest.Env
	props  *propertyapp.Service
	svc    *assignmentapp.Service
	seller user.Actor
	agent  user.Actor
	p      *property.Property
	a      *assignment.Assignment
}

func setup(t *testing.T, km float64) *fixture {
	t.Helper()
	ctx := context.Background()
	env := apptest.New(t)
	f := &fixture{
		env:    env,
		props:  propertyapp.NewService(env.Runner, nil, env.Logger),
		svc:    assignmentapp.NewService(env.Runner, env.Logger),
		seller: apptest.Seller(),
		agent:  env.Agent(t, km),
	}
	p, err := f.props.CreateDraft(ctx, f.seller, apptest.Draft(10_000_000))
	require.NoError(t, err)
	a, err := f.props.RequestAgentAssignment(ctx, f.seller, p.ID, f.agent.ID)
	require.NoError(t, err)
	f.p, f.a = p, a
	return f
}

func TestAcceptAssignsProperty(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 15)
	assert.Equal(t, 24*time.Hour, f.a.SLATier)

	a, err := f.svc.RespondToAssignment(ctx, f.agent, f.a.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusAccepted, a.Status())
	require.NotNil(t, a.SLADeadline)
	assert.Equal(t, apptest.Start.Add(24*time.Hour), *a.SLADeadline)

	p := f.env.Property(t, f.p.ID)
	assert.Equal(t, property.StatusAssigned, p.Status())
	require.NotNil(t, p.AssignedAgentID)
	assert.Equal(t, f.agent.ID, *p.AssignedAgentID)
	assert.Len(t, f.env.EventsFor("property.assigned"), 1)
}

func TestOnlyTargetAgentResponds(t *testing.T) {
	f := setup(t, 15)
	other := f.env.Agent(t, 5)

	_, err := f.svc.RespondToAssignment(context.Background(), other, f.a.ID, true, "")
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
}

func TestDeclineAllowsReselection(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 30)
	assert.Equal(t, 48*time.Hour, f.a.SLATier)

	a, err := f.svc.RespondToAssignment(ctx, f.agent, f.a.ID, false, "fully booked")
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusDeclined, a.Status())
	assert.Equal(t, property.StatusPendingAssignment, f.env.Property(t, f.p.ID).Status())

	next := f.env.Agent(t, 70)
	second, err := f.props.RequestAgentAssignment(ctx, f.seller, f.p.ID, next.ID)
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, second.SLATier)

	// A second open request for the same property is refused.
	_, err = f.props.RequestAgentAssignment(ctx, f.seller, f.p.ID, f.env.Agent(t, 1).ID)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestOutOfServiceArea(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	props := propertyapp.NewService(env.Runner, nil, env.Logger)
	seller := apptest.Seller()
	far := env.Agent(t, 120)

	p, err := props.CreateDraft(ctx, seller, apptest.Draft(10_000_000))
	require.NoError(t, err)
	_, err = props.RequestAgentAssignment(ctx, seller, p.ID, far.ID)
	assert.ErrorIs(t, err, errs.ErrOutOfServiceArea)
	assert.Equal(t, property.StatusDraft, env.Property(t, p.ID).Status())
}

// barrierStore makes every transactional unit wait after reading an assignment
// until all racers have read it.
type barrierStore struct {
	store.Store
	wg *sync.WaitGroup
}

func (b barrierStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	return b.Store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		r.Assignments = barrierAssignments{Repository: r.Assignments, wg: b.wg}
		return fn(ctx, r)
	})
}

type barrierAssignments struct {
	assignment.Repository
	wg *sync.WaitGroup
}

func (b barrierAssignments) GetByID(ctx context.Context, id uuid.UUID) (*assignment.Assignment, error) {
	a, err := b.Repository.GetByID(ctx, id)
	b.wg.Done()
	b.wg.Wait()
	return a, err
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 15)

	var wg sync.WaitGroup
	wg.Add(2)
	runner := txn.NewRunner(barrierStore{Store: f.env.Store, wg: &wg}, f.env.Publisher, nil, f.env.Logger).WithClock(f.env.Clock.Now)
	racer := assignmentapp.NewService(runner, f.env.Logger)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := racer.RespondToAssignment(ctx, f.agent, f.a.ID, true, "")
			results <- err
		}()
	}

	var won, stale int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			won++
		case errors.Is(err, errs.ErrStale):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, stale)

	a, err := f.svc.Get(ctx, f.agent, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusAccepted, a.Status())
	assert.Equal(t, 2, a.Version)
	assert.Equal(t, property.StatusAssigned, f.env.Property(t, f.p.ID).Status())
}

func TestSLABreachReportedOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 15)
	_, err := f.svc.RespondToAssignment(ctx, f.agent, f.a.ID, true, "")
	require.NoError(t, err)

	f.env.Clock.Advance(23 * time.Hour)
	n, err := f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.env.Clock.Advance(2 * time.Hour)
	n, err = f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	breaches := f.env.EventsFor("agent_assignment.sla_breach")
	require.Len(t, breaches, 1)
	assert.True(t, breaches[0].NotifyAdmins)
	assert.Contains(t, breaches[0].Recipients, f.seller.ID)

	// A breach is a signal only.
	assert.Equal(t, property.StatusAssigned, f.env.Property(t, f.p.ID).Status())
}

func TestNoBreachAfterVerification(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 15)
	_, err := f.svc.RespondToAssignment(ctx, f.agent, f.a.ID, true, "")
	require.NoError(t, err)
	_, err = f.props.StartVerification(ctx, f.agent, f.p.ID)
	require.NoError(t, err)
	_, err = f.props.SubmitVerificationResult(ctx, f.agent, f.p.ID, true, "")
	require.NoError(t, err)

	f.env.Clock.Advance(48 * time.Hour)
	n, err := f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.env.EventsFor("agent_assignment.sla_breach"))
}

func TestBreachSweepReadsEveryPage(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 15)
	f.svc.WithSweepBatch(2)
	ids := []uuid.UUID{f.a.ID}
	for i := 0; i < 4; i++ {
		p, err := f.props.CreateDraft(ctx, f.seller, apptest.Draft(10_000_000))
		require.NoError(t, err)
		a, err := f.props.RequestAgentAssignment(ctx, f.seller, p.ID, f.agent.ID)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	for _, id := range ids {
		_, err := f.svc.RespondToAssignment(ctx, f.agent, id, true, "")
		require.NoError(t, err)
	}

	f.env.Clock.Advance(25 * time.Hour)
	n, err := f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, f.env.EventsFor("agent_assignment.sla_breach"), 5)

	n, err = f.svc.DetectSLABreaches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
