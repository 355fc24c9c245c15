package visit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/estate-hub/estate-hub/internal/application/apptest"
	visitapp "github.com/estate-hub/estate-hub/internal/application/visit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/otp"
	otpmocks "github.com/estate-hub/estate-hub/internal/domain/otp/mocks"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/store"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/domain/visit"
	"github.com/estate-hub/estate-hub/internal/infrastructure/memory"
)

const goodCode = "482913"

type fixture struct {
	env    *apptest.Env
	issuer *otpmocks.MockIssuer
	svc    *visitapp.Service
	seller user.Actor
	buyer  user.Actor
	agent  user.Actor
	p      *property.Property
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupOn(t, apptest.New(t))
}

func setupOn(t *testing.T, env *apptest.Env) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		env:    env,
		issuer: otpmocks.NewMockIssuer(ctrl),
		seller: apptest.Seller(),
		buyer:  apptest.Buyer(),
		agent:  env.Agent(t, 10),
	}
	f.svc = visitapp.NewService(env.Runner, f.issuer, 5, env.Logger)
	f.p = env.ActiveProperty(t, f.seller, f.agent, 10_000_000)
	f.issuer.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(func(code, hash string) bool {
		return code == goodCode && hash == "hash:"+goodCode
	}).AnyTimes()
	return f
}

func (f *fixture) expectIssue(times int) {
	f.issuer.EXPECT().Issue(gomock.Any(), otp.ChannelEmail, f.buyer.ID).DoAndReturn(func(_ context.Context, _ otp.Channel, _ uuid.UUID) (*otp.Issued, error) {
		return &otp.Issued{Hash: "hash:" + goodCode, ExpiresAt: f.env.Clock.Now().Add(otp.TTL)}, nil
	}).Times(times)
}

func (f *fixture) approved(t *testing.T) *visit.Visit {
	t.Helper()
	ctx := context.Background()
	v, err := f.svc.RequestVisit(ctx, f.buyer, f.p.ID, apptest.Start.Add(48*time.Hour))
	require.NoError(t, err)
	v, err = f.svc.ApproveVisit(ctx, f.agent, v.ID, apptest.Start.Add(72*time.Hour))
	require.NoError(t, err)
	return v
}

func TestRequestVisitNeedsActiveProperty(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.RequestVisit(ctx, f.buyer, f.p.ID, apptest.Start.Add(-time.Hour))
	assert.ErrorIs(t, err, errs.ErrValidation)

	draft, err := property.NewDraft(f.seller.ID, apptest.Draft(1_000_000), apptest.Start)
	require.NoError(t, err)
	require.NoError(t, f.env.Store.Repos().Properties.Create(ctx, draft))
	_, err = f.svc.RequestVisit(ctx, f.buyer, draft.ID, apptest.Start.Add(time.Hour))
	assert.ErrorIs(t, err, errs.ErrPropertyNotBookable)

	_, err = f.svc.RequestVisit(ctx, f.seller, f.p.ID, apptest.Start.Add(time.Hour))
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
}

func TestCheckInAndVerify(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)
	f.expectIssue(1)

	v, err := f.svc.StartCheckIn(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCheckedIn, v.Status())

	// A wrong code leaves the visit CHECKED_IN and the code usable.
	_, err = f.svc.VerifyCheckIn(ctx, f.buyer, v.ID, "000000")
	assert.ErrorIs(t, err, errs.ErrInvalidOTP)
	loaded, err := f.svc.Get(ctx, f.buyer, v.ID)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCheckedIn, loaded.Status())

	f.env.Clock.Advance(9 * time.Minute)
	v, err = f.svc.VerifyCheckIn(ctx, f.buyer, v.ID, goodCode)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCompleted, v.Status())
	assert.Nil(t, v.OTPHash)
}

// staleVisits fails the next visit update as if another unit won the row.
type staleVisits struct {
	visit.Repository
	fail *atomic.Bool
}

func (r staleVisits) Update(ctx context.Context, v *visit.Visit, expected visit.Status) error {
	if r.fail.CompareAndSwap(true, false) {
		return errs.ErrStale
	}
	return r.Repository.Update(ctx, v, expected)
}

type staleVisitStore struct {
	*memory.Store
	fail *atomic.Bool
}

func (s staleVisitStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		r.Visits = staleVisits{Repository: r.Visits, fail: s.fail}
		return fn(ctx, r)
	})
}

func TestCheckInRetriedAfterLostCommit(t *testing.T) {
	ctx := context.Background()
	fail := &atomic.Bool{}
	f := setupOn(t, apptest.NewWrapped(t, func(own *memory.Store) store.Store {
		return staleVisitStore{Store: own, fail: fail}
	}))
	v := f.approved(t)
	f.expectIssue(2)

	// The first code is delivered but never stored.
	fail.Store(true)
	_, err := f.svc.StartCheckIn(ctx, f.agent, v.ID, apptest.Bangkok)
	assert.ErrorIs(t, err, errs.ErrStale)
	loaded, err := f.svc.Get(ctx, f.agent, v.ID)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusApproved, loaded.Status())
	assert.Nil(t, loaded.OTPHash)
	assert.Empty(t, f.env.EventsFor("visit.checked_in"))

	v, err = f.svc.StartCheckIn(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCheckedIn, v.Status())
	v, err = f.svc.VerifyCheckIn(ctx, f.buyer, v.ID, goodCode)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCompleted, v.Status())
}

func TestCheckInGeofenceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		meters  float64
		wantErr error
	}{
		{name: "on site", meters: 0},
		{name: "exactly 100m", meters: 100},
		{name: "just outside", meters: 100.01, wantErr: errs.ErrGeofenceViolation},
		{name: "two blocks away", meters: 350, wantErr: errs.ErrGeofenceViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			v := f.approved(t)
			if tt.wantErr == nil {
				f.expectIssue(1)
			}
			reading := geo.Destination(apptest.Bangkok, 45, tt.meters)
			got, err := f.svc.StartCheckIn(context.Background(), f.agent, v.ID, reading)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				loaded, err := f.svc.Get(context.Background(), f.agent, v.ID)
				require.NoError(t, err)
				assert.Equal(t, visit.StatusApproved, loaded.Status())
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got.CheckInDistanceM)
			assert.LessOrEqual(t, *got.CheckInDistanceM, geo.CheckInRadiusMeters)
		})
	}
}

func TestExpiredCodeIsReissued(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)
	f.expectIssue(2)

	_, err := f.svc.StartCheckIn(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)

	_, err = f.svc.ReissueCheckInOTP(ctx, f.agent, v.ID, apptest.Bangkok)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	f.env.Clock.Advance(11 * time.Minute)
	_, err = f.svc.VerifyCheckIn(ctx, f.buyer, v.ID, goodCode)
	assert.ErrorIs(t, err, errs.ErrExpired)

	_, err = f.svc.ReissueCheckInOTP(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)
	v, err = f.svc.VerifyCheckIn(ctx, f.buyer, v.ID, goodCode)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCompleted, v.Status())
}

func TestCounterExchange(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)

	v, err := f.svc.CounterVisit(ctx, f.buyer, v.ID, apptest.Start.Add(96*time.Hour), "evening works better")
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCountered, v.Status())

	_, err = f.svc.RespondToVisitCounter(ctx, f.buyer, v.ID, true)
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	v, err = f.svc.RespondToVisitCounter(ctx, f.agent, v.ID, true)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusApproved, v.Status())
	assert.Equal(t, apptest.Start.Add(96*time.Hour), *v.ConfirmedDate)
}

func TestReCounterIsAudited(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)

	_, err := f.svc.CounterVisit(ctx, f.buyer, v.ID, apptest.Start.Add(96*time.Hour), "evening works better")
	require.NoError(t, err)
	v, err = f.svc.CounterVisit(ctx, f.agent, v.ID, apptest.Start.Add(120*time.Hour), "only mornings")
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCountered, v.Status())

	assert.Len(t, f.env.EventsFor("visit.countered"), 2)
	trail, err := f.env.Store.Repos().Audit.ListByEntity(ctx, visit.EntityType, v.ID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	last := trail[len(trail)-1]
	assert.Equal(t, string(visit.StatusCountered), last.FromState)
	assert.Equal(t, string(visit.StatusCountered), last.ToState)
	require.NotNil(t, last.Reason)
	assert.Equal(t, "only mornings", *last.Reason)
}

func TestReissuedCodeRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)
	f.expectIssue(2)

	_, err := f.svc.StartCheckIn(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)
	before := len(f.env.Events())

	f.env.Clock.Advance(11 * time.Minute)
	_, err = f.svc.ReissueCheckInOTP(ctx, f.agent, v.ID, apptest.Bangkok)
	require.NoError(t, err)
	assert.Len(t, f.env.Events(), before)
}

func TestCounterRoundLimit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)

	parties := []user.Actor{f.buyer, f.agent}
	for i := 0; i < 5; i++ {
		_, err := f.svc.CounterVisit(ctx, parties[i%2], v.ID, apptest.Start.Add(time.Duration(100+i)*time.Hour), "")
		require.NoError(t, err)
	}
	_, err := f.svc.CounterVisit(ctx, parties[1], v.ID, apptest.Start.Add(200*time.Hour), "")
	assert.ErrorIs(t, err, errs.ErrLimitExceeded)
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v := f.approved(t)

	_, err := f.svc.MarkNoShow(ctx, f.agent, v.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	f.env.Clock.Advance(73 * time.Hour)
	v, err = f.svc.MarkNoShow(ctx, f.agent, v.ID)
	require.NoError(t, err)
	assert.Equal(t, visit.StatusNoShow, v.Status())
	assert.Len(t, f.env.EventsFor("visit.no_show"), 1)
}

func TestStrangersCannotSeeVisit(t *testing.T) {
	f := setup(t)
	v := f.approved(t)

	_, err := f.svc.Get(context.Background(), apptest.Buyer(), v.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
