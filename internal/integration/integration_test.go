//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-hub/estate-hub/internal/application/apptest"
	assignmentapp "github.com/estate-hub/estate-hub/internal/application/assignment"
	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
	propertyapp "github.com/estate-hub/estate-hub/internal/application/property"
	"github.com/estate-hub/estate-hub/internal/application/txn"
	"github.com/estate-hub/estate-hub/internal/domain/agent"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/geo"
	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/property"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/infrastructure/postgres"
	"github.com/estate-hub/estate-hub/internal/migrations"
)

const auditKeyHex = "00112233445566778899aabbccddeeff"

func newTestStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Migrations run on every start, so applying them twice must be harmless.
	require.NoError(t, postgres.RunMigrations(ctx, pool, migrations.FS))
	require.NoError(t, postgres.RunMigrations(ctx, pool, migrations.FS))
	_, err = pool.Exec(ctx, `TRUNCATE audit_log, integrity_faults, transactions, reservations, offers, visits,
		agent_assignments, properties, agents RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return postgres.NewStore(pool), pool
}

func TestConditionalUpdateDetectsStaleCopy(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	repo := st.Repos().Properties

	p, err := property.NewDraft(uuid.New(), apptest.Draft(5_000_000), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))

	first, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, first.UpdatePrice(6_000_000))
	require.NoError(t, repo.Update(ctx, first, property.StatusDraft))
	assert.Equal(t, 2, first.Version)

	require.NoError(t, second.UpdatePrice(7_000_000))
	assert.ErrorIs(t, repo.Update(ctx, second, property.StatusDraft), errs.ErrStale)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListingFlowOnPostgres(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	key := []byte(auditKeyHex)
	runner := txn.NewRunner(st, notification.Fanout{}, key, zerolog.Nop())
	properties := propertyapp.NewService(runner, nil, zerolog.Nop())
	assignments := assignmentapp.NewService(runner, zerolog.Nop())
	audits := auditapp.NewService(st.Repos().Audit, key, zerolog.Nop())

	seller := apptest.Seller()
	agentActor := user.Actor{ID: uuid.New(), Role: user.RoleAgent}
	require.NoError(t, st.Repos().Agents.Save(ctx, &agent.Profile{
		ID:        agentActor.ID,
		Name:      "Somchai",
		Verified:  true,
		Base:      geo.Destination(apptest.Bangkok, 90, 5_000),
		UpdatedAt: time.Now().UTC(),
	}))

	p, err := properties.CreateDraft(ctx, seller, apptest.Draft(8_000_000))
	require.NoError(t, err)
	a, err := properties.RequestAgentAssignment(ctx, seller, p.ID, agentActor.ID)
	require.NoError(t, err)

	// A property holds at most one live assignment.
	_, err = properties.RequestAgentAssignment(ctx, seller, p.ID, agentActor.ID)
	assert.Error(t, err)

	_, err = assignments.RespondToAssignment(ctx, agentActor, a.ID, true, "")
	require.NoError(t, err)
	_, err = properties.StartVerification(ctx, agentActor, p.ID)
	require.NoError(t, err)
	p, err = properties.SubmitVerificationResult(ctx, agentActor, p.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, property.StatusActive, p.Status())

	found, err := properties.SearchActive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)

	admin := apptest.Admin()
	walk, err := audits.VerifyWalk(ctx, admin, property.EntityType, p.ID)
	require.NoError(t, err)
	assert.True(t, walk.Valid)

	// Timestamps survive the round trip, so stored signatures still verify.
	sigs, err := audits.VerifySignatures(ctx, admin, property.EntityType, p.ID)
	require.NoError(t, err)
	assert.Empty(t, sigs.Invalid)
	assert.Equal(t, walk.Entries, sigs.Verified)
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	st, pool := newTestStore(t)
	runner := txn.NewRunner(st, nil, nil, zerolog.Nop())
	properties := propertyapp.NewService(runner, nil, zerolog.Nop())
	_, err := properties.CreateDraft(ctx, apptest.Seller(), apptest.Draft(1_000_000))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE audit_log SET reason = 'rewritten'`)
	assert.Error(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM audit_log`)
	assert.Error(t, err)
}
