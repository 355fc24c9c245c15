package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
	"github.com/estate-hub/estate-hub/internal/domain/audit"
	"github.com/estate-hub/estate-hub/internal/domain/errs"
	"github.com/estate-hub/estate-hub/internal/domain/offer"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/infrastructure/memory"
)

var (
	key   = []byte("audit-test-key")
	admin = user.Actor{ID: uuid.New(), Role: user.RoleAdmin}
	t0    = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
)

func appendSigned(t *testing.T, repo audit.Repository, e *audit.Entry) {
	t.Helper()
	sig, err := audit.Sign(e, key)
	require.NoError(t, err)
	e.Signature = sig
	require.NoError(t, repo.Append(context.Background(), e))
}

// offerTrail stores PENDING, COUNTERED, ACCEPTED for one offer a minute apart.
func offerTrail(t *testing.T, repo audit.Repository, buyer user.Actor) uuid.UUID {
	t.Helper()
	id := uuid.New()
	steps := [][2]string{{"", "PENDING"}, {"PENDING", "COUNTERED"}, {"COUNTERED", "ACCEPTED"}}
	for i, s := range steps {
		appendSigned(t, repo, audit.NewEntry(offer.EntityType, id, s[0], s[1], buyer, "", t0.Add(time.Duration(i)*time.Minute)))
	}
	return id
}

func TestHistoryIsAdminOnly(t *testing.T) {
	st := memory.NewStore()
	svc := auditapp.NewService(st.Repos().Audit, key, zerolog.Nop())
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}
	id := offerTrail(t, st.Repos().Audit, buyer)

	_, err := svc.History(context.Background(), buyer, offer.EntityType, id)
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	entries, err := svc.History(context.Background(), admin, offer.EntityType, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "PENDING", entries[0].ToState)
	assert.Equal(t, "ACCEPTED", entries[2].ToState)
}

func TestVerifyWalk(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	repo := st.Repos().Audit
	svc := auditapp.NewService(repo, key, zerolog.Nop())
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}

	id := offerTrail(t, repo, buyer)
	res, err := svc.VerifyWalk(ctx, admin, offer.EntityType, id)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.Entries)

	// ACCEPTED is terminal, so a plain entry out of it breaks the walk.
	appendSigned(t, repo, audit.NewEntry(offer.EntityType, id, "ACCEPTED", "PENDING", buyer, "", t0.Add(time.Hour)))
	res, err = svc.VerifyWalk(ctx, admin, offer.EntityType, id)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.NotNil(t, res.Violation)

	_, err = svc.VerifyWalk(ctx, admin, "INVOICE", id)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestVerifyWalkAllowsOverride(t *testing.T) {
	st := memory.NewStore()
	repo := st.Repos().Audit
	svc := auditapp.NewService(repo, key, zerolog.Nop())
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}
	id := offerTrail(t, repo, buyer)

	e := audit.NewEntry(offer.EntityType, id, "ACCEPTED", "PENDING", admin, "reopened after dispute", t0.Add(time.Hour))
	e.Override = true
	appendSigned(t, repo, e)

	res, err := svc.VerifyWalk(context.Background(), admin, offer.EntityType, id)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestVerifySignatures(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	repo := st.Repos().Audit
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}
	id := offerTrail(t, repo, buyer)

	forged := audit.NewEntry(offer.EntityType, id, "ACCEPTED", "EXPIRED", buyer, "", t0.Add(time.Hour))
	forged.Signature = []byte("not-a-mac")
	require.NoError(t, repo.Append(ctx, forged))

	svc := auditapp.NewService(repo, key, zerolog.Nop())
	res, err := svc.VerifySignatures(ctx, admin, offer.EntityType, id)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Verified)
	assert.Equal(t, []int64{4}, res.Invalid)

	unsigned := auditapp.NewService(repo, nil, zerolog.Nop())
	_, err = unsigned.VerifySignatures(ctx, admin, offer.EntityType, id)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestQueryPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	repo := st.Repos().Audit
	svc := auditapp.NewService(repo, key, zerolog.Nop())
	buyer := user.Actor{ID: uuid.New(), Role: user.RoleBuyer}
	first := offerTrail(t, repo, buyer)
	offerTrail(t, repo, user.Actor{ID: uuid.New(), Role: user.RoleBuyer})

	page, err := svc.Query(ctx, admin, auditapp.QueryParams{ActorID: &buyer.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.True(t, page.Pagination.HasMore)
	require.NotNil(t, page.Pagination.Cursor)
	assert.Equal(t, "ACCEPTED", page.Entries[0].ToState)
	assert.Equal(t, first, page.Entries[0].EntityID)

	page, err = svc.Query(ctx, admin, auditapp.QueryParams{ActorID: &buyer.ID, Limit: 2, Cursor: page.Pagination.Cursor})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "PENDING", page.Entries[0].ToState)
	assert.False(t, page.Pagination.HasMore)

	bad := "%%%"
	_, err = svc.Query(ctx, admin, auditapp.QueryParams{Cursor: &bad})
	assert.ErrorIs(t, err, errs.ErrValidation)

	overrides := true
	page, err = svc.Query(ctx, admin, auditapp.QueryParams{Override: &overrides})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}
