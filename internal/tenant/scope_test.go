package tenant_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type scopeFixture struct {
	db      *gorm.DB
	orgA    *models.Organization
	orgB    *models.Organization
	scopeA  *tenant.Scope
	scopeB  *tenant.Scope
	clientA *models.Client
	clientB *models.Client
}

func setupScopes(t *testing.T) *scopeFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	orgA := testutil.CreateTestOrg(t, db)
	orgB := testutil.CreateTestOrg(t, db)

	return &scopeFixture{
		db:      db,
		orgA:    orgA,
		orgB:    orgB,
		scopeA:  tenant.NewScope(db, orgA.ID),
		scopeB:  tenant.NewScope(db, orgB.ID),
		clientA: testutil.CreateTestClient(t, db, orgA.ID, "Acme"),
		clientB: testutil.CreateTestClient(t, db, orgB.ID, "Globex"),
	}
}

func TestScopedFind_OnlySeesOwnOrganization(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	clients, err := tenant.Model[models.Client](f.scopeA).Find(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, f.clientA.ID, clients[0].ID)

	clients, err = tenant.Model[models.Client](f.scopeB).Find(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, f.clientB.ID, clients[0].ID)
}

// Caller conditions can only narrow the organization filter, never widen it.
func TestScopedWhere_CannotEscapeOrganization(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	clients, err := tenant.Model[models.Client](f.scopeA).
		Where("name = ?", f.clientB.Name).
		Find(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)

	n, err := tenant.Model[models.Client](f.scopeA).
		Where("organization_id = ?", f.orgB.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "contradictory organization conditions must AND to nothing")
}

func TestScopedGet(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	got, err := tenant.Get[models.Client](ctx, f.scopeA, f.clientA.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clientA.Name, got.Name)

	// Another organization's record and a nonexistent one fail identically.
	_, errCross := tenant.Get[models.Client](ctx, f.scopeA, f.clientB.ID)
	_, errMissing := tenant.Get[models.Client](ctx, f.scopeA, uuid.New())
	assert.ErrorIs(t, errCross, tenant.ErrAccessDenied)
	assert.ErrorIs(t, errMissing, tenant.ErrAccessDenied)
	assert.Equal(t, errCross.Error(), errMissing.Error())
}

func TestScopedUpdate(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	err := tenant.Update[models.Client](ctx, f.scopeA, f.clientA.ID, map[string]any{"name": "Acme Renamed"})
	require.NoError(t, err)

	got, err := tenant.Get[models.Client](ctx, f.scopeA, f.clientA.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.Name)
}

// A cross-organization update must fail and leave the target untouched.
func TestScopedUpdate_CrossOrganizationLeavesRecordUnmodified(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	err := tenant.Update[models.Client](ctx, f.scopeA, f.clientB.ID, map[string]any{"name": "Hijacked"})
	assert.ErrorIs(t, err, tenant.ErrAccessDenied)

	got, err := tenant.Get[models.Client](ctx, f.scopeB, f.clientB.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.Name)
}

func TestScopedDelete(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	// Cross-organization delete fails and the record survives.
	err := tenant.Delete[models.Client](ctx, f.scopeA, f.clientB.ID)
	assert.ErrorIs(t, err, tenant.ErrAccessDenied)

	_, err = tenant.Get[models.Client](ctx, f.scopeB, f.clientB.ID)
	require.NoError(t, err)

	// In-organization delete succeeds.
	require.NoError(t, tenant.Delete[models.Client](ctx, f.scopeA, f.clientA.ID))
	_, err = tenant.Get[models.Client](ctx, f.scopeA, f.clientA.ID)
	assert.ErrorIs(t, err, tenant.ErrAccessDenied)
}

func TestScopedVerify(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	assert.NoError(t, tenant.Verify[models.Client](ctx, f.scopeA, f.clientA.ID))

	err := tenant.Verify[models.Client](ctx, f.scopeA, f.clientB.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrAccessDenied)
	assert.Contains(t, err.Error(), "clients")
}

func TestScopedUpdateAll(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	testutil.CreateTestClient(t, f.db, f.orgA.ID, "Second")

	n, err := tenant.Model[models.Client](f.scopeA).UpdateAll(ctx, map[string]any{"is_archived": true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The other organization's rows are untouched.
	got, err := tenant.Get[models.Client](ctx, f.scopeB, f.clientB.ID)
	require.NoError(t, err)
	assert.False(t, got.IsArchived)
}

func TestScopedDeleteAll(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	testutil.CreateTestClient(t, f.db, f.orgA.ID, "Second")

	n, err := tenant.Model[models.Client](f.scopeA).DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := tenant.Model[models.Client](f.scopeB).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestScopedPagination(t *testing.T) {
	f := setupScopes(t)
	ctx := testutil.TestContext(t)

	for _, name := range []string{"B Corp", "C Corp", "D Corp"} {
		testutil.CreateTestClient(t, f.db, f.orgA.ID, name)
	}

	page, err := tenant.Model[models.Client](f.scopeA).
		Order("name ASC").
		Limit(2).
		Offset(1).
		Find(ctx)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "B Corp", page[0].Name)
	assert.Equal(t, "C Corp", page[1].Name)
}
