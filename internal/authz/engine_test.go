package authz_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, db *gorm.DB) *authz.Engine {
	t.Helper()
	return authz.NewEngine(db, testLogger(), authz.DefaultCacheTTL)
}

func TestEngineCan_SystemRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		// owner holds the global wildcard
		{"owner", "client:delete", true},
		{"owner", "payment_credential:delete", true},
		{"owner", "role:update", true},

		// admin has broad grants but not organization:delete
		{"admin", "member:invite", true},
		{"admin", "audit:read", true},
		{"admin", "organization:delete", false},

		// manager manages records, not members
		{"manager", "invoice:delete", true},
		{"manager", "member:invite", false},
		{"manager", "payment_credential:read", false},

		// editor creates and updates but never deletes
		{"editor", "invoice:send", true},
		{"editor", "client:create", true},
		{"editor", "client:delete", false},
		{"editor", "audit:read", false},

		// viewer is read-only
		{"viewer", "client:read", true},
		{"viewer", "client:create", false},
		{"viewer", "invoice:send", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"_"+tt.permission, func(t *testing.T) {
			user := testutil.CreateTestUser(t, db)
			testutil.CreateTestMembership(t, db, org, user, tt.role)

			got := engine.Can(ctx, user.ID, org.ID, tt.permission)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngineCan_NoMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	assert.False(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
	assert.False(t, engine.Can(ctx, uuid.New(), org.ID, "client:read"))
	assert.False(t, engine.Can(ctx, user.ID, uuid.New(), "client:read"))
}

func TestEngineCan_MalformedPermission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, user, "owner")
	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	for _, permission := range []string{"", "client", ":read", "client:", ":"} {
		assert.False(t, engine.Can(ctx, user.ID, org.ID, permission),
			"malformed permission %q must deny", permission)
	}
}

// A member of one organization has no standing in another, whatever their
// role at home.
func TestEngineCan_CrossOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	orgA := testutil.CreateTestOrg(t, db)
	orgB := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, orgA, user, "owner")

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	assert.True(t, engine.Can(ctx, user.ID, orgA.ID, "client:read"))
	assert.False(t, engine.Can(ctx, user.ID, orgB.ID, "client:read"))
}

// Suspension takes effect on the next check. The cache only holds role grant
// sets, never membership status, so no TTL window applies here.
func TestEngineCan_SuspendedMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	membership := testutil.CreateTestMembership(t, db, org, user, "admin")

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	// Warm the role cache first.
	require.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))

	err := db.Model(membership).Update("status", models.MembershipSuspended).Error
	require.NoError(t, err)

	assert.False(t, engine.Can(ctx, user.ID, org.ID, "client:read"))

	err = db.Model(membership).Update("status", models.MembershipActive).Error
	require.NoError(t, err)

	assert.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
}

func TestEngineCanAllCanAny(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, user, "editor")

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	assert.True(t, engine.CanAll(ctx, user.ID, org.ID, []string{"client:read", "invoice:send"}))
	assert.False(t, engine.CanAll(ctx, user.ID, org.ID, []string{"client:read", "client:delete"}))
	assert.True(t, engine.CanAny(ctx, user.ID, org.ID, []string{"client:delete", "invoice:send"}))
	assert.False(t, engine.CanAny(ctx, user.ID, org.ID, []string{"client:delete", "audit:read"}))

	// Vacuous truth on the empty list, nothing granted on the empty list.
	assert.True(t, engine.CanAll(ctx, user.ID, org.ID, nil))
	assert.False(t, engine.CanAny(ctx, user.ID, org.ID, nil))
}

func TestEngineRequirePermission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, user, "viewer")

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	assert.NoError(t, engine.RequirePermission(ctx, user.ID, org.ID, "client:read"))

	err := engine.RequirePermission(ctx, user.ID, org.ID, "client:delete")
	require.Error(t, err)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "client:delete")
}

func TestEngineRoleChecks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, owner, "owner")
	admin := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, admin, "admin")
	viewer := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, org, viewer, "viewer")

	assert.True(t, engine.IsOwner(ctx, owner.ID, org.ID))
	assert.False(t, engine.IsOwner(ctx, admin.ID, org.ID))

	assert.True(t, engine.IsAdminOrOwner(ctx, owner.ID, org.ID))
	assert.True(t, engine.IsAdminOrOwner(ctx, admin.ID, org.ID))
	assert.False(t, engine.IsAdminOrOwner(ctx, viewer.ID, org.ID))

	assert.False(t, engine.IsOwner(ctx, uuid.New(), org.ID))
}

// replaceRoleGrant swaps a role's grants for a single permission row.
func replaceRoleGrant(t *testing.T, db *gorm.DB, roleID uuid.UUID, resource, action string) {
	t.Helper()

	var perm models.Permission
	err := db.Where("resource = ? AND action = ?", resource, action).First(&perm).Error
	require.NoError(t, err)

	require.NoError(t, db.Where("role_id = ?", roleID).Delete(&models.RolePermission{}).Error)
	require.NoError(t, db.Create(&models.RolePermission{RoleID: roleID, PermissionID: perm.ID}).Error)
}

// Grant changes become visible immediately after invalidation; without it
// they surface only once the TTL lapses.
func TestEngineCacheInvalidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)

	role := models.Role{Name: "billing-" + uuid.New().String()[:8], Priority: 10}
	require.NoError(t, db.Create(&role).Error)
	replaceRoleGrant(t, db, role.ID, "client", "read")

	membership := models.Membership{
		OrganizationID: org.ID,
		UserID:         user.ID,
		RoleID:         role.ID,
		Status:         models.MembershipActive,
	}
	require.NoError(t, db.Create(&membership).Error)

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	require.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
	require.False(t, engine.Can(ctx, user.ID, org.ID, "invoice:read"))

	replaceRoleGrant(t, db, role.ID, "invoice", "read")

	// Stale within the TTL: the cached grant set still answers.
	assert.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
	assert.False(t, engine.Can(ctx, user.ID, org.ID, "invoice:read"))

	engine.InvalidateRole(role.ID)

	assert.False(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
	assert.True(t, engine.Can(ctx, user.ID, org.ID, "invoice:read"))
}

// With a short TTL, grant changes surface without any explicit invalidation.
func TestEngineCacheTTLExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)

	role := models.Role{Name: "reports-" + uuid.New().String()[:8], Priority: 10}
	require.NoError(t, db.Create(&role).Error)
	replaceRoleGrant(t, db, role.ID, "client", "read")

	membership := models.Membership{
		OrganizationID: org.ID,
		UserID:         user.ID,
		RoleID:         role.ID,
		Status:         models.MembershipActive,
	}
	require.NoError(t, db.Create(&membership).Error)

	engine := authz.NewEngine(db, testLogger(), 50*time.Millisecond)
	ctx := testutil.TestContext(t)

	require.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))

	replaceRoleGrant(t, db, role.ID, "invoice", "read")
	time.Sleep(80 * time.Millisecond)

	assert.False(t, engine.Can(ctx, user.ID, org.ID, "client:read"))
	assert.True(t, engine.Can(ctx, user.ID, org.ID, "invoice:read"))
}

func TestEngineInvalidateAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)

	role := models.Role{Name: "ops-" + uuid.New().String()[:8], Priority: 10}
	require.NoError(t, db.Create(&role).Error)
	replaceRoleGrant(t, db, role.ID, "client", "read")

	membership := models.Membership{
		OrganizationID: org.ID,
		UserID:         user.ID,
		RoleID:         role.ID,
		Status:         models.MembershipActive,
	}
	require.NoError(t, db.Create(&membership).Error)

	engine := newTestEngine(t, db)
	ctx := testutil.TestContext(t)

	require.True(t, engine.Can(ctx, user.ID, org.ID, "client:read"))

	replaceRoleGrant(t, db, role.ID, "invoice", "read")
	engine.InvalidateAll()

	assert.True(t, engine.Can(ctx, user.ID, org.ID, "invoice:read"))
}
