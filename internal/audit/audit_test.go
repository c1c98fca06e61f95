package audit_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDirectLogger(db *gorm.DB) *audit.Logger {
	// nil asynq client: entries are written synchronously.
	return audit.NewLogger(db, nil, testLogger())
}

func TestRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	ctx := testutil.TestContext(t)

	err := audit.Record(ctx, db, audit.Entry{
		OrganizationID: org.ID,
		UserID:         &user.ID,
		Resource:       "client",
		ResourceID:     uuid.New().String(),
		Action:         "create",
		Metadata:       map[string]any{"name": "Acme"},
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, org.ID, row.OrganizationID)
	assert.Equal(t, "client", row.Resource)
	assert.Equal(t, "create", row.Action)
	assert.Contains(t, row.Metadata, "Acme")
}

func TestRecord_EmptyMetadata(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	ctx := testutil.TestContext(t)

	err := audit.Record(ctx, db, audit.Entry{
		OrganizationID: org.ID,
		Resource:       "invoice",
		Action:         "send",
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "{}", row.Metadata)
	assert.Nil(t, row.UserID)
}

func TestLog_DirectWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	logger := newDirectLogger(db)
	ctx := testutil.TestContext(t)

	logger.Log(ctx, audit.Entry{
		OrganizationID: org.ID,
		Resource:       "quote",
		Action:         "accept",
	})

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

// A failing audit write must not surface to the caller.
func TestLog_SwallowsWriteFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)

	org := testutil.CreateTestOrg(t, db)
	logger := newDirectLogger(db)
	ctx := testutil.TestContext(t)

	// Close the underlying connection so the insert fails.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		logger.Log(ctx, audit.Entry{
			OrganizationID: org.ID,
			Resource:       "client",
			Action:         "delete",
		})
	})
}

func TestList_FiltersAndScoping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	orgA := testutil.CreateTestOrg(t, db)
	orgB := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	ctx := testutil.TestContext(t)

	entries := []audit.Entry{
		{OrganizationID: orgA.ID, UserID: &user.ID, Resource: "client", ResourceID: "c1", Action: "create"},
		{OrganizationID: orgA.ID, UserID: &user.ID, Resource: "client", ResourceID: "c1", Action: "update"},
		{OrganizationID: orgA.ID, Resource: "invoice", ResourceID: "i1", Action: "send"},
		{OrganizationID: orgB.ID, Resource: "client", ResourceID: "c2", Action: "create"},
	}
	for _, e := range entries {
		require.NoError(t, audit.Record(ctx, db, e))
	}

	logger := newDirectLogger(db)
	scopeA := tenant.NewScope(db, orgA.ID)

	// Unfiltered: only org A's entries.
	rows, total, err := logger.List(ctx, scopeA, audit.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)

	// Resource filter.
	rows, total, err = logger.List(ctx, scopeA, audit.ListFilter{Resource: "client"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, row := range rows {
		assert.Equal(t, "client", row.Resource)
	}

	// Action filter.
	_, total, err = logger.List(ctx, scopeA, audit.ListFilter{Action: "send"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// User filter.
	_, total, err = logger.List(ctx, scopeA, audit.ListFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestForResource(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	org := testutil.CreateTestOrg(t, db)
	ctx := testutil.TestContext(t)

	resourceID := uuid.New().String()
	for _, action := range []string{"create", "update", "send"} {
		require.NoError(t, audit.Record(ctx, db, audit.Entry{
			OrganizationID: org.ID,
			Resource:       "invoice",
			ResourceID:     resourceID,
			Action:         action,
		}))
	}
	require.NoError(t, audit.Record(ctx, db, audit.Entry{
		OrganizationID: org.ID,
		Resource:       "invoice",
		ResourceID:     uuid.New().String(),
		Action:         "create",
	}))

	logger := newDirectLogger(db)
	scope := tenant.NewScope(db, org.ID)

	rows, total, err := logger.ForResource(ctx, scope, "invoice", resourceID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)
}
