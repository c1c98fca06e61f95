package tasks_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tasks"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTaskHandler(t *testing.T) (*tasks.Handler, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tasks.NewHandler(db, logger, nil), db
}

func createSchedule(t *testing.T, db *gorm.DB, orgID, clientID uuid.UUID, enabled bool) *models.RecurringInvoice {
	t.Helper()
	recurring := &models.RecurringInvoice{
		OrganizationID: orgID,
		ClientID:       clientID,
		Name:           "RETAINER",
		CronExpr:       "0 9 1 * *",
		Currency:       "USD",
		AmountCents:    250_000,
		Description:    "Monthly retainer",
		IsEnabled:      enabled,
		NextRunAt:      time.Now().UTC().Unix(),
	}
	require.NoError(t, db.Create(recurring).Error)
	return recurring
}

func TestHandleGenerateInvoice(t *testing.T) {
	handler, db := newTaskHandler(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	client := testutil.CreateTestClient(t, db, org.ID, "Acme")
	recurring := createSchedule(t, db, org.ID, client.ID, true)

	task, err := tasks.NewGenerateInvoiceTask(tasks.GenerateInvoicePayload{
		RecurringInvoiceID: recurring.ID,
		OrganizationID:     org.ID,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleGenerateInvoice(ctx, task))

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "organization_id = ?", org.ID).Error)
	assert.Equal(t, client.ID, invoice.ClientID)
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, int64(250_000), invoice.TotalCents)
	assert.Contains(t, invoice.Number, "RETAINER-")

	var line models.InvoiceLine
	require.NoError(t, db.First(&line, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, "Monthly retainer", line.Description)

	// Schedule advances and records what it produced.
	var reloaded models.RecurringInvoice
	require.NoError(t, db.First(&reloaded, "id = ?", recurring.ID).Error)
	assert.Greater(t, reloaded.NextRunAt, recurring.NextRunAt)
	require.NotNil(t, reloaded.LastRunAt)
	require.NotNil(t, reloaded.LastInvoiceID)
	assert.Equal(t, invoice.ID, *reloaded.LastInvoiceID)

	var logged models.AuditLog
	require.NoError(t, db.First(&logged, "organization_id = ? AND resource = ?", org.ID, "invoice").Error)
	assert.Equal(t, "create", logged.Action)
	assert.Contains(t, logged.Metadata, recurring.ID.String())
}

func TestHandleGenerateInvoice_DisabledSchedule(t *testing.T) {
	handler, db := newTaskHandler(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	client := testutil.CreateTestClient(t, db, org.ID, "Acme")
	recurring := createSchedule(t, db, org.ID, client.ID, false)

	task, err := tasks.NewGenerateInvoiceTask(tasks.GenerateInvoicePayload{
		RecurringInvoiceID: recurring.ID,
		OrganizationID:     org.ID,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleGenerateInvoice(ctx, task))

	var n int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&n).Error)
	assert.Zero(t, n)
}

// A stale id, or one belonging to another organization, is skipped without
// error so the task is not retried.
func TestHandleGenerateInvoice_MissingOrForeignSchedule(t *testing.T) {
	handler, db := newTaskHandler(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	otherOrg := testutil.CreateTestOrg(t, db)
	client := testutil.CreateTestClient(t, db, org.ID, "Acme")
	recurring := createSchedule(t, db, org.ID, client.ID, true)

	missing, err := tasks.NewGenerateInvoiceTask(tasks.GenerateInvoicePayload{
		RecurringInvoiceID: uuid.New(),
		OrganizationID:     org.ID,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleGenerateInvoice(ctx, missing))

	foreign, err := tasks.NewGenerateInvoiceTask(tasks.GenerateInvoicePayload{
		RecurringInvoiceID: recurring.ID,
		OrganizationID:     otherOrg.ID,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleGenerateInvoice(ctx, foreign))

	var n int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestHandleGenerateInvoice_BadPayload(t *testing.T) {
	handler, _ := newTaskHandler(t)
	ctx := testutil.TestContext(t)

	task := asynq.NewTask(tasks.TypeGenerateInvoice, []byte("not json"))
	assert.Error(t, handler.HandleGenerateInvoice(ctx, task))
}

func TestHandleAuditRecord(t *testing.T) {
	handler, db := newTaskHandler(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	entry := audit.Entry{
		OrganizationID: org.ID,
		Resource:       "client",
		ResourceID:     uuid.New().String(),
		Action:         "delete",
	}
	task, err := audit.NewRecordTask(entry)
	require.NoError(t, err)
	require.NoError(t, handler.HandleAuditRecord(ctx, task))

	var logged models.AuditLog
	require.NoError(t, db.First(&logged, "organization_id = ?", org.ID).Error)
	assert.Equal(t, "client", logged.Resource)
	assert.Equal(t, "delete", logged.Action)
}
