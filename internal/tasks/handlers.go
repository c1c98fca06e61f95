package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/pkg/util"
	"gorm.io/gorm"
)

type Handler struct {
	db          *gorm.DB
	logger      *slog.Logger
	asynqClient *asynq.Client
}

func NewHandler(db *gorm.DB, logger *slog.Logger, asynqClient *asynq.Client) *Handler {
	return &Handler{
		db:          db,
		logger:      logger,
		asynqClient: asynqClient,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(audit.TaskTypeRecord, h.HandleAuditRecord)
	mux.HandleFunc(TypeGenerateInvoice, h.HandleGenerateInvoice)
	mux.HandleFunc(TypeSchedulerTick, h.HandleSchedulerTick)
}

// HandleAuditRecord persists one audit entry delivered through the queue.
func (h *Handler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	var entry audit.Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return audit.Record(ctx, h.db, entry)
}

// HandleGenerateInvoice creates the next invoice for one recurring schedule.
// The schedule row is loaded with its organization filter so a stale or
// cross-organization task id generates nothing.
func (h *Handler) HandleGenerateInvoice(ctx context.Context, t *asynq.Task) error {
	var payload GenerateInvoicePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var recurring models.RecurringInvoice
	err := h.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", payload.RecurringInvoiceID, payload.OrganizationID).
		First(&recurring).Error
	if err != nil {
		h.logger.Warn("recurring invoice not found, skipping",
			"recurring_invoice_id", payload.RecurringInvoiceID,
			"org_id", payload.OrganizationID,
		)
		return nil
	}
	if !recurring.IsEnabled {
		return nil
	}

	now := time.Now().UTC()
	invoice := models.Invoice{
		OrganizationID: recurring.OrganizationID,
		ClientID:       recurring.ClientID,
		Number:         fmt.Sprintf("%s-%s", recurring.Name, now.Format("2006-01")),
		Status:         models.InvoiceStatusDraft,
		Currency:       recurring.Currency,
		SubtotalCents:  recurring.AmountCents,
		TotalCents:     recurring.AmountCents,
		IssuedAt:       now.Unix(),
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		if recurring.Description != "" {
			line := models.InvoiceLine{
				InvoiceID:   invoice.ID,
				Description: recurring.Description,
				Quantity:    1,
				UnitCents:   recurring.AmountCents,
				AmountCents: recurring.AmountCents,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}

		nextRun, err := util.NextCronTime(recurring.CronExpr, now)
		if err != nil {
			return fmt.Errorf("computing next run: %w", err)
		}
		lastRun := now.Unix()
		return tx.Model(&recurring).Updates(map[string]any{
			"next_run_at":     nextRun.Unix(),
			"last_run_at":     &lastRun,
			"last_invoice_id": invoice.ID,
		}).Error
	})
	if err != nil {
		h.logger.Error("recurring invoice generation failed",
			"recurring_invoice_id", recurring.ID,
			"error", err,
		)
		return err
	}

	if auditErr := audit.Record(ctx, h.db, audit.Entry{
		OrganizationID: recurring.OrganizationID,
		Resource:       "invoice",
		ResourceID:     invoice.ID.String(),
		Action:         "create",
		Metadata:       map[string]any{"recurring_invoice_id": recurring.ID.String()},
	}); auditErr != nil {
		h.logger.Warn("audit write failed", "error", auditErr)
	}

	h.logger.Info("generated recurring invoice",
		"recurring_invoice_id", recurring.ID,
		"invoice_id", invoice.ID,
		"org_id", recurring.OrganizationID,
	)
	return nil
}

// HandleSchedulerTick finds all enabled recurring invoices that are due and
// enqueues a generation task for each.
func (h *Handler) HandleSchedulerTick(ctx context.Context, t *asynq.Task) error {
	now := time.Now().UTC().Unix()

	var due []models.RecurringInvoice
	err := h.db.WithContext(ctx).
		Where("is_enabled = ? AND next_run_at > 0 AND next_run_at <= ?", true, now).
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("loading due recurring invoices: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	enqueued := 0
	for _, recurring := range due {
		task, err := NewGenerateInvoiceTask(GenerateInvoicePayload{
			RecurringInvoiceID: recurring.ID,
			OrganizationID:     recurring.OrganizationID,
		})
		if err != nil {
			h.logger.Error("building generation task", "error", err)
			continue
		}
		if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
			h.logger.Error("enqueueing generation task",
				"recurring_invoice_id", recurring.ID,
				"error", err,
			)
			continue
		}
		enqueued++
	}

	h.logger.Info("scheduler tick", "due", len(due), "enqueued", enqueued)
	return nil
}
