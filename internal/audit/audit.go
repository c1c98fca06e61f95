// Package audit records state-changing actions. Writes are fire-and-forget:
// a failed audit write is logged operationally and never propagated, so the
// business operation it describes is never rolled back or blocked.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"gorm.io/gorm"
)

// TaskTypeRecord is the asynq task type for deferred audit writes.
const TaskTypeRecord = "audit:record"

// Entry describes one auditable action.
type Entry struct {
	OrganizationID uuid.UUID      `json:"organization_id"`
	UserID         *uuid.UUID     `json:"user_id,omitempty"`
	Resource       string         `json:"resource"`
	ResourceID     string         `json:"resource_id,omitempty"`
	Action         string         `json:"action"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
}

// NewRecordTask builds the asynq task carrying one audit entry.
func NewRecordTask(e Entry) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data, asynq.Queue("low")), nil
}

// Logger writes audit entries, through the queue when one is configured and
// directly otherwise.
type Logger struct {
	db     *gorm.DB
	client *asynq.Client
	logger *slog.Logger
}

// NewLogger creates an audit logger. client may be nil; entries are then
// written synchronously, still best-effort.
func NewLogger(db *gorm.DB, client *asynq.Client, logger *slog.Logger) *Logger {
	return &Logger{db: db, client: client, logger: logger}
}

// Log records an entry. It never returns an error: enqueue failures fall
// back to a direct write, and a failed direct write is only logged.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if l.client != nil {
		task, err := NewRecordTask(e)
		if err == nil {
			if _, err = l.client.EnqueueContext(ctx, task); err == nil {
				return
			}
		}
		l.logger.Warn("audit enqueue failed, writing directly", "error", err)
	}

	if err := Record(ctx, l.db, e); err != nil {
		l.logger.Warn("audit write failed",
			"org_id", e.OrganizationID,
			"resource", e.Resource,
			"action", e.Action,
			"error", err,
		)
	}
}

// Record persists one entry. Used by Log's direct path and by the worker
// handling queued entries.
func Record(ctx context.Context, db *gorm.DB, e Entry) error {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling audit metadata: %w", err)
		}
		metadata = string(data)
	}

	row := models.AuditLog{
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		Resource:       e.Resource,
		ResourceID:     e.ResourceID,
		Action:         e.Action,
		Metadata:       metadata,
		IPAddress:      e.IPAddress,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// ListFilter narrows audit reads. Zero values mean "no filter".
type ListFilter struct {
	UserID     *uuid.UUID
	Resource   string
	ResourceID string
	Action     string
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 50
	}
	if f.PerPage > 200 {
		f.PerPage = 200
	}
}

func (f *ListFilter) apply(q *tenant.Query[models.AuditLog]) *tenant.Query[models.AuditLog] {
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

// List returns the organization's audit entries matching the filter, newest
// first, with the total count for pagination.
func (l *Logger) List(ctx context.Context, scope *tenant.Scope, f ListFilter) ([]models.AuditLog, int64, error) {
	f.normalize()

	total, err := f.apply(tenant.Model[models.AuditLog](scope)).Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := f.apply(tenant.Model[models.AuditLog](scope)).
		Order("created_at DESC").
		Limit(f.PerPage).
		Offset((f.Page - 1) * f.PerPage).
		Find(ctx)
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// ForResource returns the audit trail of one record.
func (l *Logger) ForResource(ctx context.Context, scope *tenant.Scope, resource, resourceID string, page, perPage int) ([]models.AuditLog, int64, error) {
	return l.List(ctx, scope, ListFilter{
		Resource:   resource,
		ResourceID: resourceID,
		Page:       page,
		PerPage:    perPage,
	})
}
