package models

import "github.com/google/uuid"

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// Invoice amounts are stored as integer cents.
type Invoice struct {
	Base
	OrganizationID uuid.UUID     `gorm:"type:uuid;index;not null" json:"organization_id"`
	ClientID       uuid.UUID     `gorm:"type:uuid;index;not null" json:"client_id"`
	Number         string        `gorm:"not null" json:"number"`
	Status         InvoiceStatus `gorm:"not null;index;default:'draft'" json:"status"`
	Currency       string        `gorm:"size:3;default:'USD'" json:"currency"`
	SubtotalCents  int64         `gorm:"default:0" json:"subtotal_cents"`
	TotalCents     int64         `gorm:"default:0" json:"total_cents"`

	// Timing (Unix timestamps, UTC)
	IssuedAt int64  `json:"issued_at,omitempty"`
	DueAt    int64  `json:"due_at,omitempty"`
	PaidAt   *int64 `json:"paid_at,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Client       *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lines        []InvoiceLine `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

type InvoiceLine struct {
	Base
	InvoiceID   uuid.UUID `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Description string    `gorm:"not null" json:"description"`
	Quantity    int       `gorm:"default:1" json:"quantity"`
	UnitCents   int64     `gorm:"default:0" json:"unit_cents"`
	AmountCents int64     `gorm:"default:0" json:"amount_cents"`
	Position    int       `gorm:"default:0" json:"position"`
}

func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// RecurringInvoice generates invoices on a cron schedule, in the manner of a
// scheduled background job owned by one organization.
type RecurringInvoice struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	ClientID       uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	CronExpr       string    `gorm:"size:100;not null" json:"cron_expr"` // e.g., "0 9 1 * *" (monthly)
	Currency       string    `gorm:"size:3;default:'USD'" json:"currency"`
	AmountCents    int64     `gorm:"default:0" json:"amount_cents"`
	Description    string    `json:"description,omitempty"`
	IsEnabled      bool      `gorm:"default:true;index" json:"is_enabled"`

	// Timing (Unix timestamps, UTC)
	NextRunAt     int64      `gorm:"index" json:"next_run_at"`
	LastRunAt     *int64     `json:"last_run_at,omitempty"`
	LastInvoiceID *uuid.UUID `gorm:"type:uuid" json:"last_invoice_id,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Client       *Client       `gorm:"foreignKey:ClientID" json:"-"`
	LastInvoice  *Invoice      `gorm:"foreignKey:LastInvoiceID" json:"-"`
}

func (RecurringInvoice) TableName() string {
	return "recurring_invoices"
}
