package models

import "github.com/google/uuid"

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusDeclined QuoteStatus = "declined"
	QuoteStatusExpired  QuoteStatus = "expired"
)

type Quote struct {
	Base
	OrganizationID uuid.UUID   `gorm:"type:uuid;index;not null" json:"organization_id"`
	ClientID       uuid.UUID   `gorm:"type:uuid;index;not null" json:"client_id"`
	Number         string      `gorm:"not null" json:"number"`
	Status         QuoteStatus `gorm:"not null;index;default:'draft'" json:"status"`
	Currency       string      `gorm:"size:3;default:'USD'" json:"currency"`
	TotalCents     int64       `gorm:"default:0" json:"total_cents"`

	// Timing (Unix timestamps, UTC)
	SentAt    int64 `json:"sent_at,omitempty"`
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// Set when an accepted quote is converted into an invoice.
	ConvertedInvoiceID *uuid.UUID `gorm:"type:uuid" json:"converted_invoice_id,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Organization     *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Client           *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lines            []QuoteLine   `gorm:"foreignKey:QuoteID" json:"lines,omitempty"`
	ConvertedInvoice *Invoice      `gorm:"foreignKey:ConvertedInvoiceID" json:"-"`
}

func (Quote) TableName() string {
	return "quotes"
}

type QuoteLine struct {
	Base
	QuoteID     uuid.UUID `gorm:"type:uuid;index;not null" json:"quote_id"`
	Description string    `gorm:"not null" json:"description"`
	Quantity    int       `gorm:"default:1" json:"quantity"`
	UnitCents   int64     `gorm:"default:0" json:"unit_cents"`
	AmountCents int64     `gorm:"default:0" json:"amount_cents"`
	Position    int       `gorm:"default:0" json:"position"`
}

func (QuoteLine) TableName() string {
	return "quote_lines"
}
