package models

import "github.com/google/uuid"

type PaymentProvider string

const (
	PaymentProviderStripe   PaymentProvider = "stripe"
	PaymentProviderPaddle   PaymentProvider = "paddle"
	PaymentProviderGoCardle PaymentProvider = "gocardless"
	PaymentProviderManual   PaymentProvider = "manual"
)

// PaymentCredential stores an organization's payment-provider API secret.
// The secret itself is an age-encrypted blob.
type PaymentCredential struct {
	Base
	OrganizationID uuid.UUID       `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string          `gorm:"not null" json:"name"`
	Provider       PaymentProvider `gorm:"not null" json:"provider"`

	// Encrypted secret (age encrypted blob)
	EncryptedData []byte `gorm:"type:bytea;not null" json:"-"`

	IsActive bool  `gorm:"default:true" json:"is_active"`
	LastUsed int64 `json:"last_used,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (PaymentCredential) TableName() string {
	return "payment_credentials"
}
