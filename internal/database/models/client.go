package models

import "github.com/google/uuid"

// Client is a CRM contact owned by one organization.
type Client struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Email          string    `gorm:"index" json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Company        string    `json:"company,omitempty"`
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	IsArchived     bool      `gorm:"default:false;index" json:"is_archived"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Invoices     []Invoice     `gorm:"foreignKey:ClientID" json:"-"`
	Quotes       []Quote       `gorm:"foreignKey:ClientID" json:"-"`
}

func (Client) TableName() string {
	return "clients"
}
