package models

import "github.com/google/uuid"

// User is a global principal. Tenant context comes from memberships; the
// current organization pointer is only an ambient default for sessions.
type User struct {
	Base
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	Name          string `json:"name"`
	IsActive      bool   `gorm:"default:true" json:"is_active"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	CurrentOrganizationID *uuid.UUID `gorm:"type:uuid" json:"current_organization_id,omitempty"`

	// Relationships
	Memberships         []Membership  `gorm:"foreignKey:UserID" json:"-"`
	CurrentOrganization *Organization `gorm:"foreignKey:CurrentOrganizationID" json:"current_organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}
