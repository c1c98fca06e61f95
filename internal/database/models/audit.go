package models

import "github.com/google/uuid"

// AuditLog records one state-changing action. Writes are best-effort; rows
// may be missing but never block the action they describe.
type AuditLog struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Resource       string     `gorm:"index;not null" json:"resource"`
	ResourceID     string     `gorm:"index" json:"resource_id,omitempty"`
	Action         string     `gorm:"index;not null" json:"action"`
	Metadata       string     `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"`
	IPAddress      string     `json:"ip_address,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
