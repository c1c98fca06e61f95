package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	Base
	Name        string     `gorm:"not null" json:"name"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Plan        string     `gorm:"default:'free'" json:"plan"` // free, pro, enterprise
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	MaxUsers    int        `gorm:"default:5" json:"max_users"`
	MaxClients  int        `gorm:"default:100" json:"max_clients"`

	// Relationships
	Memberships []Membership `gorm:"foreignKey:OrganizationID" json:"-"`
	Clients     []Client     `gorm:"foreignKey:OrganizationID" json:"-"`
	Invoices    []Invoice    `gorm:"foreignKey:OrganizationID" json:"-"`
	Quotes      []Quote      `gorm:"foreignKey:OrganizationID" json:"-"`
	Budgets     []Budget     `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipRemoved   MembershipStatus = "removed"
)

// Membership links a user to an organization with a role. At most one
// membership exists per (organization, user) pair.
type Membership struct {
	Base
	OrganizationID uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_memberships_org_user;not null" json:"organization_id"`
	UserID         uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_memberships_org_user;not null" json:"user_id"`
	RoleID         uuid.UUID        `gorm:"type:uuid;not null" json:"role_id"`
	Status         MembershipStatus `gorm:"not null;default:'active';index" json:"status"`
	InvitedBy      *uuid.UUID       `gorm:"type:uuid" json:"invited_by,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role         *Role         `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}
