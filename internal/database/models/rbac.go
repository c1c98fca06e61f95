package models

import "github.com/google/uuid"

// Role is part of the global RBAC catalog, not tenant-scoped. Priority is a
// display ordering hint only and carries no security meaning.
type Role struct {
	Base
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Priority int    `gorm:"default:0" json:"priority"`
	IsSystem bool   `gorm:"default:false" json:"is_system"`

	// Relationships
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission is an atomic (resource, action) pair. Wildcard grants are stored
// as literal "*" values in either column.
type Permission struct {
	Base
	Resource string `gorm:"uniqueIndex:idx_permissions_resource_action;not null" json:"resource"`
	Action   string `gorm:"uniqueIndex:idx_permissions_resource_action;not null" json:"action"`
}

func (Permission) TableName() string {
	return "permissions"
}

// RolePermission grants a permission to a role.
type RolePermission struct {
	RoleID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	PermissionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"permission_id"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
