package database

import (
	"fmt"
	"strings"

	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"gorm.io/gorm"
)

// SeedRBAC creates the permission catalog, wildcard permission rows, the five
// system roles and their grants. It is idempotent; role-permission data is
// read-mostly reference data seeded once.
func SeedRBAC(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		permissions := make(map[string]*models.Permission)

		ensurePermission := func(resource, action string) (*models.Permission, error) {
			key := resource + ":" + action
			if p, ok := permissions[key]; ok {
				return p, nil
			}
			p := &models.Permission{Resource: resource, Action: action}
			err := tx.Where("resource = ? AND action = ?", resource, action).
				FirstOrCreate(p).Error
			if err != nil {
				return nil, fmt.Errorf("seeding permission %s: %w", key, err)
			}
			permissions[key] = p
			return p, nil
		}

		// Exact catalog entries plus one resource-wildcard row per resource.
		for resource, actions := range authz.Catalog {
			for _, action := range actions {
				if _, err := ensurePermission(resource, action); err != nil {
					return err
				}
			}
			if _, err := ensurePermission(resource, authz.Wildcard); err != nil {
				return err
			}
		}
		if _, err := ensurePermission(authz.Wildcard, authz.Wildcard); err != nil {
			return err
		}

		for _, sysRole := range authz.SystemRoles {
			role := &models.Role{
				Name:     sysRole.Name,
				Priority: sysRole.Priority,
				IsSystem: true,
			}
			err := tx.Where("name = ?", sysRole.Name).
				Attrs(models.Role{Priority: sysRole.Priority, IsSystem: true}).
				FirstOrCreate(role).Error
			if err != nil {
				return fmt.Errorf("seeding role %s: %w", sysRole.Name, err)
			}

			for _, grant := range sysRole.Grants {
				resource, action, found := strings.Cut(grant, ":")
				if !found {
					resource, action = authz.Wildcard, authz.Wildcard
				}
				perm, err := ensurePermission(resource, action)
				if err != nil {
					return err
				}
				rp := &models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
				err = tx.Where("role_id = ? AND permission_id = ?", role.ID, perm.ID).
					FirstOrCreate(rp).Error
				if err != nil {
					return fmt.Errorf("granting %s to %s: %w", grant, sysRole.Name, err)
				}
			}
		}

		return nil
	})
}
