package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"gorm.io/gorm"
)

var ErrPermissionDenied = errors.New("permission denied")

// Engine answers permission checks for (user, organization) pairs. Every
// internal failure resolves to a denial: a check that cannot complete must
// never be mistaken for a grant.
type Engine struct {
	db     *gorm.DB
	cache  *PermissionCache
	logger *slog.Logger
}

func NewEngine(db *gorm.DB, logger *slog.Logger, cacheTTL time.Duration) *Engine {
	return &Engine{
		db:     db,
		cache:  NewPermissionCache(cacheTTL),
		logger: logger,
	}
}

// Can reports whether the user's active membership in the organization grants
// the "resource:action" permission. It never returns an error; missing
// memberships, suspended memberships, malformed permission strings and
// storage failures all yield false.
func (e *Engine) Can(ctx context.Context, userID, orgID uuid.UUID, permission string) bool {
	resource, action, found := strings.Cut(permission, ":")
	if !found || resource == "" || action == "" {
		return false
	}

	membership, err := e.activeMembership(ctx, userID, orgID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			e.logger.Warn("membership lookup failed, denying",
				"user_id", userID, "org_id", orgID, "error", err)
		}
		return false
	}

	grants, err := e.resolveRole(ctx, membership.RoleID)
	if err != nil {
		e.logger.Warn("permission resolution failed, denying",
			"role_id", membership.RoleID, "error", err)
		return false
	}

	return grants.Allows(resource, action)
}

// CheckPermission is the two-argument form of Can.
func (e *Engine) CheckPermission(ctx context.Context, userID, orgID uuid.UUID, resource, action string) bool {
	return e.Can(ctx, userID, orgID, resource+":"+action)
}

// CanAll reports whether every permission in the list is granted.
func (e *Engine) CanAll(ctx context.Context, userID, orgID uuid.UUID, permissions []string) bool {
	for _, p := range permissions {
		if !e.Can(ctx, userID, orgID, p) {
			return false
		}
	}
	return true
}

// CanAny reports whether at least one permission in the list is granted.
func (e *Engine) CanAny(ctx context.Context, userID, orgID uuid.UUID, permissions []string) bool {
	for _, p := range permissions {
		if e.Can(ctx, userID, orgID, p) {
			return true
		}
	}
	return false
}

// RequirePermission returns ErrPermissionDenied when the permission is not
// granted, for callers that prefer an error to a boolean.
func (e *Engine) RequirePermission(ctx context.Context, userID, orgID uuid.UUID, permission string) error {
	if !e.Can(ctx, userID, orgID, permission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, permission)
	}
	return nil
}

// IsOwner reports whether the user's active membership carries the owner
// role. This compares role names directly; it is a UI-gating shortcut, not a
// substitute for permission checks.
func (e *Engine) IsOwner(ctx context.Context, userID, orgID uuid.UUID) bool {
	return e.hasRoleName(ctx, userID, orgID, RoleOwner)
}

// IsAdminOrOwner reports whether the user's active membership carries the
// admin or owner role.
func (e *Engine) IsAdminOrOwner(ctx context.Context, userID, orgID uuid.UUID) bool {
	return e.hasRoleName(ctx, userID, orgID, RoleAdmin, RoleOwner)
}

// InvalidateRole drops one role's cached grant set. Call after mutating a
// role's permission grants.
func (e *Engine) InvalidateRole(roleID uuid.UUID) {
	e.cache.Invalidate(roleID)
}

// InvalidateAll drops every cached grant set.
func (e *Engine) InvalidateAll() {
	e.cache.InvalidateAll()
}

func (e *Engine) hasRoleName(ctx context.Context, userID, orgID uuid.UUID, names ...string) bool {
	membership, err := e.activeMembership(ctx, userID, orgID)
	if err != nil {
		return false
	}

	var role models.Role
	if err := e.db.WithContext(ctx).First(&role, "id = ?", membership.RoleID).Error; err != nil {
		return false
	}

	for _, name := range names {
		if role.Name == name {
			return true
		}
	}
	return false
}

func (e *Engine) activeMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := e.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	if membership.Status != models.MembershipActive {
		return nil, gorm.ErrRecordNotFound
	}
	return &membership, nil
}

// resolveRole returns the role's grant set, from cache within the TTL or
// freshly materialized from storage on a miss.
func (e *Engine) resolveRole(ctx context.Context, roleID uuid.UUID) (*GrantSet, error) {
	if grants, ok := e.cache.Get(roleID); ok {
		return grants, nil
	}

	var rows []models.Permission
	err := e.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading role permissions: %w", err)
	}

	raw := make([]string, len(rows))
	for i, p := range rows {
		raw[i] = p.Resource + ":" + p.Action
	}

	grants := NewGrantSet(raw)
	e.cache.Set(roleID, grants)
	return grants, nil
}
