package authz

import (
	"context"

	"github.com/google/uuid"
)

// Authorizer is the permission-checking interface consumed by the HTTP layer.
type Authorizer interface {
	Can(ctx context.Context, userID, orgID uuid.UUID, permission string) bool
	CanAll(ctx context.Context, userID, orgID uuid.UUID, permissions []string) bool
	CanAny(ctx context.Context, userID, orgID uuid.UUID, permissions []string) bool
	CheckPermission(ctx context.Context, userID, orgID uuid.UUID, resource, action string) bool
	RequirePermission(ctx context.Context, userID, orgID uuid.UUID, permission string) error
	IsOwner(ctx context.Context, userID, orgID uuid.UUID) bool
	IsAdminOrOwner(ctx context.Context, userID, orgID uuid.UUID) bool
}

// Compile-time interface satisfaction check
var _ Authorizer = (*Engine)(nil)
