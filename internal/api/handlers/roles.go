package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"gorm.io/gorm"
)

// RoleHandler exposes the role catalog and grant management. Roles are
// shared across organizations; what is per-organization is who holds them.
type RoleHandler struct {
	db     *gorm.DB
	engine *authz.Engine
	audit  *audit.Logger
}

func NewRoleHandler(db *gorm.DB, engine *authz.Engine, auditLogger *audit.Logger) *RoleHandler {
	return &RoleHandler{db: db, engine: engine, audit: auditLogger}
}

type RoleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Priority    int      `json:"priority"`
	IsSystem    bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
}

// List handles GET /api/v1/roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	var roles []models.Role
	err := h.db.WithContext(r.Context()).
		Preload("Permissions").
		Order("priority DESC").
		Find(&roles).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list roles"})
		return
	}

	response := make([]RoleResponse, len(roles))
	for i, role := range roles {
		perms := make([]string, len(role.Permissions))
		for j, p := range role.Permissions {
			perms[j] = p.Resource + ":" + p.Action
		}
		sort.Strings(perms)
		response[i] = RoleResponse{
			ID:          role.ID.String(),
			Name:        role.Name,
			Priority:    role.Priority,
			IsSystem:    role.IsSystem,
			Permissions: perms,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

type UpdateGrantsRequest struct {
	Permissions []string `json:"permissions"`
}

// UpdateGrants handles PUT /api/v1/roles/{id}/permissions. It replaces the
// role's grant list atomically and evicts the role's cached grants so the
// change takes effect without waiting out the TTL.
func (h *RoleHandler) UpdateGrants(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req UpdateGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var role models.Role
	if err := h.db.WithContext(r.Context()).First(&role, "id = ?", roleID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}
	if role.Name == authz.RoleOwner {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "The owner role's grants are fixed"})
		return
	}

	permissions := make([]models.Permission, 0, len(req.Permissions))
	for _, perm := range req.Permissions {
		grant := authz.ParseGrant(perm)
		resource, action := grant.Resource, grant.Action
		switch grant.Kind {
		case authz.GrantGlobalWildcard:
			resource, action = authz.Wildcard, authz.Wildcard
		case authz.GrantResourceWildcard:
			action = authz.Wildcard
		}

		var p models.Permission
		err = h.db.WithContext(r.Context()).
			Where("resource = ? AND action = ?", resource, action).
			First(&p).Error
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: fmt.Sprintf("Unknown permission %q", perm)})
			return
		}
		permissions = append(permissions, p)
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		for _, p := range permissions {
			rp := models.RolePermission{RoleID: roleID, PermissionID: p.ID}
			if err := tx.Create(&rp).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update grants"})
		return
	}

	h.engine.InvalidateRole(roleID)

	orgID := middleware.GetOrganizationID(r.Context())
	actorID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &actorID,
		Resource:       authz.ResourceRole,
		ResourceID:     roleID.String(),
		Action:         authz.ActionUpdate,
		Metadata:       map[string]any{"permissions": req.Permissions},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Grants updated"})
}
