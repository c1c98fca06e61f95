package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/api/validation"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"gorm.io/gorm"
)

// MemberHandler manages memberships. Memberships key on (organization, user)
// rather than carrying their own organization_id filter chain, so queries
// here constrain on organization_id directly instead of going through the
// scoped query builder.
type MemberHandler struct {
	db     *gorm.DB
	engine *authz.Engine
	audit  *audit.Logger
}

func NewMemberHandler(db *gorm.DB, engine *authz.Engine, auditLogger *audit.Logger) *MemberHandler {
	return &MemberHandler{db: db, engine: engine, audit: auditLogger}
}

type MemberResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func membershipToResponse(m *models.Membership) MemberResponse {
	resp := MemberResponse{
		ID:     m.ID.String(),
		UserID: m.UserID.String(),
		Status: string(m.Status),
	}
	if m.User != nil {
		resp.Email = m.User.Email
		resp.Name = m.User.Name
	}
	if m.Role != nil {
		resp.Role = m.Role.Name
	}
	resp.CreatedAt = m.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	return resp
}

// List handles GET /api/v1/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var memberships []models.Membership
	err := h.db.WithContext(r.Context()).
		Preload("User").
		Preload("Role").
		Where("organization_id = ? AND status <> ?", orgID, models.MembershipRemoved).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	response := make([]MemberResponse, len(memberships))
	for i := range memberships {
		response[i] = membershipToResponse(&memberships[i])
	}
	writeJSON(w, http.StatusOK, response)
}

type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r InviteMemberRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Email == "" {
		errs["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errs["email"] = "Invalid email format"
	}
	if r.Role == "" {
		errs["role"] = "Role is required"
	} else if r.Role == authz.RoleOwner {
		errs["role"] = "Owner role cannot be granted by invitation"
	}
	return errs
}

// Invite handles POST /api/v1/members. The invited user must already have an
// account; membership uniqueness per (organization, user) is enforced by the
// composite index, with removed memberships reactivated instead.
func (h *MemberHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	inviterID := middleware.GetUserID(r.Context())

	var user models.User
	if err := h.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No account with that email"})
		return
	}

	var role models.Role
	if err := h.db.WithContext(r.Context()).Where("name = ?", req.Role).First(&role).Error; err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown role"})
		return
	}

	var existing models.Membership
	err := h.db.WithContext(r.Context()).
		Where("organization_id = ? AND user_id = ?", orgID, user.ID).
		First(&existing).Error
	switch {
	case err == nil && existing.Status != models.MembershipRemoved:
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User is already a member"})
		return
	case err == nil:
		// Reactivate the removed membership with the new role.
		err = h.db.WithContext(r.Context()).Model(&existing).Updates(map[string]any{
			"status":     models.MembershipActive,
			"role_id":    role.ID,
			"invited_by": inviterID,
		}).Error
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to invite member"})
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = models.Membership{
			OrganizationID: orgID,
			UserID:         user.ID,
			RoleID:         role.ID,
			Status:         models.MembershipActive,
			InvitedBy:      &inviterID,
		}
		if err := h.db.WithContext(r.Context()).Create(&existing).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to invite member"})
			return
		}
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to invite member"})
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &inviterID,
		Resource:       authz.ResourceMember,
		ResourceID:     existing.ID.String(),
		Action:         authz.ActionInvite,
		Metadata:       map[string]any{"email": req.Email, "role": req.Role},
	})

	existing.User = &user
	existing.Role = &role
	writeJSON(w, http.StatusCreated, membershipToResponse(&existing))
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole handles PUT /api/v1/members/{id}/role
func (h *MemberHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	membershipID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Role is required"})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	actorID := middleware.GetUserID(r.Context())

	// Granting owner is reserved for owners.
	if req.Role == authz.RoleOwner && !h.engine.IsOwner(r.Context(), actorID, orgID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var role models.Role
	if err := h.db.WithContext(r.Context()).Where("name = ?", req.Role).First(&role).Error; err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown role"})
		return
	}

	res := h.db.WithContext(r.Context()).
		Model(&models.Membership{}).
		Where("id = ? AND organization_id = ?", membershipID, orgID).
		Update("role_id", role.ID)
	if res.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to change role"})
		return
	}
	if res.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &actorID,
		Resource:       authz.ResourceMember,
		ResourceID:     membershipID.String(),
		Action:         authz.ActionUpdate,
		Metadata:       map[string]any{"role": req.Role},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Role updated"})
}

// Suspend handles POST /api/v1/members/{id}/suspend
func (h *MemberHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.MembershipSuspended, authz.ActionSuspend)
}

// Restore handles POST /api/v1/members/{id}/restore
func (h *MemberHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.MembershipActive, "restore")
}

// Remove handles DELETE /api/v1/members/{id}: a status transition, not a row
// deletion, so the (organization, user) pair stays unique.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.MembershipRemoved, authz.ActionRemove)
}

func (h *MemberHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.MembershipStatus, action string) {
	membershipID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	actorID := middleware.GetUserID(r.Context())

	var membership models.Membership
	err = h.db.WithContext(r.Context()).
		Preload("Role").
		Where("id = ? AND organization_id = ?", membershipID, orgID).
		First(&membership).Error
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}

	// An organization must keep at least its owner.
	if membership.Role != nil && membership.Role.Name == authz.RoleOwner && status != models.MembershipActive {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "The owner membership cannot be suspended or removed"})
		return
	}

	err = h.db.WithContext(r.Context()).
		Model(&membership).
		Update("status", status).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &actorID,
		Resource:       authz.ResourceMember,
		ResourceID:     membershipID.String(),
		Action:         action,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member updated"})
}
