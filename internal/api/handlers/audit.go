package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"gorm.io/gorm"
)

// AuditHandler exposes read access to the audit trail.
type AuditHandler struct {
	db    *gorm.DB
	audit *audit.Logger
}

func NewAuditHandler(db *gorm.DB, auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{db: db, audit: auditLogger}
}

func (h *AuditHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.ListFilter{
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resource_id"),
		Action:     q.Get("action"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	if raw := q.Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user_id"})
			return
		}
		filter.UserID = &userID
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid from timestamp"})
			return
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid to timestamp"})
			return
		}
		filter.To = &to
	}

	logs, total, err := h.audit.List(r.Context(), h.scope(r), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list audit logs"})
		return
	}

	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       logs,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: dto.TotalPages(total, perPage),
	})
}

// ForResource handles GET /api/v1/audit/{resource}/{id}
func (h *AuditHandler) ForResource(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	resourceID := chi.URLParam(r, "id")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	logs, total, err := h.audit.ForResource(r.Context(), h.scope(r), resource, resourceID, page, perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list audit logs"})
		return
	}

	if perPage < 1 {
		perPage = 50
	}
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       logs,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: dto.TotalPages(total, perPage),
	})
}
