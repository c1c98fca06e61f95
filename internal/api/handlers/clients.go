package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/api/validation"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"gorm.io/gorm"
)

type ClientHandler struct {
	db    *gorm.DB
	audit *audit.Logger
}

func NewClientHandler(db *gorm.DB, auditLogger *audit.Logger) *ClientHandler {
	return &ClientHandler{db: db, audit: auditLogger}
}

type ClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func (r ClientRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Email != "" && !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	return errors
}

type ClientResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Company    string `json:"company,omitempty"`
	Notes      string `json:"notes,omitempty"`
	IsArchived bool   `json:"is_archived"`
	CreatedAt  string `json:"created_at"`
}

func clientToResponse(c *models.Client) ClientResponse {
	return ClientResponse{
		ID:         c.ID.String(),
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Company:    c.Company,
		Notes:      c.Notes,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ClientHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

// List handles GET /api/v1/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := tenant.Model[models.Client](scope)
	if search := r.URL.Query().Get("q"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if archived := r.URL.Query().Get("archived"); archived != "" {
		query = query.Where("is_archived = ?", archived == "true")
	}

	total, err := query.Count(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	clients, err := query.
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(pagination.Offset()).
		Find(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	response := make([]ClientResponse, len(clients))
	for i := range clients {
		response[i] = clientToResponse(&clients[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: dto.TotalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	client, err := tenant.Get[models.Client](r.Context(), h.scope(r), id)
	if err != nil {
		writeTenantError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clientToResponse(client))
}

// Create handles POST /api/v1/clients. Creation stamps the caller's
// organization id explicitly; the scope does not wrap creates.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	client := models.Client{
		OrganizationID: orgID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Company:        req.Company,
		Notes:          req.Notes,
	}
	if err := h.db.WithContext(r.Context()).Create(&client).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create client"})
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &userID,
		Resource:       authz.ResourceClient,
		ResourceID:     client.ID.String(),
		Action:         authz.ActionCreate,
	})

	writeJSON(w, http.StatusCreated, clientToResponse(&client))
}

// Update handles PUT /api/v1/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	scope := h.scope(r)
	err = tenant.Update[models.Client](r.Context(), scope, id, map[string]any{
		"name":    req.Name,
		"email":   req.Email,
		"phone":   req.Phone,
		"company": req.Company,
		"notes":   req.Notes,
	})
	if err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceClient,
		ResourceID:     id.String(),
		Action:         authz.ActionUpdate,
	})

	client, err := tenant.Get[models.Client](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clientToResponse(client))
}

// Archive handles POST /api/v1/clients/{id}/archive
func (h *ClientHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	err = tenant.Update[models.Client](r.Context(), scope, id, map[string]any{"is_archived": true})
	if err != nil {
		writeTenantError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Client archived"})
}

// Delete handles DELETE /api/v1/clients/{id}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.Client](r.Context(), scope, id); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceClient,
		ResourceID:     id.String(),
		Action:         authz.ActionDelete,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Client deleted"})
}
