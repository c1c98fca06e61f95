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
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"gorm.io/gorm"
)

type BudgetHandler struct {
	db    *gorm.DB
	audit *audit.Logger
}

func NewBudgetHandler(db *gorm.DB, auditLogger *audit.Logger) *BudgetHandler {
	return &BudgetHandler{db: db, audit: auditLogger}
}

type BudgetRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Currency    string `json:"currency,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	PeriodStart int64  `json:"period_start"`
	PeriodEnd   int64  `json:"period_end"`
}

func (r BudgetRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.PeriodEnd != 0 && r.PeriodEnd < r.PeriodStart {
		errors["period_end"] = "Period end must be after period start"
	}
	return errors
}

type BudgetResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	PeriodStart int64  `json:"period_start"`
	PeriodEnd   int64  `json:"period_end"`
	CreatedAt   string `json:"created_at"`
}

func budgetToResponse(b *models.Budget) BudgetResponse {
	return BudgetResponse{
		ID:          b.ID.String(),
		Name:        b.Name,
		Category:    b.Category,
		Currency:    b.Currency,
		AmountCents: b.AmountCents,
		PeriodStart: b.PeriodStart,
		PeriodEnd:   b.PeriodEnd,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
}

func (h *BudgetHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

// List handles GET /api/v1/budgets
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := tenant.Model[models.Budget](scope)
	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	total, err := query.Count(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	budgets, err := query.
		Order("period_start DESC").
		Limit(pagination.PerPage).
		Offset(pagination.Offset()).
		Find(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	response := make([]BudgetResponse, len(budgets))
	for i := range budgets {
		response[i] = budgetToResponse(&budgets[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: dto.TotalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/budgets/{id}
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	budget, err := tenant.Get[models.Budget](r.Context(), h.scope(r), id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToResponse(budget))
}

// Create handles POST /api/v1/budgets
func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	budget := models.Budget{
		OrganizationID: orgID,
		Name:           req.Name,
		Category:       req.Category,
		Currency:       currency,
		AmountCents:    req.AmountCents,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
	}
	if err := h.db.WithContext(r.Context()).Create(&budget).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create budget"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &userID,
		Resource:       authz.ResourceBudget,
		ResourceID:     budget.ID.String(),
		Action:         authz.ActionCreate,
	})

	writeJSON(w, http.StatusCreated, budgetToResponse(&budget))
}

// Update handles PUT /api/v1/budgets/{id}
func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	scope := h.scope(r)
	err = tenant.Update[models.Budget](r.Context(), scope, id, map[string]any{
		"name":         req.Name,
		"category":     req.Category,
		"amount_cents": req.AmountCents,
		"period_start": req.PeriodStart,
		"period_end":   req.PeriodEnd,
	})
	if err != nil {
		writeTenantError(w, err)
		return
	}

	budget, err := tenant.Get[models.Budget](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToResponse(budget))
}

// Delete handles DELETE /api/v1/budgets/{id}: scenarios attached to the
// budget go with it, bounded by the scope's organization.
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.Budget](r.Context(), scope, id); err != nil {
		writeTenantError(w, err)
		return
	}
	if _, err := tenant.Model[models.Scenario](scope).
		Where("budget_id = ?", id).
		DeleteAll(r.Context()); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceBudget,
		ResourceID:     id.String(),
		Action:         authz.ActionDelete,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Budget deleted"})
}

type ScenarioRequest struct {
	Name           string          `json:"name"`
	Assumptions    json.RawMessage `json:"assumptions,omitempty"`
	ProjectedCents int64           `json:"projected_cents"`
}

type ScenarioResponse struct {
	ID             string `json:"id"`
	BudgetID       string `json:"budget_id"`
	Name           string `json:"name"`
	Assumptions    string `json:"assumptions,omitempty"`
	ProjectedCents int64  `json:"projected_cents"`
}

func scenarioToResponse(s *models.Scenario) ScenarioResponse {
	return ScenarioResponse{
		ID:             s.ID.String(),
		BudgetID:       s.BudgetID.String(),
		Name:           s.Name,
		Assumptions:    s.Assumptions,
		ProjectedCents: s.ProjectedCents,
	}
}

// ListScenarios handles GET /api/v1/budgets/{id}/scenarios
func (h *BudgetHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	budgetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Verify[models.Budget](r.Context(), scope, budgetID); err != nil {
		writeTenantError(w, err)
		return
	}

	scenarios, err := tenant.Model[models.Scenario](scope).
		Where("budget_id = ?", budgetID).
		Order("created_at ASC").
		Find(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	response := make([]ScenarioResponse, len(scenarios))
	for i := range scenarios {
		response[i] = scenarioToResponse(&scenarios[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateScenario handles POST /api/v1/budgets/{id}/scenarios
func (h *BudgetHandler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	budgetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"name": "Name is required"}})
		return
	}

	scope := h.scope(r)
	if err := tenant.Verify[models.Budget](r.Context(), scope, budgetID); err != nil {
		writeTenantError(w, err)
		return
	}

	assumptions := "{}"
	if len(req.Assumptions) > 0 {
		assumptions = string(req.Assumptions)
	}

	scenario := models.Scenario{
		OrganizationID: scope.OrganizationID(),
		BudgetID:       budgetID,
		Name:           req.Name,
		Assumptions:    assumptions,
		ProjectedCents: req.ProjectedCents,
	}
	if err := h.db.WithContext(r.Context()).Create(&scenario).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create scenario"})
		return
	}

	writeJSON(w, http.StatusCreated, scenarioToResponse(&scenario))
}

// DeleteScenario handles DELETE /api/v1/budgets/{id}/scenarios/{scenarioID}
func (h *BudgetHandler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := uuid.Parse(chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.Scenario](r.Context(), scope, scenarioID); err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Scenario deleted"})
}
