package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/api/validation"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tasks"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"github.com/ledgerline/ledgerline/pkg/util"
	"gorm.io/gorm"
)

// RecurringInvoiceHandler manages invoice generation schedules.
type RecurringInvoiceHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	audit       *audit.Logger
}

func NewRecurringInvoiceHandler(db *gorm.DB, asynqClient *asynq.Client, auditLogger *audit.Logger) *RecurringInvoiceHandler {
	return &RecurringInvoiceHandler{db: db, asynqClient: asynqClient, audit: auditLogger}
}

func (h *RecurringInvoiceHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

type CreateRecurringInvoiceRequest struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr"`
	Currency    string `json:"currency,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description,omitempty"`
}

func (r CreateRecurringInvoiceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ClientID == "" {
		errors["client_id"] = "Client ID is required"
	} else if !validation.IsValidUUID(r.ClientID) {
		errors["client_id"] = "Invalid client ID format"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.CronExpr == "" {
		errors["cron_expr"] = "Cron expression is required"
	} else if err := util.ValidateCronExpr(r.CronExpr); err != nil {
		errors["cron_expr"] = err.Error()
	}
	if r.Currency != "" && !validation.IsValidCurrency(r.Currency) {
		errors["currency"] = "Invalid currency code"
	}
	if r.AmountCents <= 0 {
		errors["amount_cents"] = "Amount must be positive"
	}
	return errors
}

type UpdateRecurringInvoiceRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IsEnabled   *bool   `json:"is_enabled,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Description *string `json:"description,omitempty"`
}

type RecurringInvoiceResponse struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	Name          string  `json:"name"`
	CronExpr      string  `json:"cron_expr"`
	Currency      string  `json:"currency"`
	AmountCents   int64   `json:"amount_cents"`
	Description   string  `json:"description,omitempty"`
	IsEnabled     bool    `json:"is_enabled"`
	NextRunAt     int64   `json:"next_run_at"`
	LastRunAt     *int64  `json:"last_run_at,omitempty"`
	LastInvoiceID *string `json:"last_invoice_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func recurringToResponse(s *models.RecurringInvoice) RecurringInvoiceResponse {
	resp := RecurringInvoiceResponse{
		ID:          s.ID.String(),
		ClientID:    s.ClientID.String(),
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		Currency:    s.Currency,
		AmountCents: s.AmountCents,
		Description: s.Description,
		IsEnabled:   s.IsEnabled,
		NextRunAt:   s.NextRunAt,
		LastRunAt:   s.LastRunAt,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.LastInvoiceID != nil {
		id := s.LastInvoiceID.String()
		resp.LastInvoiceID = &id
	}
	return resp
}

// List handles GET /api/v1/recurring-invoices
func (h *RecurringInvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := tenant.Model[models.RecurringInvoice](h.scope(r)).
		Order("created_at DESC").
		Find(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list recurring invoices"})
		return
	}
	response := make([]RecurringInvoiceResponse, len(schedules))
	for i := range schedules {
		response[i] = recurringToResponse(&schedules[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/recurring-invoices/{id}
func (h *RecurringInvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}
	schedule, err := tenant.Get[models.RecurringInvoice](r.Context(), h.scope(r), id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToResponse(schedule))
}

// Create handles POST /api/v1/recurring-invoices
func (h *RecurringInvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRecurringInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	scope := h.scope(r)
	clientID, _ := uuid.Parse(req.ClientID)
	if err := tenant.Verify[models.Client](r.Context(), scope, clientID); err != nil {
		writeTenantError(w, err)
		return
	}

	nextRun, err := util.NextCronTime(req.CronExpr, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	schedule := models.RecurringInvoice{
		OrganizationID: scope.OrganizationID(),
		ClientID:       clientID,
		Name:           req.Name,
		CronExpr:       req.CronExpr,
		Currency:       currency,
		AmountCents:    req.AmountCents,
		Description:    req.Description,
		IsEnabled:      true,
		NextRunAt:      nextRun.Unix(),
	}
	if err := h.db.WithContext(r.Context()).Create(&schedule).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create recurring invoice"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceInvoice,
		ResourceID:     schedule.ID.String(),
		Action:         authz.ActionCreate,
		Metadata:       map[string]any{"recurring": true, "cron_expr": req.CronExpr},
	})

	writeJSON(w, http.StatusCreated, recurringToResponse(&schedule))
}

// Update handles PUT /api/v1/recurring-invoices/{id}
func (h *RecurringInvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req UpdateRecurringInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.CronExpr != nil {
		if err := util.ValidateCronExpr(*req.CronExpr); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression"})
			return
		}
		nextRun, err := util.NextCronTime(*req.CronExpr, time.Now().UTC())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression"})
			return
		}
		updates["cron_expr"] = *req.CronExpr
		updates["next_run_at"] = nextRun.Unix()
	}
	if req.IsEnabled != nil {
		updates["is_enabled"] = *req.IsEnabled
	}
	if req.AmountCents != nil {
		if *req.AmountCents <= 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Amount must be positive"})
			return
		}
		updates["amount_cents"] = *req.AmountCents
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Update[models.RecurringInvoice](r.Context(), scope, id, updates); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceInvoice,
		ResourceID:     id.String(),
		Action:         authz.ActionUpdate,
		Metadata:       map[string]any{"recurring": true},
	})

	schedule, err := tenant.Get[models.RecurringInvoice](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToResponse(schedule))
}

// Delete handles DELETE /api/v1/recurring-invoices/{id}
func (h *RecurringInvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.RecurringInvoice](r.Context(), scope, id); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceInvoice,
		ResourceID:     id.String(),
		Action:         authz.ActionDelete,
		Metadata:       map[string]any{"recurring": true},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Recurring invoice deleted"})
}

// Trigger handles POST /api/v1/recurring-invoices/{id}/trigger: generate the
// next invoice now, regardless of the schedule.
func (h *RecurringInvoiceHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Verify[models.RecurringInvoice](r.Context(), scope, id); err != nil {
		writeTenantError(w, err)
		return
	}

	task, err := tasks.NewGenerateInvoiceTask(tasks.GenerateInvoicePayload{
		RecurringInvoiceID: id,
		OrganizationID:     scope.OrganizationID(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to trigger generation"})
		return
	}
	if _, err := h.asynqClient.EnqueueContext(r.Context(), task); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to trigger generation"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "Generation queued"})
}
