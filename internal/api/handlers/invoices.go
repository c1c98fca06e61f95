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

type InvoiceHandler struct {
	db    *gorm.DB
	audit *audit.Logger
}

func NewInvoiceHandler(db *gorm.DB, auditLogger *audit.Logger) *InvoiceHandler {
	return &InvoiceHandler{db: db, audit: auditLogger}
}

type InvoiceLineRequest struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unit_cents"`
}

type InvoiceRequest struct {
	ClientID string               `json:"client_id"`
	Number   string               `json:"number"`
	Currency string               `json:"currency,omitempty"`
	DueAt    int64                `json:"due_at,omitempty"`
	Notes    string               `json:"notes,omitempty"`
	Lines    []InvoiceLineRequest `json:"lines,omitempty"`
}

func (r InvoiceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ClientID == "" {
		errors["client_id"] = "Client ID is required"
	} else if !validation.IsValidUUID(r.ClientID) {
		errors["client_id"] = "Invalid client ID format"
	}
	if r.Number == "" {
		errors["number"] = "Number is required"
	}
	if r.Currency != "" && !validation.IsValidCurrency(r.Currency) {
		errors["currency"] = "Invalid currency code"
	}
	for i, line := range r.Lines {
		if line.Description == "" {
			errors["lines"] = "Line " + strconv.Itoa(i+1) + " is missing a description"
			break
		}
	}
	return errors
}

type InvoiceLineResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unit_cents"`
	AmountCents int64  `json:"amount_cents"`
}

type InvoiceResponse struct {
	ID            string                `json:"id"`
	ClientID      string                `json:"client_id"`
	Number        string                `json:"number"`
	Status        string                `json:"status"`
	Currency      string                `json:"currency"`
	SubtotalCents int64                 `json:"subtotal_cents"`
	TotalCents    int64                 `json:"total_cents"`
	IssuedAt      int64                 `json:"issued_at,omitempty"`
	DueAt         int64                 `json:"due_at,omitempty"`
	PaidAt        *int64                `json:"paid_at,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	Lines         []InvoiceLineResponse `json:"lines,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

func invoiceToResponse(inv *models.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		ClientID:      inv.ClientID.String(),
		Number:        inv.Number,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		SubtotalCents: inv.SubtotalCents,
		TotalCents:    inv.TotalCents,
		IssuedAt:      inv.IssuedAt,
		DueAt:         inv.DueAt,
		PaidAt:        inv.PaidAt,
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	for _, line := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			ID:          line.ID.String(),
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitCents:   line.UnitCents,
			AmountCents: line.AmountCents,
		})
	}
	return resp
}

func (h *InvoiceHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := tenant.Model[models.Invoice](scope)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID := r.URL.Query().Get("client_id"); validation.IsValidUUID(clientID) {
		query = query.Where("client_id = ?", clientID)
	}

	total, err := query.Count(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	invoices, err := query.
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(pagination.Offset()).
		Find(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	response := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		response[i] = invoiceToResponse(&invoices[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: dto.TotalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	invoice, err := tenant.Get[models.Invoice](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}

	lines, err := h.loadLines(r, invoice.ID)
	if err == nil {
		invoice.Lines = lines
	}

	writeJSON(w, http.StatusOK, invoiceToResponse(invoice))
}

func (h *InvoiceHandler) loadLines(r *http.Request, invoiceID uuid.UUID) ([]models.InvoiceLine, error) {
	var lines []models.InvoiceLine
	err := h.db.WithContext(r.Context()).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&lines).Error
	return lines, err
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
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

	// The referenced client must belong to this organization.
	if err := tenant.Verify[models.Client](r.Context(), scope, clientID); err != nil {
		writeTenantError(w, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	invoice := models.Invoice{
		OrganizationID: scope.OrganizationID(),
		ClientID:       clientID,
		Number:         req.Number,
		Status:         models.InvoiceStatusDraft,
		Currency:       currency,
		DueAt:          req.DueAt,
		Notes:          req.Notes,
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		var subtotal int64
		for i, lr := range req.Lines {
			qty := lr.Quantity
			if qty < 1 {
				qty = 1
			}
			amount := int64(qty) * lr.UnitCents
			line := models.InvoiceLine{
				InvoiceID:   invoice.ID,
				Description: lr.Description,
				Quantity:    qty,
				UnitCents:   lr.UnitCents,
				AmountCents: amount,
				Position:    i,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			invoice.Lines = append(invoice.Lines, line)
			subtotal += amount
		}
		invoice.SubtotalCents = subtotal
		invoice.TotalCents = subtotal
		return tx.Model(&invoice).Updates(map[string]any{
			"subtotal_cents": subtotal,
			"total_cents":    subtotal,
		}).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invoice"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceInvoice,
		ResourceID:     invoice.ID.String(),
		Action:         authz.ActionCreate,
		Metadata:       map[string]any{"number": invoice.Number},
	})

	writeJSON(w, http.StatusCreated, invoiceToResponse(&invoice))
}

// Update handles PUT /api/v1/invoices/{id}. Only draft invoices are mutable.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req struct {
		Number string `json:"number,omitempty"`
		DueAt  int64  `json:"due_at,omitempty"`
		Notes  string `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	scope := h.scope(r)
	invoice, err := tenant.Get[models.Invoice](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	if invoice.Status != models.InvoiceStatusDraft {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft invoices can be updated"})
		return
	}

	updates := map[string]any{}
	if req.Number != "" {
		updates["number"] = req.Number
	}
	if req.DueAt != 0 {
		updates["due_at"] = req.DueAt
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}
	if len(updates) > 0 {
		if err := tenant.Update[models.Invoice](r.Context(), scope, id, updates); err != nil {
			writeTenantError(w, err)
			return
		}
	}

	invoice, err = tenant.Get[models.Invoice](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceToResponse(invoice))
}

// Send handles POST /api/v1/invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, authz.ActionSend, map[string]any{
		"status":    models.InvoiceStatusSent,
		"issued_at": time.Now().Unix(),
	})
}

// MarkPaid handles POST /api/v1/invoices/{id}/pay
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pay", map[string]any{
		"status":  models.InvoiceStatusPaid,
		"paid_at": time.Now().Unix(),
	})
}

// Void handles POST /api/v1/invoices/{id}/void
func (h *InvoiceHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "void", map[string]any{
		"status": models.InvoiceStatusVoid,
	})
}

func (h *InvoiceHandler) transition(w http.ResponseWriter, r *http.Request, action string, updates map[string]any) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Update[models.Invoice](r.Context(), scope, id, updates); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceInvoice,
		ResourceID:     id.String(),
		Action:         action,
	})

	invoice, err := tenant.Get[models.Invoice](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceToResponse(invoice))
}

// Delete handles DELETE /api/v1/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.Invoice](r.Context(), scope, id); err != nil {
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
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Invoice deleted"})
}
