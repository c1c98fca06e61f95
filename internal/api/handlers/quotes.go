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

type QuoteHandler struct {
	db    *gorm.DB
	audit *audit.Logger
}

func NewQuoteHandler(db *gorm.DB, auditLogger *audit.Logger) *QuoteHandler {
	return &QuoteHandler{db: db, audit: auditLogger}
}

type QuoteRequest struct {
	ClientID  string               `json:"client_id"`
	Number    string               `json:"number"`
	Currency  string               `json:"currency,omitempty"`
	ExpiresAt int64                `json:"expires_at,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	Lines     []InvoiceLineRequest `json:"lines,omitempty"`
}

func (r QuoteRequest) Validate() map[string]string {
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
	return errors
}

type QuoteResponse struct {
	ID                 string  `json:"id"`
	ClientID           string  `json:"client_id"`
	Number             string  `json:"number"`
	Status             string  `json:"status"`
	Currency           string  `json:"currency"`
	TotalCents         int64   `json:"total_cents"`
	SentAt             int64   `json:"sent_at,omitempty"`
	ExpiresAt          int64   `json:"expires_at,omitempty"`
	ConvertedInvoiceID *string `json:"converted_invoice_id,omitempty"`
	Notes              string  `json:"notes,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

func quoteToResponse(q *models.Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:         q.ID.String(),
		ClientID:   q.ClientID.String(),
		Number:     q.Number,
		Status:     string(q.Status),
		Currency:   q.Currency,
		TotalCents: q.TotalCents,
		SentAt:     q.SentAt,
		ExpiresAt:  q.ExpiresAt,
		Notes:      q.Notes,
		CreatedAt:  q.CreatedAt.Format(time.RFC3339),
	}
	if q.ConvertedInvoiceID != nil {
		s := q.ConvertedInvoiceID.String()
		resp.ConvertedInvoiceID = &s
	}
	return resp
}

func (h *QuoteHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

// List handles GET /api/v1/quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := tenant.Model[models.Quote](scope)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	total, err := query.Count(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	quotes, err := query.
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(pagination.Offset()).
		Find(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}

	response := make([]QuoteResponse, len(quotes))
	for i := range quotes {
		response[i] = quoteToResponse(&quotes[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: dto.TotalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/quotes/{id}
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	quote, err := tenant.Get[models.Quote](r.Context(), h.scope(r), id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

// Create handles POST /api/v1/quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
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

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	quote := models.Quote{
		OrganizationID: scope.OrganizationID(),
		ClientID:       clientID,
		Number:         req.Number,
		Status:         models.QuoteStatusDraft,
		Currency:       currency,
		ExpiresAt:      req.ExpiresAt,
		Notes:          req.Notes,
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&quote).Error; err != nil {
			return err
		}
		var total int64
		for i, lr := range req.Lines {
			qty := lr.Quantity
			if qty < 1 {
				qty = 1
			}
			amount := int64(qty) * lr.UnitCents
			line := models.QuoteLine{
				QuoteID:     quote.ID,
				Description: lr.Description,
				Quantity:    qty,
				UnitCents:   lr.UnitCents,
				AmountCents: amount,
				Position:    i,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			total += amount
		}
		quote.TotalCents = total
		return tx.Model(&quote).Update("total_cents", total).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create quote"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceQuote,
		ResourceID:     quote.ID.String(),
		Action:         authz.ActionCreate,
	})

	writeJSON(w, http.StatusCreated, quoteToResponse(&quote))
}

type UpdateQuoteRequest struct {
	Number    *string `json:"number"`
	ExpiresAt *int64  `json:"expires_at"`
	Notes     *string `json:"notes"`
}

// Update handles PUT /api/v1/quotes/{id}. Only drafts are editable; a sent
// quote is what the client saw.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req UpdateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	scope := h.scope(r)
	quote, err := tenant.Get[models.Quote](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	if quote.Status != models.QuoteStatusDraft {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Only draft quotes can be edited"})
		return
	}

	updates := make(map[string]any)
	if req.Number != nil {
		updates["number"] = *req.Number
	}
	if req.ExpiresAt != nil {
		updates["expires_at"] = *req.ExpiresAt
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	if err := tenant.Update[models.Quote](r.Context(), scope, id, updates); err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceQuote,
		ResourceID:     id.String(),
		Action:         authz.ActionUpdate,
	})

	quote, err = tenant.Get[models.Quote](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

// Send handles POST /api/v1/quotes/{id}/send
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	err = tenant.Update[models.Quote](r.Context(), scope, id, map[string]any{
		"status":  models.QuoteStatusSent,
		"sent_at": time.Now().Unix(),
	})
	if err != nil {
		writeTenantError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceQuote,
		ResourceID:     id.String(),
		Action:         authz.ActionSend,
	})

	quote, err := tenant.Get[models.Quote](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

// Accept handles POST /api/v1/quotes/{id}/accept: marks the quote accepted
// and converts it into a draft invoice carrying the quote's lines.
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	quote, err := tenant.Get[models.Quote](r.Context(), scope, id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	if quote.Status == models.QuoteStatusAccepted {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Quote already accepted"})
		return
	}

	var lines []models.QuoteLine
	if err := h.db.WithContext(r.Context()).
		Where("quote_id = ?", quote.ID).
		Order("position ASC").
		Find(&lines).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load quote lines"})
		return
	}

	invoice := models.Invoice{
		OrganizationID: scope.OrganizationID(),
		ClientID:       quote.ClientID,
		Number:         quote.Number,
		Status:         models.InvoiceStatusDraft,
		Currency:       quote.Currency,
		SubtotalCents:  quote.TotalCents,
		TotalCents:     quote.TotalCents,
		Notes:          quote.Notes,
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		for _, ql := range lines {
			line := models.InvoiceLine{
				InvoiceID:   invoice.ID,
				Description: ql.Description,
				Quantity:    ql.Quantity,
				UnitCents:   ql.UnitCents,
				AmountCents: ql.AmountCents,
				Position:    ql.Position,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Quote{}).
			Where("id = ? AND organization_id = ?", quote.ID, scope.OrganizationID()).
			Updates(map[string]any{
				"status":               models.QuoteStatusAccepted,
				"converted_invoice_id": invoice.ID,
			}).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to accept quote"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: scope.OrganizationID(),
		UserID:         &userID,
		Resource:       authz.ResourceQuote,
		ResourceID:     quote.ID.String(),
		Action:         authz.ActionAccept,
		Metadata:       map[string]any{"invoice_id": invoice.ID.String()},
	})

	writeJSON(w, http.StatusOK, invoiceToResponse(&invoice))
}

// Delete handles DELETE /api/v1/quotes/{id}
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	scope := h.scope(r)
	if err := tenant.Delete[models.Quote](r.Context(), scope, id); err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Quote deleted"})
}
