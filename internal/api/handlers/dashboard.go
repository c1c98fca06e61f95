package handlers

import (
	"net/http"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"gorm.io/gorm"
)

// DashboardHandler aggregates per-organization counts for the overview page.
type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type DashboardStats struct {
	Clients          int64 `json:"clients"`
	Invoices         int64 `json:"invoices"`
	DraftInvoices    int64 `json:"draft_invoices"`
	OverdueInvoices  int64 `json:"overdue_invoices"`
	OpenQuotes       int64 `json:"open_quotes"`
	Budgets          int64 `json:"budgets"`
	OutstandingCents int64 `json:"outstanding_cents"`
}

// Stats handles GET /api/v1/dashboard
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := tenant.NewScope(h.db, middleware.GetOrganizationID(ctx))

	var stats DashboardStats
	var err error

	if stats.Clients, err = tenant.Model[models.Client](scope).
		Where("is_archived = ?", false).Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}
	if stats.Invoices, err = tenant.Model[models.Invoice](scope).Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}
	if stats.DraftInvoices, err = tenant.Model[models.Invoice](scope).
		Where("status = ?", models.InvoiceStatusDraft).Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}
	if stats.OverdueInvoices, err = tenant.Model[models.Invoice](scope).
		Where("status = ?", models.InvoiceStatusOverdue).Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}
	if stats.OpenQuotes, err = tenant.Model[models.Quote](scope).
		Where("status IN ?", []models.QuoteStatus{models.QuoteStatusDraft, models.QuoteStatusSent}).
		Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}
	if stats.Budgets, err = tenant.Model[models.Budget](scope).Count(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}

	// Outstanding = everything billed but not settled.
	err = h.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("organization_id = ? AND status IN ?",
			scope.OrganizationID(),
			[]models.InvoiceStatus{models.InvoiceStatusSent, models.InvoiceStatusOverdue}).
		Select("COALESCE(SUM(total_cents), 0)").
		Scan(&stats.OutstandingCents).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
