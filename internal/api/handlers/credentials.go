package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/tenant"
	"github.com/ledgerline/ledgerline/pkg/crypto"
	"gorm.io/gorm"
)

// CredentialHandler manages payment-provider credentials. Secrets are
// age-encrypted at rest and never returned by the API after creation.
type CredentialHandler struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	audit     *audit.Logger
}

func NewCredentialHandler(db *gorm.DB, encryptor *crypto.Encryptor, auditLogger *audit.Logger) *CredentialHandler {
	return &CredentialHandler{db: db, encryptor: encryptor, audit: auditLogger}
}

func (h *CredentialHandler) scope(r *http.Request) *tenant.Scope {
	return tenant.NewScope(h.db, middleware.GetOrganizationID(r.Context()))
}

type CredentialResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	IsActive bool   `json:"is_active"`
}

func credentialToResponse(c *models.PaymentCredential) CredentialResponse {
	return CredentialResponse{
		ID:       c.ID.String(),
		Name:     c.Name,
		Provider: string(c.Provider),
		IsActive: c.IsActive,
	}
}

// List handles GET /api/v1/credentials
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	credentials, err := tenant.Model[models.PaymentCredential](h.scope(r)).
		Order("created_at ASC").
		Find(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list credentials"})
		return
	}
	response := make([]CredentialResponse, len(credentials))
	for i := range credentials {
		response[i] = credentialToResponse(&credentials[i])
	}
	writeJSON(w, http.StatusOK, response)
}

type CreateCredentialRequest struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Secret   string `json:"secret"`
}

func (r CreateCredentialRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Name is required"
	}
	switch models.PaymentProvider(r.Provider) {
	case models.PaymentProviderStripe, models.PaymentProviderPaddle,
		models.PaymentProviderGoCardle, models.PaymentProviderManual:
	default:
		errs["provider"] = "Unknown provider"
	}
	if r.Secret == "" {
		errs["secret"] = "Secret is required"
	}
	return errs
}

// Create handles POST /api/v1/credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	encrypted, err := h.encryptor.Encrypt([]byte(req.Secret))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store credential"})
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	credential := models.PaymentCredential{
		OrganizationID: orgID,
		Name:           req.Name,
		Provider:       models.PaymentProvider(req.Provider),
		EncryptedData:  encrypted,
		IsActive:       true,
	}
	if err := h.db.WithContext(r.Context()).Create(&credential).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store credential"})
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &userID,
		Resource:       authz.ResourcePaymentCredential,
		ResourceID:     credential.ID.String(),
		Action:         authz.ActionCreate,
		Metadata:       map[string]any{"provider": req.Provider},
	})

	writeJSON(w, http.StatusCreated, credentialToResponse(&credential))
}

type UpdateCredentialRequest struct {
	Name     *string `json:"name"`
	Secret   *string `json:"secret"`
	IsActive *bool   `json:"is_active"`
}

// Update handles PUT /api/v1/credentials/{id}. Rotating the secret replaces
// the encrypted blob wholesale.
func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	var req UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Secret != nil {
		encrypted, err := h.encryptor.Encrypt([]byte(*req.Secret))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update credential"})
			return
		}
		updates["encrypted_data"] = encrypted
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Nothing to update"})
		return
	}

	if err := tenant.Update[models.PaymentCredential](r.Context(), h.scope(r), id, updates); err != nil {
		writeTenantError(w, err)
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &userID,
		Resource:       authz.ResourcePaymentCredential,
		ResourceID:     id.String(),
		Action:         authz.ActionUpdate,
		Metadata:       map[string]any{"rotated": req.Secret != nil},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Credential updated"})
}

// Delete handles DELETE /api/v1/credentials/{id}
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID"})
		return
	}

	if err := tenant.Delete[models.PaymentCredential](r.Context(), h.scope(r), id); err != nil {
		writeTenantError(w, err)
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		OrganizationID: orgID,
		UserID:         &userID,
		Resource:       authz.ResourcePaymentCredential,
		ResourceID:     id.String(),
		Action:         authz.ActionDelete,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Credential deleted"})
}
