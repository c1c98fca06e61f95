package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/api/middleware"
	"github.com/ledgerline/ledgerline/internal/auth"
)

type AuthHandler struct {
	service auth.Authenticator
}

func NewAuthHandler(service auth.Authenticator) *AuthHandler {
	return &AuthHandler{service: service}
}

func authToDTO(resp *auth.AuthResponse) dto.AuthResponse {
	out := dto.AuthResponse{
		Token: resp.Token,
		User: dto.UserDTO{
			ID:    resp.User.ID.String(),
			Email: resp.User.Email,
			Name:  resp.User.Name,
		},
	}
	if resp.Organization != nil {
		out.Organization = dto.OrgDTO{
			ID:   resp.Organization.ID.String(),
			Name: resp.Organization.Name,
			Slug: resp.Organization.Slug,
			Plan: resp.Organization.Plan,
		}
	}
	return out
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	resp, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		OrgName:  req.OrgName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed"})
		return
	}

	writeJSON(w, http.StatusCreated, authToDTO(resp))
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	resp, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveUser) {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		return
	}

	writeJSON(w, http.StatusOK, authToDTO(resp))
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}

	out := dto.UserDTO{ID: user.ID.String(), Email: user.Email, Name: user.Name}
	writeJSON(w, http.StatusOK, out)
}

// SwitchOrganization handles POST /api/v1/auth/switch-org. The new token is
// bound to the target organization.
func (h *AuthHandler) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	var req dto.SwitchOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	orgID, _ := uuid.Parse(req.OrganizationID)
	userID := middleware.GetUserID(r.Context())

	resp, err := h.service.SwitchOrganization(r.Context(), userID, orgID)
	if err != nil {
		if errors.Is(err, auth.ErrNoMembership) {
			// Same response as a nonexistent organization
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Switch failed"})
		return
	}

	writeJSON(w, http.StatusOK, authToDTO(resp))
}
