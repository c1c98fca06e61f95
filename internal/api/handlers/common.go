package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/tenant"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeTenantError maps scoping-layer failures to responses. ErrAccessDenied
// is always a 404: a record in another organization must look exactly like a
// missing one.
func writeTenantError(w http.ResponseWriter, err error) {
	if errors.Is(err, tenant.ErrAccessDenied) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal error"})
}
