package dto

import "github.com/ledgerline/ledgerline/internal/api/validation"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	OrgName  string `json:"org_name,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type SwitchOrgRequest struct {
	OrganizationID string `json:"organization_id"`
}

func (r SwitchOrgRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.OrganizationID == "" {
		errors["organization_id"] = "Organization ID is required"
	} else if !validation.IsValidUUID(r.OrganizationID) {
		errors["organization_id"] = "Invalid organization ID format"
	}

	return errors
}

type AuthResponse struct {
	Token        string  `json:"token"`
	User         UserDTO `json:"user"`
	Organization OrgDTO  `json:"organization"`
}

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type OrgDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}
