package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrNoMembership       = errors.New("no active membership in organization")
)

const trialDays = 14

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	OrgName  string // Optional: defaults to a personal workspace
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token        string               `json:"token"`
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
}

// Register creates the user, their organization and the owner membership in
// one transaction: an organization never exists without an owner.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	if input.OrgName == "" {
		input.OrgName = input.Name + "'s Workspace"
	}

	trialEnd := time.Now().AddDate(0, 0, trialDays)
	org := models.Organization{
		Name:        input.OrgName,
		Slug:        generateSlug(input.OrgName),
		TrialEndsAt: &trialEnd,
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerRole, err := roleByName(tx, authz.RoleOwner)
		if err != nil {
			return err
		}

		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		user = models.User{
			Email:                 input.Email,
			PasswordHash:          hash,
			Name:                  input.Name,
			IsActive:              true,
			CurrentOrganizationID: &org.ID,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		membership := models.Membership{
			OrganizationID: org.ID,
			UserID:         user.ID,
			RoleID:         ownerRole.ID,
			Status:         models.MembershipActive,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, org.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: &user, Organization: &org}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("CurrentOrganization").
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	orgID := uuid.Nil
	if user.CurrentOrganizationID != nil {
		orgID = *user.CurrentOrganizationID
	}

	token, err := s.jwt.GenerateToken(user.ID, orgID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: &user, Organization: user.CurrentOrganization}, nil
}

// CreateOrganization creates a new organization with the caller as owner,
// atomically with the owner membership.
func (s *Service) CreateOrganization(ctx context.Context, userID uuid.UUID, name string) (*models.Organization, error) {
	trialEnd := time.Now().AddDate(0, 0, trialDays)
	org := models.Organization{
		Name:        name,
		Slug:        generateSlug(name),
		TrialEndsAt: &trialEnd,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerRole, err := roleByName(tx, authz.RoleOwner)
		if err != nil {
			return err
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		membership := models.Membership{
			OrganizationID: org.ID,
			UserID:         userID,
			RoleID:         ownerRole.ID,
			Status:         models.MembershipActive,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// SwitchOrganization repoints the user's ambient organization and issues a
// token for it. Requires an active membership in the target organization.
func (s *Service) SwitchOrganization(ctx context.Context, userID, orgID uuid.UUID) (*AuthResponse, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ? AND status = ?", orgID, userID, models.MembershipActive).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoMembership
		}
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("current_organization_id", orgID).Error
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(userID, orgID, user.Email)
	if err != nil {
		return nil, err
	}

	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, err
	}

	user.CurrentOrganizationID = &orgID
	return &AuthResponse{Token: token, User: &user, Organization: &org}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("CurrentOrganization").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func roleByName(tx *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, errors.New("system roles not seeded: " + name)
	}
	return &role, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	// Add timestamp to ensure uniqueness
	return slug + "-" + time.Now().Format("0601021504")
}
