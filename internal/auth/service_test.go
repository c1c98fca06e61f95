package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/database/models"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*auth.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return auth.NewService(db, testutil.CreateTestJWTService()), db
}

func TestService_Register(t *testing.T) {
	service, db := newTestService(t)
	ctx := testutil.TestContext(t)

	resp, err := service.Register(ctx, auth.RegisterInput{
		Email:    "founder@example.com",
		Password: "password123",
		Name:     "Founder",
		OrgName:  "Founder Inc",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "founder@example.com", resp.User.Email)
	assert.Equal(t, "Founder Inc", resp.Organization.Name)

	// The owner membership exists and carries the owner role.
	var membership models.Membership
	err = db.Preload("Role").
		Where("organization_id = ? AND user_id = ?", resp.Organization.ID, resp.User.ID).
		First(&membership).Error
	require.NoError(t, err)
	assert.Equal(t, "owner", membership.Role.Name)
	assert.Equal(t, models.MembershipActive, membership.Status)

	// The password is not stored in the clear.
	assert.NotEqual(t, "password123", resp.User.PasswordHash)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := service.Register(ctx, auth.RegisterInput{
			Email:    "founder@example.com",
			Password: "password123",
			Name:     "Impostor",
		})
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	t.Run("defaults to personal workspace", func(t *testing.T) {
		resp, err := service.Register(ctx, auth.RegisterInput{
			Email:    "solo@example.com",
			Password: "password123",
			Name:     "Solo",
		})
		require.NoError(t, err)
		assert.Equal(t, "Solo's Workspace", resp.Organization.Name)
	})
}

func TestService_Login(t *testing.T) {
	service, _ := newTestService(t)
	ctx := testutil.TestContext(t)

	_, err := service.Register(ctx, auth.RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "User",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := service.Login(ctx, auth.LoginInput{
			Email:    "user@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.Organization)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Login(ctx, auth.LoginInput{
			Email:    "user@example.com",
			Password: "wrong",
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.Login(ctx, auth.LoginInput{
			Email:    "nobody@example.com",
			Password: "password123",
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestService_SwitchOrganization(t *testing.T) {
	service, db := newTestService(t)
	ctx := testutil.TestContext(t)

	resp, err := service.Register(ctx, auth.RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "User",
	})
	require.NoError(t, err)
	userID := resp.User.ID

	second, err := service.CreateOrganization(ctx, userID, "Second Org")
	require.NoError(t, err)

	t.Run("switches to a member organization", func(t *testing.T) {
		switched, err := service.SwitchOrganization(ctx, userID, second.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, switched.Organization.ID)
		require.NotNil(t, switched.User.CurrentOrganizationID)
		assert.Equal(t, second.ID, *switched.User.CurrentOrganizationID)
	})

	t.Run("rejects organizations without membership", func(t *testing.T) {
		stranger := testutil.CreateTestOrg(t, db)
		_, err := service.SwitchOrganization(ctx, userID, stranger.ID)
		assert.ErrorIs(t, err, auth.ErrNoMembership)
	})

	t.Run("rejects suspended membership", func(t *testing.T) {
		err := db.Model(&models.Membership{}).
			Where("organization_id = ? AND user_id = ?", second.ID, userID).
			Update("status", models.MembershipSuspended).Error
		require.NoError(t, err)

		_, err = service.SwitchOrganization(ctx, userID, second.ID)
		assert.ErrorIs(t, err, auth.ErrNoMembership)
	})
}

func TestService_GetUserByID(t *testing.T) {
	service, _ := newTestService(t)
	ctx := testutil.TestContext(t)

	resp, err := service.Register(ctx, auth.RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Name:     "User",
	})
	require.NoError(t, err)

	user, err := service.GetUserByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)

	_, err = service.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
