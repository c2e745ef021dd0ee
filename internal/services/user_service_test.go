package services

import (
	"context"
	"errors"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput(username string) RegisterInput {
	return RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "correct-horse",
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()

	input := registerInput("ada")
	input.Email = "  Ada@Example.com "
	user, err := users.Register(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse", user.Password, "password must be hashed")

	got, err := users.Authenticate(ctx, "ADA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = users.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()
	_, err := users.Register(ctx, registerInput("ada"))
	require.NoError(t, err)

	sameEmail := registerInput("ada2")
	sameEmail.Email = "ada@example.com"
	_, err = users.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	sameUsername := registerInput("ada")
	sameUsername.Email = "other@example.com"
	_, err = users.Register(ctx, sameUsername)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	users := NewUserService(setupTestDB(t))

	testCases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"bad username", func(in *RegisterInput) { in.Username = "with space" }, "username"},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, "password"},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }, "first_name"},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput("ada")
			tt.mutate(&in)
			_, err := users.Register(context.Background(), in)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestSetPassword(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()
	user, err := users.Register(ctx, registerInput("ada"))
	require.NoError(t, err)

	err = users.SetPassword(ctx, user.ID, SetPasswordInput{CurrentPassword: "wrong", NewPassword: "another-secret"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "current_password")

	require.NoError(t, users.SetPassword(ctx, user.ID, SetPasswordInput{CurrentPassword: "correct-horse", NewPassword: "another-secret"}))

	_, err = users.Authenticate(ctx, user.Email, "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate(ctx, user.Email, "another-secret")
	assert.NoError(t, err)
}

func TestUserViewsCarrySubscriptionFlag(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	relations := NewRelationService(db)
	ctx := context.Background()
	reader := createUser(t, db, "reader")
	author := createUser(t, db, "author")
	createUser(t, db, "bystander")

	_, err := relations.Subscribe(ctx, reader.ID, author.ID, 0)
	require.NoError(t, err)

	view, err := users.View(ctx, viewerOf(reader), author.ID)
	require.NoError(t, err)
	assert.True(t, view.IsSubscribed)

	view, err = users.View(ctx, Anonymous(), author.ID)
	require.NoError(t, err)
	assert.False(t, view.IsSubscribed)

	_, err = users.View(ctx, Anonymous(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := users.List(ctx, viewerOf(reader), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Count)
	require.Len(t, page.Results, 2)
	assert.False(t, page.Results[0].IsSubscribed)
	assert.True(t, page.Results[1].IsSubscribed)
}

func TestEnsureSuperuser(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()

	created, err := users.EnsureSuperuser(ctx, registerInput("admin"))
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := users.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, admin.IsStaff())

	created, err = users.EnsureSuperuser(ctx, registerInput("admin"))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestClientService(t *testing.T) {
	db := setupTestDB(t)
	clients := NewClientService(db)
	owner := createUser(t, db, "owner")
	ctx := context.Background()

	creds, err := clients.CreateClient(ctx, owner.ID, ClientInput{Name: "CI pipeline"})
	require.NoError(t, err)
	assert.NotEmpty(t, creds.Secret)
	assert.True(t, creds.Client.VerifyPassword(creds.Secret))
	assert.Equal(t, "client_credentials", creds.Client.GrantTypes)

	list, err := clients.GetClientsByUserID(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := clients.GetClientByID(ctx, creds.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.UserID)

	assert.ErrorIs(t, clients.DeleteClient(ctx, creds.Client.ID, owner.ID+1), ErrNotFound)
	require.NoError(t, clients.DeleteClient(ctx, creds.Client.ID, owner.ID))
	_, err = clients.GetClientByID(ctx, creds.Client.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = clients.CreateClient(ctx, owner.ID, ClientInput{})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
