package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/repository"
	"gorm.io/gorm"
)

// RegisterInput is the sign-up payload
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

// SetPasswordInput changes the caller's password
type SetPasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	// Authenticate returns the user owning the email and password, or ErrInvalidCredentials
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, userID uint, input SetPasswordInput) error

	View(ctx context.Context, viewer Viewer, id uint) (*models.UserView, error)
	List(ctx context.Context, viewer Viewer, page, limit int) (*models.Page[models.UserView], error)

	// EnsureSuperuser creates an admin account unless the email is already taken.
	// It reports whether a user was created.
	EnsureSuperuser(ctx context.Context, input RegisterInput) (bool, error)
}

type userService struct {
	db    *gorm.DB
	users repository.Repository[models.User]
	views *viewBuilder
}

func NewUserService(db *gorm.DB) UserService {
	return &userService{
		db:    db,
		users: repository.New[models.User](db),
		views: &viewBuilder{db: db},
	}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	return s.create(ctx, input, models.RoleUser)
}

func (s *userService) create(ctx context.Context, input RegisterInput, role string) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := validateStruct(input).OrNil(); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     input.Email,
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  input.Password,
		Role:      role,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.Save(ctx, user); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("user with this email or username: %w", ErrAlreadyExists)
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "user", id)
	}
	return user, nil
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := s.users.Query(ctx, repository.Where("email = ?", email))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("user", email)
	}
	return &users[0], nil
}

func (s *userService) SetPassword(ctx context.Context, userID uint, input SetPasswordInput) error {
	if err := validateStruct(input).OrNil(); err != nil {
		return err
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(input.CurrentPassword) {
		return newValidationError("current_password", "incorrect password")
	}

	user.Password = input.NewPassword
	if err := user.HashPassword(); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(user).Update("password", user.Password).Error
}

func (s *userService) View(ctx context.Context, viewer Viewer, id uint) (*models.UserView, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views.users(ctx, viewer, []models.User{*user})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *userService) List(ctx context.Context, viewer Viewer, page, limit int) (*models.Page[models.UserView], error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	users, err := s.users.Query(ctx, repository.OrderBy("id"), repository.Paginate(page, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	views, err := s.views.users(ctx, viewer, users)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.UserView]{Count: count, Results: views}, nil
}

func (s *userService) EnsureSuperuser(ctx context.Context, input RegisterInput) (bool, error) {
	_, err := s.GetUserByEmail(ctx, input.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := s.create(ctx, input, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
