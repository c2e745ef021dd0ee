package controllers

import (
	"net/http"
	"strconv"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// UserController serves accounts and subscriptions
type UserController struct {
	users     services.UserService
	relations services.RelationService
}

func NewUserController(users services.UserService, relations services.RelationService) *UserController {
	return &UserController{users: users, relations: relations}
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} Paginated[models.UserView]
// @Router /api/v1/users [get]
func (uc *UserController) ListUsers(c *gin.Context) {
	req, err := parsePageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := uc.users.List(c.Request.Context(), viewerFrom(c), req.Page, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginate(c, req, page))
}

// Register godoc
// @Summary Register a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "Account"
// @Success 201 {object} models.UserView
// @Failure 400 {object} models.APIError
// @Router /api/v1/users [post]
func (uc *UserController) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidBody(c, err)
		return
	}

	user, err := uc.users.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.UserView{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// GetUser godoc
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserView
// @Failure 404 {object} models.APIError
// @Router /api/v1/users/{id} [get]
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := uc.users.View(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.UserView
// @Failure 401 {object} models.OAuth2Error
// @Security BearerAuth
// @Router /api/v1/users/me [get]
func (uc *UserController) Me(c *gin.Context) {
	viewer := viewerFrom(c)
	user, err := uc.users.View(c.Request.Context(), viewer, viewer.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetPassword godoc
// @Summary Change password
// @Tags users
// @Accept json
// @Param passwords body services.SetPasswordInput true "Current and new password"
// @Success 204
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/users/set_password [post]
func (uc *UserController) SetPassword(c *gin.Context) {
	var input services.SetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidBody(c, err)
		return
	}

	if err := uc.users.SetPassword(c.Request.Context(), viewerFrom(c).UserID, input); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Subscriptions godoc
// @Summary Followed authors
// @Description Authors the caller follows, each with a preview of their recipes
// @Tags subscriptions
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Recipes shown per author"
// @Success 200 {object} Paginated[models.AuthorView]
// @Security BearerAuth
// @Router /api/v1/users/subscriptions [get]
func (uc *UserController) Subscriptions(c *gin.Context) {
	req, err := parsePageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	recipesLimit, ok := recipesLimit(c)
	if !ok {
		return
	}

	page, err := uc.relations.Subscriptions(c.Request.Context(), viewerFrom(c).UserID, req.Page, req.Limit, recipesLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginate(c, req, page))
}

// Subscribe godoc
// @Summary Follow an author
// @Tags subscriptions
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Recipes shown"
// @Success 201 {object} models.AuthorView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/users/{id}/subscribe [post]
func (uc *UserController) Subscribe(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipesLimit, ok := recipesLimit(c)
	if !ok {
		return
	}

	author, err := uc.relations.Subscribe(c.Request.Context(), viewerFrom(c).UserID, authorID, recipesLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, author)
}

// Unsubscribe godoc
// @Summary Unfollow an author
// @Tags subscriptions
// @Param id path int true "Author ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/users/{id}/subscribe [delete]
func (uc *UserController) Unsubscribe(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := uc.relations.Unsubscribe(c.Request.Context(), viewerFrom(c).UserID, authorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recipesLimit reads ?recipes_limit=, where zero means every recipe
func recipesLimit(c *gin.Context) (int, bool) {
	raw := c.Query("recipes_limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, "recipes_limit", "must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
