package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// respondError maps a service failure onto its HTTP status and APIError body.
// Unexpected errors are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		details := make(map[string]interface{}, len(validationErr.Fields))
		for field, message := range validationErr.Fields {
			details[field] = message
		}
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Invalid input", details))
	case errors.Is(err, storage.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Invalid input",
			map[string]interface{}{"image": err.Error()}))
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrAlreadyExists, err.Error()))
	case errors.Is(err, services.ErrSelfReference):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrSelfReference, "You cannot subscribe to yourself"))
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrInvalidGrant, "Unable to log in with provided credentials"))
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, err.Error()))
	case errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrRecipeForbidden,
			"You do not have permission to perform this action"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
	}
}

// badRequest answers with a single-field validation failure
func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Invalid input",
		map[string]interface{}{field: message}))
}

// invalidBody answers a request whose body could not be decoded
func invalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid request body",
		map[string]interface{}{"error": err.Error()}))
}

// viewerFrom builds the viewer set by the auth middlewares; anonymous when no token was sent
func viewerFrom(c *gin.Context) services.Viewer {
	return services.Viewer{
		UserID:  c.GetUint(middleware.ContextUserID),
		IsStaff: c.GetString(middleware.ContextUserRole) == models.RoleAdmin,
	}
}

// pathID parses a numeric path parameter, answering 400 when it is malformed
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid "+name+" format"))
		return 0, false
	}
	return uint(id), true
}
