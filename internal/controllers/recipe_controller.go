package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
)

// RecipeRequest is the JSON body of recipe create and update.
// Image is a base64 data URI such as "data:image/png;base64,...".
type RecipeRequest struct {
	Name        string                      `json:"name"`
	Text        string                      `json:"text"`
	Image       string                      `json:"image"`
	CookingTime int                         `json:"cooking_time"`
	Ingredients []services.IngredientAmount `json:"ingredients"`
	Tags        []uint                      `json:"tags"`
}

func (r RecipeRequest) input(image string) services.RecipeInput {
	return services.RecipeInput{
		Name:        r.Name,
		Text:        r.Text,
		Image:       image,
		CookingTime: r.CookingTime,
		Ingredients: r.Ingredients,
		Tags:        r.Tags,
	}
}

type RecipeController struct {
	recipes   services.RecipeService
	relations services.RelationService
	shopping  services.ShoppingListService
	users     services.UserService
	images    storage.ImageStore
}

func NewRecipeController(
	recipes services.RecipeService,
	relations services.RelationService,
	shopping services.ShoppingListService,
	users services.UserService,
	images storage.ImageStore,
) *RecipeController {
	return &RecipeController{
		recipes:   recipes,
		relations: relations,
		shopping:  shopping,
		users:     users,
		images:    images,
	}
}

// ListRecipes godoc
// @Summary List recipes
// @Description Paginated recipes, newest first, narrowed by the optional filters
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs, any of" collectionFormat(multi)
// @Param is_favorited query int false "Only the caller's favorites (1)"
// @Param is_in_shopping_cart query int false "Only recipes in the caller's cart (1)"
// @Success 200 {object} Paginated[models.RecipeView]
// @Failure 400 {object} models.APIError
// @Router /api/v1/recipes [get]
func (rc *RecipeController) ListRecipes(c *gin.Context) {
	req, err := parsePageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	filter, err := parseRecipeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	filter.Page, filter.Limit = req.Page, req.Limit

	page, err := rc.recipes.List(c.Request.Context(), viewerFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginate(c, req, page))
}

func parseRecipeFilter(c *gin.Context) (services.RecipeFilter, error) {
	var filter services.RecipeFilter
	verr := &services.ValidationError{}

	if raw := c.Query("author"); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			verr.Add("author", "must be a user id")
		}
		filter.AuthorID = uint(author)
	}

	for _, slug := range c.QueryArray("tags") {
		if slug = strings.TrimSpace(slug); slug != "" {
			filter.Tags = append(filter.Tags, slug)
		}
	}

	flag := func(name string) bool {
		raw := c.Query(name)
		if raw == "" {
			return false
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add(name, "must be 0 or 1")
		}
		return value
	}
	filter.IsFavorited = flag("is_favorited")
	filter.IsInShoppingCart = flag("is_in_shopping_cart")

	return filter, verr.OrNil()
}

// GetRecipe godoc
// @Summary Get recipe by ID
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} models.RecipeView
// @Failure 404 {object} models.APIError
// @Router /api/v1/recipes/{id} [get]
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	recipe, err := rc.recipes.Get(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// CreateRecipe godoc
// @Summary Create a recipe
// @Description Publish a recipe as the caller. Ingredients and tags must exist.
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body RecipeRequest true "Recipe"
// @Success 201 {object} models.RecipeView
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.OAuth2Error
// @Failure 404 {object} models.APIError
// @Failure 429 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes [post]
func (rc *RecipeController) CreateRecipe(c *gin.Context) {
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	ctx := c.Request.Context()
	var image string
	if req.Image != "" {
		ref, err := storage.SaveDataURI(ctx, rc.images, req.Image)
		if err != nil {
			respondError(c, err)
			return
		}
		image = ref
	}

	recipe, err := rc.recipes.Create(ctx, viewerFrom(c), req.input(image))
	if err != nil {
		rc.discardImage(c, ctx, image)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe godoc
// @Summary Update a recipe
// @Description Replace a recipe's fields, ingredient lines and tags. Only the author or staff may update.
// @Description An image that is not a data URI keeps the current one.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param recipe body RecipeRequest true "Recipe"
// @Success 200 {object} models.RecipeView
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id} [patch]
func (rc *RecipeController) UpdateRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	ctx := c.Request.Context()
	viewer := viewerFrom(c)
	var image string
	if strings.HasPrefix(req.Image, "data:") {
		// nothing is stored for a viewer who cannot change the recipe
		if err := rc.recipes.Authorize(ctx, viewer, id); err != nil {
			respondError(c, err)
			return
		}
		ref, err := storage.SaveDataURI(ctx, rc.images, req.Image)
		if err != nil {
			respondError(c, err)
			return
		}
		image = ref
	}

	recipe, err := rc.recipes.Update(ctx, viewer, id, req.input(image))
	if err != nil {
		rc.discardImage(c, ctx, image)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// discardImage removes an image stored for a write that then failed
func (rc *RecipeController) discardImage(c *gin.Context, ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := rc.images.Delete(ctx, ref); err != nil {
		_ = c.Error(err)
	}
}

// DeleteRecipe godoc
// @Summary Delete a recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id} [delete]
func (rc *RecipeController) DeleteRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := rc.recipes.Delete(c.Request.Context(), viewerFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddFavorite godoc
// @Summary Add a recipe to favorites
// @Tags favorites
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} models.RecipeSummary
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id}/favorite [post]
func (rc *RecipeController) AddFavorite(c *gin.Context) {
	rc.addMember(c, rc.relations.AddFavorite)
}

// RemoveFavorite godoc
// @Summary Remove a recipe from favorites
// @Tags favorites
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id}/favorite [delete]
func (rc *RecipeController) RemoveFavorite(c *gin.Context) {
	rc.removeMember(c, rc.relations.RemoveFavorite)
}

// AddToCart godoc
// @Summary Add a recipe to the shopping cart
// @Tags shopping cart
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} models.RecipeSummary
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id}/shopping_cart [post]
func (rc *RecipeController) AddToCart(c *gin.Context) {
	rc.addMember(c, rc.relations.AddToCart)
}

// RemoveFromCart godoc
// @Summary Remove a recipe from the shopping cart
// @Tags shopping cart
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id}/shopping_cart [delete]
func (rc *RecipeController) RemoveFromCart(c *gin.Context) {
	rc.removeMember(c, rc.relations.RemoveFromCart)
}

func (rc *RecipeController) addMember(c *gin.Context, add func(ctx context.Context, userID, recipeID uint) (*models.RecipeSummary, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	summary, err := add(c.Request.Context(), viewerFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (rc *RecipeController) removeMember(c *gin.Context, remove func(ctx context.Context, userID, recipeID uint) error) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := remove(c.Request.Context(), viewerFrom(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart godoc
// @Summary Download the shopping list
// @Description Ingredients of every recipe in the cart, summed per ingredient, as a text file
// @Tags shopping cart
// @Produce plain
// @Success 200 {string} string "shopping_list.txt"
// @Security BearerAuth
// @Router /api/v1/recipes/download_shopping_cart [get]
func (rc *RecipeController) DownloadShoppingCart(c *gin.Context) {
	ctx := c.Request.Context()
	viewer := viewerFrom(c)

	user, err := rc.users.GetUserByID(ctx, viewer.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := rc.shopping.ShoppingList(ctx, viewer.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="shopping_list.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(services.RenderShoppingList(user.FullName(), items)))
}
