package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Default upper bounds for recipe input
const (
	DefaultMaxCookingTime      = 1000
	DefaultMaxIngredientAmount = 10000
)

// IngredientAmount is one requested ingredient line
type IngredientAmount struct {
	ID     uint `json:"id" validate:"required"`
	Amount int  `json:"amount"`
}

// RecipeInput is the write model shared by create and update.
// Image holds an already stored reference; on update an empty Image keeps the current one.
type RecipeInput struct {
	Name        string             `json:"name" validate:"required,max=200"`
	Text        string             `json:"text" validate:"required"`
	Image       string             `json:"-"`
	CookingTime int                `json:"cooking_time"`
	Ingredients []IngredientAmount `json:"ingredients" validate:"required,min=1,dive"`
	Tags        []uint             `json:"tags" validate:"required,min=1,dive,required"`
}

// RecipeFilter narrows a recipe listing. IsFavorited and IsInShoppingCart
// only apply to an authenticated viewer.
type RecipeFilter struct {
	AuthorID         uint
	Tags             []string
	IsFavorited      bool
	IsInShoppingCart bool
	Page             int
	Limit            int
}

// RecipeLimits bounds cooking time and ingredient amounts
type RecipeLimits struct {
	MaxCookingTime      int
	MaxIngredientAmount int
}

// ImageRemover deletes stored recipe images that are no longer referenced
type ImageRemover interface {
	Delete(ctx context.Context, ref string) error
}

// RecipeService owns the recipe aggregate: a recipe, its ingredient lines and tag links
type RecipeService interface {
	// Create persists the recipe with its lines and tags atomically
	Create(ctx context.Context, author Viewer, input RecipeInput) (*models.RecipeView, error)
	// Update replaces every field, ingredient line and tag of the recipe atomically
	Update(ctx context.Context, viewer Viewer, id uint, input RecipeInput) (*models.RecipeView, error)
	// Delete removes the recipe together with its lines, tag links, favorites and cart entries
	Delete(ctx context.Context, viewer Viewer, id uint) error

	Get(ctx context.Context, viewer Viewer, id uint) (*models.RecipeView, error)
	List(ctx context.Context, viewer Viewer, filter RecipeFilter) (*models.Page[models.RecipeView], error)
	Summary(ctx context.Context, id uint) (*models.RecipeSummary, error)

	// IsMutableBy reports whether the viewer may update or delete the recipe
	IsMutableBy(recipe *models.Recipe, viewer Viewer) bool
	// Authorize fails with ErrNotFound or ErrNotAuthorized unless the viewer
	// may update or delete the recipe
	Authorize(ctx context.Context, viewer Viewer, id uint) error
}

type recipeService struct {
	db      *gorm.DB
	recipes repository.Repository[models.Recipe]
	views   *viewBuilder
	limits  RecipeLimits
	images  ImageRemover
	log     *logrus.Logger
}

// NewRecipeService creates a new instance of RecipeService. images may be nil.
func NewRecipeService(db *gorm.DB, limits RecipeLimits, images ImageRemover, logger *logrus.Logger) RecipeService {
	if limits.MaxCookingTime < 1 {
		limits.MaxCookingTime = DefaultMaxCookingTime
	}
	if limits.MaxIngredientAmount < 1 {
		limits.MaxIngredientAmount = DefaultMaxIngredientAmount
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &recipeService{
		db:      db,
		recipes: repository.New[models.Recipe](db),
		views:   &viewBuilder{db: db},
		limits:  limits,
		images:  images,
		log:     logger,
	}
}

func (s *recipeService) IsMutableBy(recipe *models.Recipe, viewer Viewer) bool {
	if recipe == nil || viewer.IsAnonymous() {
		return false
	}
	return viewer.UserID == recipe.AuthorID || viewer.IsStaff
}

func (s *recipeService) Authorize(ctx context.Context, viewer Viewer, id uint) error {
	_, err := s.loadMutable(ctx, s.db, viewer, id)
	return err
}

// loadMutable finds the recipe and checks the viewer may change it
func (s *recipeService) loadMutable(ctx context.Context, tx *gorm.DB, viewer Viewer, id uint) (*models.Recipe, error) {
	recipe, err := s.recipes.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "recipe", id)
	}
	if !s.IsMutableBy(recipe, viewer) {
		return nil, fmt.Errorf("recipe %d: %w", id, ErrNotAuthorized)
	}
	return recipe, nil
}

func (s *recipeService) Create(ctx context.Context, author Viewer, input RecipeInput) (*models.RecipeView, error) {
	if author.IsAnonymous() {
		return nil, fmt.Errorf("anonymous viewer cannot create recipes: %w", ErrNotAuthorized)
	}
	input, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    author.UserID,
		Name:        input.Name,
		Text:        input.Text,
		Image:       input.Image,
		CookingTime: input.CookingTime,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, input); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return translateRecipeWriteError(err, input.Name)
		}
		return writeLinks(tx, recipe.ID, input)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"recipe_id": recipe.ID,
		"author_id": author.UserID,
	}).Info("Recipe created")

	return s.Get(ctx, author, recipe.ID)
}

func (s *recipeService) Update(ctx context.Context, viewer Viewer, id uint, input RecipeInput) (*models.RecipeView, error) {
	var replacedImage string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// not-found and forbidden take precedence over an invalid payload
		recipe, err := s.loadMutable(ctx, tx, viewer, id)
		if err != nil {
			return err
		}
		if input, err = s.validate(input); err != nil {
			return err
		}
		if err := checkReferences(tx, input); err != nil {
			return err
		}

		changes := map[string]any{
			"name":         input.Name,
			"text":         input.Text,
			"cooking_time": input.CookingTime,
		}
		if input.Image != "" && input.Image != recipe.Image {
			changes["image"] = input.Image
			replacedImage = recipe.Image
		}
		if err := tx.Model(recipe).Omit(clause.Associations).Updates(changes).Error; err != nil {
			return translateRecipeWriteError(err, input.Name)
		}

		// Clear then recreate: the new input is the complete line and tag set.
		if err := clearLinks(tx, id); err != nil {
			return err
		}
		return writeLinks(tx, id, input)
	})
	if err != nil {
		return nil, err
	}

	s.removeImage(ctx, replacedImage)
	s.log.WithFields(logrus.Fields{
		"recipe_id": id,
		"viewer_id": viewer.UserID,
	}).Info("Recipe updated")

	return s.Get(ctx, viewer, id)
}

func (s *recipeService) Delete(ctx context.Context, viewer Viewer, id uint) error {
	var image string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.loadMutable(ctx, tx, viewer, id)
		if err != nil {
			return err
		}
		image = recipe.Image

		for _, dependent := range []any{&models.Favorite{}, &models.CartItem{}} {
			if err := tx.Where("recipe_id = ?", id).Delete(dependent).Error; err != nil {
				return fmt.Errorf("failed to delete recipe %d relations: %w", id, err)
			}
		}
		if err := clearLinks(tx, id); err != nil {
			return err
		}
		return s.recipes.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.removeImage(ctx, image)
	s.log.WithFields(logrus.Fields{
		"recipe_id": id,
		"viewer_id": viewer.UserID,
	}).Info("Recipe deleted")
	return nil
}

func (s *recipeService) Get(ctx context.Context, viewer Viewer, id uint) (*models.RecipeView, error) {
	var recipe models.Recipe
	err := preloadRecipe(s.db.WithContext(ctx)).First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("recipe", id)
		}
		return nil, err
	}

	views, err := s.views.recipes(ctx, viewer, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *recipeService) List(ctx context.Context, viewer Viewer, filter RecipeFilter) (*models.Page[models.RecipeView], error) {
	scopes := s.filterScopes(viewer, filter)
	query := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Recipe{}).Scopes(scopes...)
	}

	var count int64
	if err := query().Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := preloadRecipe(query()).
		Order("pub_date DESC").Order("id DESC").
		Scopes(repository.Paginate(filter.Page, filter.Limit)).
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	views, err := s.views.recipes(ctx, viewer, recipes)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.RecipeView]{Count: count, Results: views}, nil
}

func (s *recipeService) Summary(ctx context.Context, id uint) (*models.RecipeSummary, error) {
	recipe, err := s.recipes.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "recipe", id)
	}
	summary := summarize(*recipe)
	return &summary, nil
}

func (s *recipeService) filterScopes(viewer Viewer, filter RecipeFilter) []repository.Scope {
	var scopes []repository.Scope
	if filter.AuthorID != 0 {
		scopes = append(scopes, repository.Where("recipes.author_id = ?", filter.AuthorID))
	}
	if len(filter.Tags) > 0 {
		scopes = append(scopes, repository.Where(
			"recipes.id IN (SELECT recipe_tags.recipe_id FROM recipe_tags JOIN tags ON tags.id = recipe_tags.tag_id WHERE tags.slug IN ?)",
			filter.Tags))
	}
	// Relation filters are a no-op for anonymous viewers.
	if !viewer.IsAnonymous() {
		if filter.IsFavorited {
			scopes = append(scopes, repository.Where(
				"recipes.id IN (SELECT recipe_id FROM favorites WHERE user_id = ?)", viewer.UserID))
		}
		if filter.IsInShoppingCart {
			scopes = append(scopes, repository.Where(
				"recipes.id IN (SELECT recipe_id FROM shopping_cart_items WHERE user_id = ?)", viewer.UserID))
		}
	}
	return scopes
}

// validate normalises the input and enforces the aggregate's rules.
// Duplicate tag ids collapse silently; duplicate ingredient ids are rejected.
func (s *recipeService) validate(input RecipeInput) (RecipeInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Text = strings.TrimSpace(input.Text)

	verr := validateStruct(input)

	if input.CookingTime < 1 {
		verr.Add("cooking_time", "must be at least 1")
	} else if input.CookingTime > s.limits.MaxCookingTime {
		verr.Add("cooking_time", fmt.Sprintf("must be at most %d", s.limits.MaxCookingTime))
	}

	seen := make(map[uint]bool, len(input.Ingredients))
	for i, line := range input.Ingredients {
		field := fmt.Sprintf("ingredients[%d].amount", i)
		if line.Amount < 1 {
			verr.Add(field, "must be at least 1")
		} else if line.Amount > s.limits.MaxIngredientAmount {
			verr.Add(field, fmt.Sprintf("must be at most %d", s.limits.MaxIngredientAmount))
		}
		if seen[line.ID] {
			verr.Add("ingredients", fmt.Sprintf("ingredient %d is listed more than once", line.ID))
		}
		seen[line.ID] = true
	}

	if err := verr.OrNil(); err != nil {
		return input, err
	}
	input.Tags = uniqueIDs(input.Tags)
	return input, nil
}

// checkReferences fails with ErrNotFound when a tag or ingredient id is unknown
func checkReferences(tx *gorm.DB, input RecipeInput) error {
	ingredientIDs := make([]uint, 0, len(input.Ingredients))
	for _, line := range input.Ingredients {
		ingredientIDs = append(ingredientIDs, line.ID)
	}
	if missing, err := missingIDs(tx, &models.Ingredient{}, ingredientIDs); err != nil {
		return err
	} else if len(missing) > 0 {
		return notFound("ingredient", missing)
	}
	if missing, err := missingIDs(tx, &models.Tag{}, input.Tags); err != nil {
		return err
	} else if len(missing) > 0 {
		return notFound("tag", missing)
	}
	return nil
}

func missingIDs(tx *gorm.DB, model any, ids []uint) ([]uint, error) {
	var found []uint
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[uint]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func writeLinks(tx *gorm.DB, recipeID uint, input RecipeInput) error {
	lines := make([]models.RecipeIngredient, 0, len(input.Ingredients))
	for _, line := range input.Ingredients {
		lines = append(lines, models.RecipeIngredient{RecipeID: recipeID, IngredientID: line.ID, Amount: line.Amount})
	}
	if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return newValidationError("ingredients", "an ingredient is listed more than once")
		}
		return fmt.Errorf("failed to write ingredient lines of recipe %d: %w", recipeID, err)
	}

	links := make([]models.RecipeTag, 0, len(input.Tags))
	for _, tagID := range input.Tags {
		links = append(links, models.RecipeTag{RecipeID: recipeID, TagID: tagID})
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to write tags of recipe %d: %w", recipeID, err)
	}
	return nil
}

func clearLinks(tx *gorm.DB, recipeID uint) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("failed to clear ingredient lines of recipe %d: %w", recipeID, err)
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
		return fmt.Errorf("failed to clear tags of recipe %d: %w", recipeID, err)
	}
	return nil
}

func translateRecipeWriteError(err error, name string) error {
	if database.IsDuplicateKey(err) {
		return fmt.Errorf("recipe %q by this author: %w", name, ErrAlreadyExists)
	}
	return fmt.Errorf("failed to write recipe: %w", err)
}

// removeImage deletes a replaced image; failures only leave an orphaned file
func (s *recipeService) removeImage(ctx context.Context, ref string) {
	if s.images == nil || ref == "" {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.log.WithError(err).WithField("image", ref).Warn("Failed to delete recipe image")
	}
}

func preloadRecipe(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Ingredients.Ingredient").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") })
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
