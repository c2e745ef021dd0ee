package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err, "Failed to open test database")
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: username,
		LastName:  "Tester",
		Password:  "not-a-real-hash",
		Role:      models.RoleUser,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(ingredient).Error)
	return ingredient
}

func createTag(t *testing.T, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: slug, Color: "#E26C2D", Slug: slug}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func viewerOf(u *models.User) Viewer {
	return Viewer{UserID: u.ID, IsStaff: u.IsStaff()}
}

// recipeFixture wires a recipe service over a fresh database with a small catalog
type recipeFixture struct {
	db      *gorm.DB
	recipes RecipeService
	author  *models.User
	tag     *models.Tag
	flour   *models.Ingredient
	egg     *models.Ingredient
	milk    *models.Ingredient
	sugar   *models.Ingredient
}

func newRecipeFixture(t *testing.T) *recipeFixture {
	t.Helper()
	db := setupTestDB(t)
	return &recipeFixture{
		db:      db,
		recipes: NewRecipeService(db, RecipeLimits{}, nil, nil),
		author:  createUser(t, db, "author"),
		tag:     createTag(t, db, "breakfast"),
		flour:   createIngredient(t, db, "flour", "g"),
		egg:     createIngredient(t, db, "egg", "pc"),
		milk:    createIngredient(t, db, "milk", "ml"),
		sugar:   createIngredient(t, db, "sugar", "g"),
	}
}

func (f *recipeFixture) input(name string, lines ...IngredientAmount) RecipeInput {
	return RecipeInput{
		Name:        name,
		Text:        "Mix and bake.",
		CookingTime: 30,
		Ingredients: lines,
		Tags:        []uint{f.tag.ID},
	}
}

func (f *recipeFixture) create(t *testing.T, author *models.User, name string, lines ...IngredientAmount) *models.RecipeView {
	t.Helper()
	if len(lines) == 0 {
		lines = []IngredientAmount{{ID: f.flour.ID, Amount: 100}}
	}
	view, err := f.recipes.Create(context.Background(), viewerOf(author), f.input(name, lines...))
	require.NoError(t, err, fmt.Sprintf("creating recipe %q", name))
	return view
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
