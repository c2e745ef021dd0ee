package services

import (
	"context"
	"errors"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockImageRemover struct {
	mock.Mock
}

func (m *mockImageRemover) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func TestCreateRecipe(t *testing.T) {
	f := newRecipeFixture(t)

	view := f.create(t, f.author, "Pancakes",
		IngredientAmount{ID: f.flour.ID, Amount: 200},
		IngredientAmount{ID: f.egg.ID, Amount: 2},
	)

	assert.NotZero(t, view.ID)
	assert.Equal(t, "Pancakes", view.Name)
	assert.Equal(t, f.author.ID, view.Author.ID)
	assert.False(t, view.Author.IsSubscribed)
	assert.False(t, view.IsFavorited)
	assert.False(t, view.IsInShoppingCart)
	require.Len(t, view.Tags, 1)
	assert.Equal(t, "breakfast", view.Tags[0].Slug)
	assert.Equal(t, []models.IngredientLineView{
		{ID: f.egg.ID, Name: "egg", MeasurementUnit: "pc", Amount: 2},
		{ID: f.flour.ID, Name: "flour", MeasurementUnit: "g", Amount: 200},
	}, view.Ingredients)
	assert.False(t, view.PubDate.IsZero())
}

func TestCreateRecipeValidation(t *testing.T) {
	f := newRecipeFixture(t)
	valid := func() RecipeInput {
		return f.input("Bread", IngredientAmount{ID: f.flour.ID, Amount: 500})
	}

	testCases := []struct {
		name   string
		mutate func(*RecipeInput)
		field  string
	}{
		{"no tags", func(in *RecipeInput) { in.Tags = nil }, "tags"},
		{"no ingredients", func(in *RecipeInput) { in.Ingredients = nil }, "ingredients"},
		{"duplicate ingredient", func(in *RecipeInput) {
			in.Ingredients = append(in.Ingredients, IngredientAmount{ID: f.flour.ID, Amount: 1})
		}, "ingredients"},
		{"zero amount", func(in *RecipeInput) { in.Ingredients[0].Amount = 0 }, "ingredients[0].amount"},
		{"amount above ceiling", func(in *RecipeInput) { in.Ingredients[0].Amount = 10001 }, "ingredients[0].amount"},
		{"zero cooking time", func(in *RecipeInput) { in.CookingTime = 0 }, "cooking_time"},
		{"cooking time above ceiling", func(in *RecipeInput) { in.CookingTime = 1001 }, "cooking_time"},
		{"blank name", func(in *RecipeInput) { in.Name = "   " }, "name"},
		{"blank text", func(in *RecipeInput) { in.Text = "" }, "text"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			_, err := f.recipes.Create(context.Background(), viewerOf(f.author), in)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	assert.Equal(t, int64(0), countRows(t, f.db, &models.Recipe{}, "1 = 1"))
}

func TestCreateRecipeUnknownReferences(t *testing.T) {
	f := newRecipeFixture(t)

	in := f.input("Bread", IngredientAmount{ID: 9999, Amount: 1})
	_, err := f.recipes.Create(context.Background(), viewerOf(f.author), in)
	assert.ErrorIs(t, err, ErrNotFound)

	in = f.input("Bread", IngredientAmount{ID: f.flour.ID, Amount: 1})
	in.Tags = []uint{f.tag.ID, 9999}
	_, err = f.recipes.Create(context.Background(), viewerOf(f.author), in)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(0), countRows(t, f.db, &models.Recipe{}, "1 = 1"))
}

func TestCreateRecipeDeduplicatesTags(t *testing.T) {
	f := newRecipeFixture(t)

	in := f.input("Toast", IngredientAmount{ID: f.flour.ID, Amount: 50})
	in.Tags = []uint{f.tag.ID, f.tag.ID}
	view, err := f.recipes.Create(context.Background(), viewerOf(f.author), in)

	require.NoError(t, err)
	assert.Len(t, view.Tags, 1)
}

func TestCreateRecipeDuplicateNamePerAuthor(t *testing.T) {
	f := newRecipeFixture(t)
	other := createUser(t, f.db, "other")
	f.create(t, f.author, "Pancakes")

	_, err := f.recipes.Create(context.Background(), viewerOf(f.author),
		f.input("Pancakes", IngredientAmount{ID: f.egg.ID, Amount: 3}))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.RecipeIngredient{}, "1 = 1"),
		"failed create must not leave ingredient lines behind")

	// The same name is fine for another author.
	f.create(t, other, "Pancakes")
}

func TestCreateRecipeRequiresAuthor(t *testing.T) {
	f := newRecipeFixture(t)

	_, err := f.recipes.Create(context.Background(), Anonymous(),
		f.input("Pancakes", IngredientAmount{ID: f.egg.ID, Amount: 3}))
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestUpdateRecipeReplacesLinesAndTags(t *testing.T) {
	f := newRecipeFixture(t)
	dessert := createTag(t, f.db, "dessert")
	created := f.create(t, f.author, "Cake", IngredientAmount{ID: f.flour.ID, Amount: 200})

	in := f.input("Sweet cake", IngredientAmount{ID: f.sugar.ID, Amount: 50})
	in.Tags = []uint{dessert.ID}
	updated, err := f.recipes.Update(context.Background(), viewerOf(f.author), created.ID, in)

	require.NoError(t, err)
	assert.Equal(t, "Sweet cake", updated.Name)
	assert.Equal(t, []models.IngredientLineView{
		{ID: f.sugar.ID, Name: "sugar", MeasurementUnit: "g", Amount: 50},
	}, updated.Ingredients)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "dessert", updated.Tags[0].Slug)

	assert.Equal(t, int64(0), countRows(t, f.db, &models.RecipeIngredient{},
		"recipe_id = ? AND ingredient_id = ?", created.ID, f.flour.ID), "no residual flour line")
	assert.Equal(t, int64(1), countRows(t, f.db, &models.RecipeTag{}, "recipe_id = ?", created.ID))
	assert.Equal(t, created.PubDate.Unix(), updated.PubDate.Unix(), "pub_date is immutable")
}

func TestUpdateRecipeImage(t *testing.T) {
	db := setupTestDB(t)
	images := new(mockImageRemover)
	f := &recipeFixture{
		db:      db,
		recipes: NewRecipeService(db, RecipeLimits{}, images, nil),
		author:  createUser(t, db, "author"),
		tag:     createTag(t, db, "lunch"),
		flour:   createIngredient(t, db, "flour", "g"),
	}
	ctx := context.Background()

	in := f.input("Pie", IngredientAmount{ID: f.flour.ID, Amount: 10})
	in.Image = "recipes/old.png"
	created, err := f.recipes.Create(ctx, viewerOf(f.author), in)
	require.NoError(t, err)

	// No new image keeps the current one.
	in.Image = ""
	updated, err := f.recipes.Update(ctx, viewerOf(f.author), created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "recipes/old.png", updated.Image)

	images.On("Delete", mock.Anything, "recipes/old.png").Return(nil).Once()
	in.Image = "recipes/new.png"
	updated, err = f.recipes.Update(ctx, viewerOf(f.author), created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "recipes/new.png", updated.Image)

	images.On("Delete", mock.Anything, "recipes/new.png").Return(errors.New("bucket unavailable")).Once()
	require.NoError(t, f.recipes.Delete(ctx, viewerOf(f.author), created.ID), "image cleanup failures are not fatal")

	images.AssertExpectations(t)
}

func TestUpdateRecipeAuthorization(t *testing.T) {
	f := newRecipeFixture(t)
	stranger := createUser(t, f.db, "stranger")
	admin := createUser(t, f.db, "admin")
	require.NoError(t, f.db.Model(admin).Update("role", models.RoleAdmin).Error)
	admin.Role = models.RoleAdmin

	created := f.create(t, f.author, "Soup")
	in := f.input("Soup", IngredientAmount{ID: f.milk.ID, Amount: 300})

	_, err := f.recipes.Update(context.Background(), viewerOf(stranger), created.ID, in)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.recipes.Update(context.Background(), Anonymous(), created.ID, in)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.recipes.Update(context.Background(), viewerOf(admin), created.ID, in)
	assert.NoError(t, err)

	_, err = f.recipes.Update(context.Background(), viewerOf(f.author), 9999, in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRecipeChecksAccessBeforePayload(t *testing.T) {
	f := newRecipeFixture(t)
	stranger := createUser(t, f.db, "stranger")
	created := f.create(t, f.author, "Soup")
	ctx := context.Background()

	invalid := f.input("", IngredientAmount{ID: f.milk.ID, Amount: 0})
	invalid.CookingTime = 0

	_, err := f.recipes.Update(ctx, viewerOf(stranger), created.ID, invalid)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.recipes.Update(ctx, viewerOf(f.author), 9999, invalid)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.recipes.Update(ctx, viewerOf(f.author), created.ID, invalid)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "cooking_time")
}

func TestAuthorizeRecipe(t *testing.T) {
	f := newRecipeFixture(t)
	stranger := createUser(t, f.db, "stranger")
	created := f.create(t, f.author, "Soup")
	ctx := context.Background()

	assert.NoError(t, f.recipes.Authorize(ctx, viewerOf(f.author), created.ID))
	assert.ErrorIs(t, f.recipes.Authorize(ctx, viewerOf(stranger), created.ID), ErrNotAuthorized)
	assert.ErrorIs(t, f.recipes.Authorize(ctx, Anonymous(), created.ID), ErrNotAuthorized)
	assert.ErrorIs(t, f.recipes.Authorize(ctx, viewerOf(f.author), 9999), ErrNotFound)
}

func TestUpdateRecipeRenameCollision(t *testing.T) {
	f := newRecipeFixture(t)
	f.create(t, f.author, "Soup")
	salad := f.create(t, f.author, "Salad", IngredientAmount{ID: f.egg.ID, Amount: 1})

	_, err := f.recipes.Update(context.Background(), viewerOf(f.author), salad.ID,
		f.input("Soup", IngredientAmount{ID: f.milk.ID, Amount: 1}))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := f.recipes.Get(context.Background(), viewerOf(f.author), salad.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salad", got.Name)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, f.egg.ID, got.Ingredients[0].ID, "rolled back update keeps the old lines")
}

func TestIsMutableBy(t *testing.T) {
	f := newRecipeFixture(t)
	recipe := &models.Recipe{ID: 1, AuthorID: 10}

	testCases := []struct {
		name     string
		viewer   Viewer
		expected bool
	}{
		{"author", Viewer{UserID: 10}, true},
		{"staff", Viewer{UserID: 11, IsStaff: true}, true},
		{"other user", Viewer{UserID: 11}, false},
		{"anonymous", Anonymous(), false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.recipes.IsMutableBy(recipe, tt.viewer))
		})
	}
	assert.False(t, f.recipes.IsMutableBy(nil, Viewer{UserID: 10}))
}

func TestDeleteRecipeCascades(t *testing.T) {
	f := newRecipeFixture(t)
	reader := createUser(t, f.db, "reader")
	relations := NewRelationService(f.db)
	ctx := context.Background()

	doomed := f.create(t, f.author, "Doomed", IngredientAmount{ID: f.flour.ID, Amount: 1})
	kept := f.create(t, f.author, "Kept", IngredientAmount{ID: f.egg.ID, Amount: 1})
	for _, id := range []uint{doomed.ID, kept.ID} {
		_, err := relations.AddFavorite(ctx, reader.ID, id)
		require.NoError(t, err)
		_, err = relations.AddToCart(ctx, reader.ID, id)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, f.recipes.Delete(ctx, viewerOf(reader), doomed.ID), ErrNotAuthorized)
	require.NoError(t, f.recipes.Delete(ctx, viewerOf(f.author), doomed.ID))

	for _, model := range []any{&models.Favorite{}, &models.CartItem{}, &models.RecipeIngredient{}, &models.RecipeTag{}} {
		assert.Equal(t, int64(0), countRows(t, f.db, model, "recipe_id = ?", doomed.ID))
		assert.Equal(t, int64(1), countRows(t, f.db, model, "recipe_id = ?", kept.ID))
	}

	_, err := f.recipes.Get(ctx, Anonymous(), doomed.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.recipes.Delete(ctx, viewerOf(f.author), doomed.ID), ErrNotFound)
}

func TestGetRecipeViewerFlags(t *testing.T) {
	f := newRecipeFixture(t)
	reader := createUser(t, f.db, "reader")
	relations := NewRelationService(f.db)
	ctx := context.Background()
	recipe := f.create(t, f.author, "Omelette", IngredientAmount{ID: f.egg.ID, Amount: 3})

	_, err := relations.AddFavorite(ctx, reader.ID, recipe.ID)
	require.NoError(t, err)
	_, err = relations.AddToCart(ctx, reader.ID, recipe.ID)
	require.NoError(t, err)
	_, err = relations.Subscribe(ctx, reader.ID, f.author.ID, 0)
	require.NoError(t, err)

	view, err := f.recipes.Get(ctx, viewerOf(reader), recipe.ID)
	require.NoError(t, err)
	assert.True(t, view.IsFavorited)
	assert.True(t, view.IsInShoppingCart)
	assert.True(t, view.Author.IsSubscribed)

	anon, err := f.recipes.Get(ctx, Anonymous(), recipe.ID)
	require.NoError(t, err)
	assert.False(t, anon.IsFavorited)
	assert.False(t, anon.IsInShoppingCart)
	assert.False(t, anon.Author.IsSubscribed)
}

func TestListRecipesFilters(t *testing.T) {
	f := newRecipeFixture(t)
	other := createUser(t, f.db, "other")
	dinner := createTag(t, f.db, "dinner")
	relations := NewRelationService(f.db)
	ctx := context.Background()

	first := f.create(t, f.author, "First")
	second := f.create(t, other, "Second")
	in := f.input("Third", IngredientAmount{ID: f.milk.ID, Amount: 1})
	in.Tags = []uint{dinner.ID}
	third, err := f.recipes.Create(ctx, viewerOf(other), in)
	require.NoError(t, err)

	_, err = relations.AddFavorite(ctx, f.author.ID, second.ID)
	require.NoError(t, err)
	_, err = relations.AddToCart(ctx, f.author.ID, third.ID)
	require.NoError(t, err)

	ids := func(page *models.Page[models.RecipeView]) []uint {
		out := []uint{}
		for _, r := range page.Results {
			out = append(out, r.ID)
		}
		return out
	}

	testCases := []struct {
		name     string
		viewer   Viewer
		filter   RecipeFilter
		expected []uint
	}{
		{"newest first", Anonymous(), RecipeFilter{}, []uint{third.ID, second.ID, first.ID}},
		{"by author", Anonymous(), RecipeFilter{AuthorID: other.ID}, []uint{third.ID, second.ID}},
		{"by tag", Anonymous(), RecipeFilter{Tags: []string{"dinner"}}, []uint{third.ID}},
		{"any of tags", Anonymous(), RecipeFilter{Tags: []string{"dinner", "breakfast"}}, []uint{third.ID, second.ID, first.ID}},
		{"favorited", viewerOf(f.author), RecipeFilter{IsFavorited: true}, []uint{second.ID}},
		{"in cart", viewerOf(f.author), RecipeFilter{IsInShoppingCart: true}, []uint{third.ID}},
		{"favorited ignored for anonymous", Anonymous(), RecipeFilter{IsFavorited: true, IsInShoppingCart: true}, []uint{third.ID, second.ID, first.ID}},
		{"conjunction", viewerOf(f.author), RecipeFilter{AuthorID: other.ID, IsFavorited: true}, []uint{second.ID}},
		{"unknown tag", Anonymous(), RecipeFilter{Tags: []string{"nope"}}, []uint{}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.recipes.List(ctx, tt.viewer, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(page))
			assert.Equal(t, int64(len(tt.expected)), page.Count)
		})
	}

	page, err := f.recipes.List(ctx, viewerOf(f.author), RecipeFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Count)
	assert.Equal(t, []uint{first.ID}, ids(page))
}

func TestRecipeSummary(t *testing.T) {
	f := newRecipeFixture(t)
	recipe := f.create(t, f.author, "Porridge")

	summary, err := f.recipes.Summary(context.Background(), recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipeSummary{ID: recipe.ID, Name: "Porridge", CookingTime: 30}, *summary)

	_, err = f.recipes.Summary(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
