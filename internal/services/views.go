package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"gorm.io/gorm"
)

// viewBuilder turns entities into read models relative to a viewer.
// Viewer flags are loaded in one query per relation for the whole batch.
type viewBuilder struct {
	db *gorm.DB
}

func (b *viewBuilder) recipes(ctx context.Context, viewer Viewer, recipes []models.Recipe) ([]models.RecipeView, error) {
	views := make([]models.RecipeView, 0, len(recipes))
	if len(recipes) == 0 {
		return views, nil
	}

	recipeIDs := make([]uint, 0, len(recipes))
	authorIDs := make([]uint, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	favorited, err := b.memberships(ctx, viewer, &models.Favorite{}, "recipe_id", recipeIDs)
	if err != nil {
		return nil, err
	}
	inCart, err := b.memberships(ctx, viewer, &models.CartItem{}, "recipe_id", recipeIDs)
	if err != nil {
		return nil, err
	}
	subscribed, err := b.memberships(ctx, viewer, &models.Subscription{}, "author_id", authorIDs)
	if err != nil {
		return nil, err
	}

	for _, r := range recipes {
		views = append(views, models.RecipeView{
			ID:               r.ID,
			Tags:             nonNilTags(r.Tags),
			Author:           userView(r.Author, subscribed[r.AuthorID]),
			Ingredients:      ingredientLines(r.Ingredients),
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
			PubDate:          r.PubDate,
		})
	}
	return views, nil
}

func (b *viewBuilder) users(ctx context.Context, viewer Viewer, users []models.User) ([]models.UserView, error) {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	subscribed, err := b.memberships(ctx, viewer, &models.Subscription{}, "author_id", ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u, subscribed[u.ID]))
	}
	return views, nil
}

// memberships returns the subset of targets related to the viewer through the
// relation table. Anonymous viewers have no memberships.
func (b *viewBuilder) memberships(ctx context.Context, viewer Viewer, relation any, column string, targets []uint) (map[uint]bool, error) {
	set := make(map[uint]bool)
	if viewer.IsAnonymous() || len(targets) == 0 {
		return set, nil
	}

	var ids []uint
	err := b.db.WithContext(ctx).Model(relation).
		Where("user_id = ?", viewer.UserID).
		Where(column+" IN ?", targets).
		Pluck(column, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer relations: %w", err)
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func userView(u models.User, subscribed bool) models.UserView {
	return models.UserView{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

func ingredientLines(lines []models.RecipeIngredient) []models.IngredientLineView {
	out := make([]models.IngredientLineView, 0, len(lines))
	for _, line := range lines {
		out = append(out, models.IngredientLineView{
			ID:              line.IngredientID,
			Name:            line.Ingredient.Name,
			MeasurementUnit: line.Ingredient.MeasurementUnit,
			Amount:          line.Amount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func nonNilTags(tags []models.Tag) []models.Tag {
	if tags == nil {
		return []models.Tag{}
	}
	return tags
}

func summarize(r models.Recipe) models.RecipeSummary {
	return models.RecipeSummary{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}
