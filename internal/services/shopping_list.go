package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"gorm.io/gorm"
)

// ShoppingListService aggregates the ingredients of every recipe in a user's cart
type ShoppingListService interface {
	// ShoppingList sums amounts per ingredient across the cart, ordered by
	// ingredient name. An empty cart yields an empty list.
	ShoppingList(ctx context.Context, userID uint) ([]models.ShoppingListItem, error)
}

type shoppingListService struct {
	db *gorm.DB
}

// NewShoppingListService creates a new instance of ShoppingListService
func NewShoppingListService(db *gorm.DB) ShoppingListService {
	return &shoppingListService{db: db}
}

func (s *shoppingListService) ShoppingList(ctx context.Context, userID uint) ([]models.ShoppingListItem, error) {
	items := []models.ShoppingListItem{}
	err := s.db.WithContext(ctx).
		Table("recipe_ingredients").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total_amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Joins("JOIN shopping_cart_items ON shopping_cart_items.recipe_id = recipe_ingredients.recipe_id").
		Where("shopping_cart_items.user_id = ?", userID).
		Group("ingredients.id, ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name, ingredients.id").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shopping list for user %d: %w", userID, err)
	}
	return items, nil
}

// RenderShoppingList formats the list as the plain-text download
func RenderShoppingList(owner string, items []models.ShoppingListItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shopping list for: %s\n\n", owner)
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (%s) - %d\n", item.Name, item.MeasurementUnit, item.TotalAmount)
	}
	return b.String()
}
