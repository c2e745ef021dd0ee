package models

import (
	"time"
)

// Favorite marks a recipe as favorited by a user; (user, recipe) is unique
type Favorite struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index"`
	User      User      `gorm:"constraint:OnDelete:CASCADE;"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time
}

func (Favorite) TableName() string {
	return "favorites"
}

// CartItem puts a recipe into a user's shopping cart; (user, recipe) is unique
type CartItem struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index"`
	User      User      `gorm:"constraint:OnDelete:CASCADE;"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time
}

func (CartItem) TableName() string {
	return "shopping_cart_items"
}

// Subscription records that a user follows an author; (user, author) is unique
// and a user never follows themselves.
type Subscription struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_subscription_user_author"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_subscription_user_author;index;check:chk_subscription_not_self,user_id <> author_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time
}

func (Subscription) TableName() string {
	return "subscriptions"
}
