package models

import (
	"time"
)

// Recipe is the aggregate root owning its ingredient lines.
// (author_id, name) is unique: an author cannot publish two recipes with the same name.
type Recipe struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	AuthorID    uint               `gorm:"not null;uniqueIndex:idx_recipe_author_name" json:"author_id"`
	Author      User               `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Name        string             `gorm:"size:200;not null;uniqueIndex:idx_recipe_author_name" json:"name"`
	Text        string             `gorm:"type:text;not null" json:"text"`
	Image       string             `gorm:"size:500" json:"image"`
	CookingTime int                `gorm:"not null" json:"cooking_time"`
	PubDate     time.Time          `gorm:"autoCreateTime;index" json:"pub_date"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE;" json:"-"`
	Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE;" json:"-"`
}

// RecipeIngredient is one ingredient line of a recipe, identified by (recipe, ingredient)
type RecipeIngredient struct {
	RecipeID     uint       `gorm:"primaryKey;autoIncrement:false"`
	IngredientID uint       `gorm:"primaryKey;autoIncrement:false"`
	Ingredient   Ingredient `gorm:"constraint:OnDelete:CASCADE;"`
	Amount       int        `gorm:"not null"`
}

func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// RecipeTag is the join row between a recipe and a tag
type RecipeTag struct {
	RecipeID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID    uint `gorm:"primaryKey;autoIncrement:false"`
}

func (RecipeTag) TableName() string {
	return "recipe_tags"
}
