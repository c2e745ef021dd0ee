package models

import (
	"strings"

	"gorm.io/gorm"
)

// Ingredient is a catalog entry; (name, measurement_unit) is unique
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit" json:"name"`
	MeasurementUnit string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
	// SearchName holds the Unicode-lowercased name so LIKE matching is
	// case-insensitive on every driver, including SQLite.
	SearchName string `gorm:"size:200;index" json:"-"`
}

// BeforeSave keeps SearchName in sync with Name
func (i *Ingredient) BeforeSave(tx *gorm.DB) error {
	i.SearchName = strings.ToLower(i.Name)
	return nil
}

// Tag labels recipes; created by staff and referenced, never owned, by recipes
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Color string `gorm:"size:7;not null;default:'#FF0000'" json:"color"`
	Slug  string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
}
