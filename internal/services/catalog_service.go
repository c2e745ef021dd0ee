package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagInput is the payload for creating a tag; Slug is derived from Name when empty
type TagInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Color string `json:"color" validate:"required,hexcolor"`
	Slug  string `json:"slug" validate:"omitempty,max=200,slug"`
}

// IngredientInput is the payload for creating or importing an ingredient
type IngredientInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,max=200"`
}

// ImportResult summarises a bulk ingredient import
type ImportResult struct {
	Created int64 `json:"created"`
	Skipped int64 `json:"skipped"`
}

// CatalogService manages tags and ingredients, the reference data recipes point at
type CatalogService interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
	CreateTag(ctx context.Context, input TagInput) (*models.Tag, error)

	GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error)
	// SearchIngredients matches name case-insensitively. Names starting with
	// the query come first, then names only containing it; each group is
	// ordered by name. An empty query lists the whole catalog.
	SearchIngredients(ctx context.Context, name string) ([]models.Ingredient, error)
	CreateIngredient(ctx context.Context, input IngredientInput) (*models.Ingredient, error)
	// ImportIngredients inserts rows not yet in the catalog, keyed by
	// (name, measurement_unit). Re-running it with the same rows creates nothing.
	ImportIngredients(ctx context.Context, rows []IngredientInput) (ImportResult, error)
}

type catalogService struct {
	db          *gorm.DB
	tags        repository.Repository[models.Tag]
	ingredients repository.Repository[models.Ingredient]
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(db *gorm.DB) CatalogService {
	return &catalogService{
		db:          db,
		tags:        repository.New[models.Tag](db),
		ingredients: repository.New[models.Ingredient](db),
	}
}

func (s *catalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.tags.Query(ctx, repository.OrderBy("id"))
}

func (s *catalogService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "tag", id)
	}
	return tag, nil
}

func (s *catalogService) CreateTag(ctx context.Context, input TagInput) (*models.Tag, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(input.Slug)
	if input.Slug == "" {
		input.Slug = slugify(input.Name)
	}

	verr := validateStruct(input)
	if input.Slug == "" {
		verr.Add("slug", "cannot be derived from the name, provide one")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	tag := &models.Tag{Name: input.Name, Color: strings.ToUpper(input.Color), Slug: input.Slug}
	if err := s.tags.Save(ctx, tag); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("tag %q: %w", input.Name, ErrAlreadyExists)
		}
		return nil, err
	}
	return tag, nil
}

func (s *catalogService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	ingredient, err := s.ingredients.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "ingredient", id)
	}
	return ingredient, nil
}

func (s *catalogService) SearchIngredients(ctx context.Context, name string) ([]models.Ingredient, error) {
	byName := repository.OrderBy("search_name, name, id")

	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return s.ingredients.Query(ctx, byName)
	}

	prefix := escapeLike(query) + "%"
	contains := "%" + escapeLike(query) + "%"

	startsWith, err := s.ingredients.Query(ctx,
		repository.Where(`search_name LIKE ? ESCAPE '\'`, prefix), byName)
	if err != nil {
		return nil, fmt.Errorf("failed to search ingredients by prefix: %w", err)
	}
	within, err := s.ingredients.Query(ctx,
		repository.Where(`search_name LIKE ? ESCAPE '\'`, contains),
		repository.Where(`search_name NOT LIKE ? ESCAPE '\'`, prefix), byName)
	if err != nil {
		return nil, fmt.Errorf("failed to search ingredients by substring: %w", err)
	}
	return append(startsWith, within...), nil
}

func (s *catalogService) CreateIngredient(ctx context.Context, input IngredientInput) (*models.Ingredient, error) {
	input = input.normalized()
	if err := validateStruct(input).OrNil(); err != nil {
		return nil, err
	}

	ingredient := &models.Ingredient{Name: input.Name, MeasurementUnit: input.MeasurementUnit}
	if err := s.ingredients.Save(ctx, ingredient); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("ingredient %q (%s): %w", input.Name, input.MeasurementUnit, ErrAlreadyExists)
		}
		return nil, err
	}
	return ingredient, nil
}

func (s *catalogService) ImportIngredients(ctx context.Context, rows []IngredientInput) (ImportResult, error) {
	verr := &ValidationError{}
	seen := make(map[IngredientInput]bool, len(rows))
	batch := make([]models.Ingredient, 0, len(rows))

	for i, row := range rows {
		row = row.normalized()
		if rowErr := validateStruct(row); rowErr.OrNil() != nil {
			for field, msg := range rowErr.Fields {
				verr.Add(fmt.Sprintf("rows[%d].%s", i, field), msg)
			}
			continue
		}
		if seen[row] {
			continue
		}
		seen[row] = true
		batch = append(batch, models.Ingredient{Name: row.Name, MeasurementUnit: row.MeasurementUnit})
	}
	if err := verr.OrNil(); err != nil {
		return ImportResult{}, err
	}
	if len(batch) == 0 {
		return ImportResult{Skipped: int64(len(rows))}, nil
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "measurement_unit"}},
			DoNothing: true,
		}).
		CreateInBatches(&batch, 500)
	if result.Error != nil {
		return ImportResult{}, fmt.Errorf("failed to import ingredients: %w", result.Error)
	}

	return ImportResult{
		Created: result.RowsAffected,
		Skipped: int64(len(rows)) - result.RowsAffected,
	}, nil
}

func (in IngredientInput) normalized() IngredientInput {
	return IngredientInput{
		Name:            strings.TrimSpace(in.Name),
		MeasurementUnit: strings.TrimSpace(in.MeasurementUnit),
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
