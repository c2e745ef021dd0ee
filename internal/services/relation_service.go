package services

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationService manages the per-user membership sets: favorites, the
// shopping cart and subscriptions. Uniqueness of each pair is a storage
// constraint; a violation surfaces as ErrAlreadyExists.
type RelationService interface {
	AddFavorite(ctx context.Context, userID, recipeID uint) (*models.RecipeSummary, error)
	RemoveFavorite(ctx context.Context, userID, recipeID uint) error

	AddToCart(ctx context.Context, userID, recipeID uint) (*models.RecipeSummary, error)
	RemoveFromCart(ctx context.Context, userID, recipeID uint) error

	// Subscribe makes userID follow authorID and returns the author with up to
	// recipesLimit recipes (all of them when recipesLimit < 1)
	Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*models.AuthorView, error)
	Unsubscribe(ctx context.Context, userID, authorID uint) error
	Subscriptions(ctx context.Context, userID uint, page, limit, recipesLimit int) (*models.Page[models.AuthorView], error)
}

type relationService struct {
	db      *gorm.DB
	recipes repository.Repository[models.Recipe]
	users   repository.Repository[models.User]
}

// NewRelationService creates a new instance of RelationService
func NewRelationService(db *gorm.DB) RelationService {
	return &relationService{
		db:      db,
		recipes: repository.New[models.Recipe](db),
		users:   repository.New[models.User](db),
	}
}

func (s *relationService) AddFavorite(ctx context.Context, userID, recipeID uint) (*models.RecipeSummary, error) {
	return s.addRecipeMember(ctx, &models.Favorite{UserID: userID, RecipeID: recipeID}, "favorites", recipeID)
}

func (s *relationService) RemoveFavorite(ctx context.Context, userID, recipeID uint) error {
	return s.remove(ctx, &models.Favorite{}, "recipe_id", userID, recipeID, "favorite")
}

func (s *relationService) AddToCart(ctx context.Context, userID, recipeID uint) (*models.RecipeSummary, error) {
	return s.addRecipeMember(ctx, &models.CartItem{UserID: userID, RecipeID: recipeID}, "shopping cart", recipeID)
}

func (s *relationService) RemoveFromCart(ctx context.Context, userID, recipeID uint) error {
	return s.remove(ctx, &models.CartItem{}, "recipe_id", userID, recipeID, "shopping cart entry")
}

func (s *relationService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*models.AuthorView, error) {
	if userID == authorID {
		return nil, fmt.Errorf("user %d subscribing to themselves: %w", userID, ErrSelfReference)
	}
	author, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		return nil, translateRepoError(err, "user", authorID)
	}

	entry := &models.Subscription{UserID: userID, AuthorID: authorID}
	if err := s.insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("subscription to user %d: %w", authorID, err)
	}

	views, err := s.authorViews(ctx, []models.User{*author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *relationService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if userID == authorID {
		return fmt.Errorf("user %d unsubscribing from themselves: %w", userID, ErrSelfReference)
	}
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		return translateRepoError(err, "user", authorID)
	}
	return s.remove(ctx, &models.Subscription{}, "author_id", userID, authorID, "subscription")
}

func (s *relationService) Subscriptions(ctx context.Context, userID uint, page, limit, recipesLimit int) (*models.Page[models.AuthorView], error) {
	followed := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.User{}).
			Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
			Where("subscriptions.user_id = ?", userID)
	}

	var count int64
	if err := followed().Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var authors []models.User
	err := followed().
		Select("users.*").
		Order("subscriptions.id").
		Scopes(repository.Paginate(page, limit)).
		Find(&authors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	views, err := s.authorViews(ctx, authors, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.AuthorView]{Count: count, Results: views}, nil
}

// authorViews builds followed-author views; every author here is subscribed to by the viewer
func (s *relationService) authorViews(ctx context.Context, authors []models.User, recipesLimit int) ([]models.AuthorView, error) {
	views := make([]models.AuthorView, 0, len(authors))
	for _, author := range authors {
		byAuthor := repository.Where("author_id = ?", author.ID)

		count, err := s.recipes.Count(ctx, byAuthor)
		if err != nil {
			return nil, fmt.Errorf("failed to count recipes of user %d: %w", author.ID, err)
		}
		recipes, err := s.recipes.Query(ctx, byAuthor,
			repository.OrderBy("pub_date DESC, id DESC"),
			repository.Paginate(1, recipesLimit))
		if err != nil {
			return nil, fmt.Errorf("failed to load recipes of user %d: %w", author.ID, err)
		}

		summaries := make([]models.RecipeSummary, 0, len(recipes))
		for _, r := range recipes {
			summaries = append(summaries, summarize(r))
		}
		views = append(views, models.AuthorView{
			UserView:     userView(author, true),
			Recipes:      summaries,
			RecipesCount: count,
		})
	}
	return views, nil
}

func (s *relationService) addRecipeMember(ctx context.Context, entry any, set string, recipeID uint) (*models.RecipeSummary, error) {
	recipe, err := s.recipes.FindByID(ctx, recipeID)
	if err != nil {
		return nil, translateRepoError(err, "recipe", recipeID)
	}
	if err := s.insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("recipe %d in %s: %w", recipeID, set, err)
	}
	summary := summarize(*recipe)
	return &summary, nil
}

// insert attempts the write and lets the unique index decide on duplicates
func (s *relationService) insert(ctx context.Context, entry any) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error
	switch {
	case err == nil:
		return nil
	case database.IsDuplicateKey(err):
		return ErrAlreadyExists
	case database.IsForeignKeyViolation(err):
		return ErrNotFound
	default:
		return err
	}
}

func (s *relationService) remove(ctx context.Context, model any, targetColumn string, userID, targetID uint, what string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND "+targetColumn+" = ?", userID, targetID).
		Delete(model)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(what, targetID)
	}
	return nil
}
