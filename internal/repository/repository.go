package repository

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no row matches the lookup
var ErrNotFound = errors.New("record not found")

// Scope narrows a query; gorm scopes compose directly
type Scope = func(*gorm.DB) *gorm.DB

// Repository provides the basic persistence capabilities for one entity type
type Repository[T any] interface {
	// FindByID loads a single row by primary key
	FindByID(ctx context.Context, id uint) (*T, error)
	// Save inserts the entity when its primary key is zero and updates it otherwise
	Save(ctx context.Context, entity *T) error
	// Delete removes the row with the given primary key and reports ErrNotFound when nothing was removed
	Delete(ctx context.Context, id uint) error
	// Query returns every row matched by the scopes, in scope order
	Query(ctx context.Context, scopes ...Scope) ([]T, error)
	// Count returns the number of rows matched by the scopes
	Count(ctx context.Context, scopes ...Scope) (int64, error)
	// Exists reports whether at least one row matches the scopes
	Exists(ctx context.Context, scopes ...Scope) (bool, error)
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) Repository[T]
}

type gormRepository[T any] struct {
	db *gorm.DB
}

// New creates a gorm-backed repository for T
func New[T any](db *gorm.DB) Repository[T] {
	return &gormRepository[T]{db: db}
}

func (r *gormRepository[T]) FindByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

func (r *gormRepository[T]) Save(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *gormRepository[T]) Delete(ctx context.Context, id uint) error {
	var entity T
	result := r.db.WithContext(ctx).Delete(&entity, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository[T]) Query(ctx context.Context, scopes ...Scope) ([]T, error) {
	var entities []T
	if err := r.db.WithContext(ctx).Scopes(scopes...).Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *gormRepository[T]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var count int64
	var entity T
	if err := r.db.WithContext(ctx).Model(&entity).Scopes(scopes...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *gormRepository[T]) Exists(ctx context.Context, scopes ...Scope) (bool, error) {
	count, err := r.Count(ctx, scopes...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository[T]) WithTx(tx *gorm.DB) Repository[T] {
	return &gormRepository[T]{db: tx}
}

// Where is a Scope for a single condition
func Where(query any, args ...any) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// OrderBy is a Scope for an ORDER BY clause
func OrderBy(value any) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(value)
	}
}

// Paginate limits the query to one page; page is 1-based
func Paginate(page, limit int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			return db
		}
		// pages past any reachable row clamp the offset instead of overflowing
		offset := math.MaxInt
		if page-1 <= math.MaxInt/limit {
			offset = (page - 1) * limit
		}
		return db.Offset(offset).Limit(limit)
	}
}
