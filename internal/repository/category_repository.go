package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCategoryTTL bounds how stale a cached category list may get
const DefaultCategoryTTL = 5 * time.Minute

const keyPrefix = "editor:categories"

// CategorySource fetches categories from the catalog service
type CategorySource interface {
	CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error)
	CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error)
}

// CategoryRepository serves categories from redis, falling back to the catalog
type CategoryRepository interface {
	CategorySource
	Invalidate(ctx context.Context, brandID string) error
}

type categoryRepository struct {
	client   *redis.Client
	upstream CategorySource
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCategoryRepository creates a read-through category cache
func NewCategoryRepository(client *redis.Client, upstream CategorySource, ttl time.Duration, logger *zap.Logger) CategoryRepository {
	if ttl <= 0 {
		ttl = DefaultCategoryTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &categoryRepository{client: client, upstream: upstream, ttl: ttl, logger: logger}
}

// CategoriesByBrand returns the brand's categories. Fetch failures are never cached.
func (r *categoryRepository) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	key := brandKey(brandID)

	var options []domain.CategoryOption
	if r.get(ctx, key, &options) {
		return options, nil
	}

	options, err := r.upstream.CategoriesByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	r.queue(ctx, pipe, key, options)
	for _, option := range options {
		r.queue(ctx, pipe, categoryKey(option.ID), option)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("Failed to cache categories", zap.String("brand_id", brandID), zap.Error(err))
	}
	return options, nil
}

// CategoryByID returns a single category
func (r *categoryRepository) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	key := categoryKey(id)

	var option domain.CategoryOption
	if r.get(ctx, key, &option) {
		return option, nil
	}

	option, err := r.upstream.CategoryByID(ctx, id)
	if err != nil {
		return domain.CategoryOption{}, err
	}

	pipe := r.client.Pipeline()
	r.queue(ctx, pipe, key, option)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("Failed to cache category", zap.String("category_id", id), zap.Error(err))
	}
	return option, nil
}

// Invalidate drops the cached list of a brand
func (r *categoryRepository) Invalidate(ctx context.Context, brandID string) error {
	if err := r.client.Del(ctx, brandKey(brandID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate categories: %w", err)
	}
	return nil
}

// get reports whether key was found and decoded into out
func (r *categoryRepository) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Category cache unavailable", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		r.logger.Warn("Discarding corrupt category cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *categoryRepository) queue(ctx context.Context, pipe redis.Pipeliner, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	pipe.Set(ctx, key, raw, r.ttl)
}

func brandKey(brandID string) string {
	return fmt.Sprintf("%s:brand:%s", keyPrefix, brandID)
}

func categoryKey(id string) string {
	return fmt.Sprintf("%s:id:%s", keyPrefix, id)
}
