package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
)

// CatalogClient talks to the product catalog endpoints
type CatalogClient struct {
	client *Client
}

// NewCatalogClient creates a catalog client
func NewCatalogClient(client *Client) *CatalogClient {
	return &CatalogClient{client: client}
}

// CreateProduct stores a new product
func (c *CatalogClient) CreateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error) {
	var product domain.Product
	if err := c.client.doJSON(ctx, http.MethodPost, "/products", payload, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces an existing product
func (c *CatalogClient) UpdateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error) {
	if payload.ID == nil {
		return nil, errors.New("failed to update product: id is required")
	}
	var product domain.Product
	path := "/products/" + strconv.FormatInt(*payload.ID, 10)
	if err := c.client.doJSON(ctx, http.MethodPut, path, payload, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByID loads a product
func (c *CatalogClient) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if err := c.client.doJSON(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (d categoryDTO) option() domain.CategoryOption {
	return domain.CategoryOption{ID: strconv.FormatInt(d.ID, 10), Name: d.Name}
}

// CategoriesByBrand lists the categories offered for a brand
func (c *CatalogClient) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	var categories []categoryDTO
	path := "/brands/" + url.PathEscape(brandID) + "/categories"
	if err := c.client.doJSON(ctx, http.MethodGet, path, nil, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	options := make([]domain.CategoryOption, 0, len(categories))
	for _, category := range categories {
		options = append(options, category.option())
	}
	return options, nil
}

// CategoryByID describes a single category
func (c *CatalogClient) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	var category categoryDTO
	if err := c.client.doJSON(ctx, http.MethodGet, "/categories/"+url.PathEscape(id), nil, &category); err != nil {
		return domain.CategoryOption{}, fmt.Errorf("failed to get category: %w", err)
	}
	return category.option(), nil
}
