package domain

import (
	"time"
)

// Status represents the publication status of a product
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// KeyValue is a single row of technical data or a downloadable document
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CategoryOption is an entry of the brand-scoped category list
type CategoryOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductDraft is the in-progress editable record of a product.
// Numeric fields keep the raw text typed by the user; they are coerced when
// the payload is assembled.
type ProductDraft struct {
	ID               *int64 `json:"id,omitempty"`
	Name             string `json:"name"`
	ShortDescription string `json:"shortDescription"`
	Description      string `json:"description"`
	ExternalID       string `json:"externalId"`
	BrandID          string `json:"brandId"`
	CategoryID       string `json:"categoryId"`
	Price            string `json:"price"`
	MinimumPrice     string `json:"minimumPrice"`
	EcommercePrice   string `json:"ecommercePrice"`
	Cost             string `json:"cost"`
	Discount         string `json:"discount"`
	Stock            string `json:"stock"`
	Garanty          string `json:"garanty"`
	Color            string `json:"color"`
	Rentable         bool   `json:"rentable"`
	Status           Status `json:"status"`
}

// IsNew reports whether the draft has never been persisted
func (d ProductDraft) IsNew() bool {
	return d.ID == nil
}

// Product is the persisted product as returned by the catalog backend
type Product struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	ShortDescription string       `json:"shortDescription"`
	Description      string       `json:"description"`
	ExternalID       string       `json:"externalId"`
	BrandID          int64        `json:"brandId"`
	CategoryID       int64        `json:"categoryId"`
	Price            float64      `json:"price"`
	MinimumPrice     float64      `json:"minimumPrice"`
	EcommercePrice   float64      `json:"ecommercePrice"`
	Cost             float64      `json:"cost"`
	Discount         float64      `json:"discount"`
	Stock            int          `json:"stock"`
	Garanty          int          `json:"garanty"`
	Color            string       `json:"color"`
	Rentable         bool         `json:"rentable"`
	Status           Status       `json:"status"`
	Functionalities  []string     `json:"functionalities"`
	TechnicalData    []KeyValue   `json:"technicalData"`
	Downloads        []KeyValue   `json:"downloads"`
	Media            []MediaAsset `json:"media"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// ProductPayload is the body sent to the catalog backend on create or update
type ProductPayload struct {
	ID               *int64         `json:"id,omitempty"`
	Name             string         `json:"name"`
	ShortDescription string         `json:"shortDescription"`
	Description      string         `json:"description"`
	ExternalID       string         `json:"externalId"`
	BrandID          int64          `json:"brandId"`
	CategoryID       int64          `json:"categoryId"`
	Price            float64        `json:"price"`
	MinimumPrice     float64        `json:"minimumPrice"`
	EcommercePrice   float64        `json:"ecommercePrice"`
	Cost             float64        `json:"cost"`
	Discount         float64        `json:"discount"`
	Stock            int            `json:"stock"`
	Garanty          int            `json:"garanty"`
	Color            string         `json:"color"`
	Rentable         bool           `json:"rentable"`
	Status           Status         `json:"status"`
	Functionalities  []string       `json:"functionalities"`
	TechnicalData    []KeyValue     `json:"technicalData"`
	Downloads        []KeyValue     `json:"downloads"`
	Media            []MediaPayload `json:"media"`
	DeletedMediaIDs  []int64        `json:"deletedMediaIds,omitempty"`
	CreatedBy        string         `json:"createdBy,omitempty"`
	UpdatedBy        string         `json:"updatedBy,omitempty"`
}
