package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/pricing"

	"go.uber.org/zap"
)

// Field names accepted by UpdateField; they match the draft's JSON names
const (
	FieldName             = "name"
	FieldShortDescription = "shortDescription"
	FieldDescription      = "description"
	FieldExternalID       = "externalId"
	FieldBrandID          = "brandId"
	FieldCategoryID       = "categoryId"
	FieldPrice            = "price"
	FieldMinimumPrice     = "minimumPrice"
	FieldEcommercePrice   = "ecommercePrice"
	FieldCost             = "cost"
	FieldDiscount         = "discount"
	FieldStock            = "stock"
	FieldGaranty          = "garanty"
	FieldColor            = "color"
	FieldRentable         = "rentable"
	FieldStatus           = "status"
)

// UpdateField sets a single draft field from its raw form value. Changing the
// cost re-derives price and discount in derived pricing mode; changing the
// brand reloads the category list and may clear the selected category.
func (e *Engine) UpdateField(ctx context.Context, field, value string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	if field == FieldBrandID {
		e.draft.BrandID = strings.TrimSpace(value)
		e.mu.Unlock()
		e.refreshCategories(ctx)
		return nil
	}
	defer e.mu.Unlock()

	d := &e.draft
	switch field {
	case FieldName:
		d.Name = value
	case FieldShortDescription:
		d.ShortDescription = value
	case FieldDescription:
		d.Description = value
	case FieldExternalID:
		d.ExternalID = value
	case FieldCategoryID:
		d.CategoryID = strings.TrimSpace(value)
	case FieldColor:
		d.Color = value
	case FieldMinimumPrice:
		d.MinimumPrice = value
	case FieldEcommercePrice:
		d.EcommercePrice = value
	case FieldStock:
		d.Stock = value
	case FieldGaranty:
		d.Garanty = value
	case FieldCost:
		d.Cost = value
		if e.pricing == PricingDerived {
			e.applyQuote(pricing.DeriveRaw(value))
		}
	case FieldPrice, FieldDiscount:
		if e.pricing == PricingDerived {
			return fmt.Errorf("%w: %s", ErrDerivedField, field)
		}
		if field == FieldPrice {
			d.Price = value
		} else {
			d.Discount = value
		}
	case FieldRentable:
		rentable, err := strconv.ParseBool(strings.TrimSpace(value))
		d.Rentable = err == nil && rentable
	case FieldStatus:
		status := domain.Status(strings.ToUpper(strings.TrimSpace(value)))
		if !status.Valid() {
			return fmt.Errorf("%w: status %q must be %s or %s", ErrInvalidValue, value, domain.StatusActive, domain.StatusInactive)
		}
		d.Status = status
	default:
		e.logger.Debug("Rejected unknown field", zap.String("field", field))
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}
