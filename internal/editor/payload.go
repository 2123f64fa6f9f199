package editor

import (
	"strings"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/pricing"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/staging"
)

// buildPayload converts the validated draft into the catalog's wire form.
// Blank rows are dropped and numeric text is coerced, never rejected.
func (e *Engine) buildPayload(commit staging.MediaCommit) domain.ProductPayload {
	d := e.draft
	brandID, _ := parseID(d.BrandID)
	categoryID, _ := parseID(d.CategoryID)

	payload := domain.ProductPayload{
		ID:               d.ID,
		Name:             strings.TrimSpace(d.Name),
		ShortDescription: d.ShortDescription,
		Description:      d.Description,
		ExternalID:       strings.TrimSpace(d.ExternalID),
		BrandID:          brandID,
		CategoryID:       categoryID,
		MinimumPrice:     pricing.Float(pricing.Coerce(d.MinimumPrice)),
		EcommercePrice:   pricing.Float(pricing.Coerce(d.EcommercePrice)),
		Cost:             pricing.Float(pricing.Coerce(d.Cost)),
		Stock:            pricing.CoerceInt(d.Stock),
		Garanty:          pricing.CoerceInt(d.Garanty),
		Color:            d.Color,
		Rentable:         d.Rentable,
		Status:           d.Status,
		Functionalities:  e.functionalities.Filter(notBlank),
		TechnicalData:    e.technicalData.Filter(completeRow),
		Downloads:        e.downloads.Filter(completeRow),
		Media:            commit.Media,
	}

	if e.pricing == PricingDerived {
		quote := pricing.DeriveRaw(d.Cost)
		payload.Price = pricing.Float(quote.Price)
		payload.Discount = pricing.Float(quote.Discount)
	} else {
		payload.Price = pricing.Float(pricing.Coerce(d.Price))
		payload.Discount = pricing.Float(pricing.Coerce(d.Discount))
	}

	actor := e.deps.Actor.ActorID()
	if d.IsNew() {
		payload.CreatedBy = actor
	} else {
		payload.UpdatedBy = actor
		payload.DeletedMediaIDs = commit.Deleted
	}
	return payload
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

func completeRow(row domain.KeyValue) bool {
	return strings.TrimSpace(row.Key) != "" && strings.TrimSpace(row.Value) != ""
}
