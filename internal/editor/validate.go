package editor

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("nonnegative", isNonNegative)
	validate.RegisterValidation("nonnegative_int", isNonNegativeInt)
	validate.RegisterValidation("entity_id", isEntityID)
	validate.RegisterStructValidation(categoryRequiredWithBrand, draftRules{})
}

// draftRules holds the checks that apply to every draft
type draftRules struct {
	Name       string `json:"name" validate:"required"`
	BrandID    string `json:"brandId" validate:"required,entity_id"`
	CategoryID string `json:"categoryId"`
	Stock      string `json:"stock" validate:"omitempty,nonnegative_int"`
	Garanty    string `json:"garanty" validate:"omitempty,nonnegative_int"`
}

// manualPricingRules holds the checks on independently typed prices
type manualPricingRules struct {
	Price          string `json:"price" validate:"required,nonnegative"`
	MinimumPrice   string `json:"minimumPrice" validate:"required,nonnegative"`
	EcommercePrice string `json:"ecommercePrice" validate:"required,nonnegative"`
	Cost           string `json:"cost" validate:"required,nonnegative"`
	Discount       string `json:"discount" validate:"required,nonnegative"`
}

func categoryRequiredWithBrand(sl validator.StructLevel) {
	rules := sl.Current().Interface().(draftRules)
	if strings.TrimSpace(rules.BrandID) == "" {
		return
	}
	if strings.TrimSpace(rules.CategoryID) == "" {
		sl.ReportError(rules.CategoryID, "categoryId", "CategoryID", "required", "")
		return
	}
	if _, err := parseID(rules.CategoryID); err != nil {
		sl.ReportError(rules.CategoryID, "categoryId", "CategoryID", "entity_id", "")
	}
}

func isNonNegative(fl validator.FieldLevel) bool {
	value, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return err == nil && !value.IsNegative()
}

func isNonNegativeInt(fl validator.FieldLevel) bool {
	value, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	return err == nil && value >= 0
}

func isEntityID(fl validator.FieldLevel) bool {
	_, err := parseID(fl.Field().String())
	return err == nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

// validateStruct runs the validator and flattens its errors
func validateStruct(v interface{}) ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, e := range fieldErrors {
		out = append(out, FieldError{Field: e.Field(), Message: errorMessage(e)})
	}
	return out
}

func errorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "nonnegative":
		return "Value must be a number greater than or equal to 0"
	case "nonnegative_int":
		return "Value must be a whole number greater than or equal to 0"
	case "entity_id":
		return "Select a valid option"
	default:
		return "Invalid value"
	}
}
