package planner

import (
	"fmt"
	"strings"
)

// Category identifies a vendor cost category.
type Category string

const (
	CategoryVenue         Category = "venue"
	CategoryDecoration    Category = "decoration"
	CategoryCatering      Category = "catering"
	CategoryMakeup        Category = "makeup"
	CategoryPhotography   Category = "photography"
	CategoryMiscellaneous Category = "miscellaneous"
)

// Categories returns every known category in stable order.
func Categories() []Category {
	return []Category{
		CategoryVenue,
		CategoryDecoration,
		CategoryCatering,
		CategoryMakeup,
		CategoryPhotography,
		CategoryMiscellaneous,
	}
}

// ParseCategory normalizes and validates a category string.
func ParseCategory(value string) (Category, error) {
	candidate := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, cat := range Categories() {
		if cat == candidate {
			return cat, nil
		}
	}
	return "", invalidInput("category", value)
}

// DateFlexibility describes how loosely the couple has committed to a date.
type DateFlexibility string

const (
	FlexSpecificDate       DateFlexibility = "specific_date"
	FlexWithinThreeMonths  DateFlexibility = "within_3_months"
	FlexWithinSixMonths    DateFlexibility = "within_6_months"
	FlexWithinTwelveMonths DateFlexibility = "within_12_months"
)

// ParseFlexibility normalizes and validates a flexibility string.
func ParseFlexibility(value string) (DateFlexibility, error) {
	candidate := DateFlexibility(strings.ToLower(strings.TrimSpace(value)))
	switch candidate {
	case FlexSpecificDate, FlexWithinThreeMonths, FlexWithinSixMonths, FlexWithinTwelveMonths:
		return candidate, nil
	}
	return "", invalidInput("flexibility", value)
}

// BudgetBracket names a baseline single-day spend tier.
type BudgetBracket string

const (
	BracketBudget      BudgetBracket = "budget"
	BracketPremium     BudgetBracket = "premium"
	BracketLuxury      BudgetBracket = "luxury"
	BracketUltraLuxury BudgetBracket = "ultra_luxury"
)

// Brackets returns every known bracket in ascending spend order.
func Brackets() []BudgetBracket {
	return []BudgetBracket{BracketBudget, BracketPremium, BracketLuxury, BracketUltraLuxury}
}

// ParseBracket normalizes and validates a bracket string.
func ParseBracket(value string) (BudgetBracket, error) {
	candidate := BudgetBracket(strings.ToLower(strings.TrimSpace(value)))
	for _, b := range Brackets() {
		if b == candidate {
			return b, nil
		}
	}
	return "", invalidInput("bracket", value)
}

// Tier is the discrete confidence label used for badge coloring.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// InvalidInputError reports an out-of-range or unrecognized input field.
// The engines fail eagerly with this error and never coerce bad values.
type InvalidInputError struct {
	Field string
	Value any
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

func invalidInput(field string, value any) *InvalidInputError {
	return &InvalidInputError{Field: field, Value: value}
}
