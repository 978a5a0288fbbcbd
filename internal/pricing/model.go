package pricing

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED_DISCOUNT"
)

// Tier is a full price override for customers in a specific external price
// category. Tiers are evaluated in the order they are supplied; the repository
// orders them by (position, id) so the first match is stable.
type Tier struct {
	PriceCategoryID string
	Price           float64
}

// Rule is a promotional discount layered on top of the tier-resolved price.
// A nil PriceCategoryID means the rule applies to every category.
type Rule struct {
	PriceCategoryID *string
	Type            DiscountType
	Value           float64
	Active          bool
	StartsAt        *time.Time
}
