package catalog

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/scooterparts/backend/internal/pricing"
)

type Category struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// PriceTier is a stored per-category price override row. Position controls
// the first-match-wins order when a category appears on several tiers.
type PriceTier struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	PriceCategoryID string    `json:"price_category_id"`
	Price           float64   `json:"price"`
	Position        int       `json:"position"`
}

type PriceRule struct {
	ID              uuid.UUID            `json:"id"`
	ProductID       uuid.UUID            `json:"product_id"`
	PriceCategoryID *string              `json:"price_category_id,omitempty"`
	DiscountType    pricing.DiscountType `json:"discount_type"`
	DiscountValue   float64              `json:"discount_value"`
	Active          bool                 `json:"active"`
	StartsAt        *time.Time           `json:"starts_at,omitempty"`
}

type Product struct {
	ID          uuid.UUID   `json:"id"`
	SKU         string      `json:"sku"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Brand       string      `json:"brand"`
	BasePrice   float64     `json:"base_price"`
	Stock       int         `json:"stock"`
	WeightGrams int         `json:"weight_grams"`
	CategoryID  *uuid.UUID  `json:"category_id,omitempty"`
	ImagePath   string      `json:"image_path,omitempty"`
	Active      bool        `json:"active"`
	Tiers       []PriceTier `json:"tiers,omitempty"`
	Rules       []PriceRule `json:"rules,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// View is a product augmented with its resolved sale price. FinalPrice and
// Price carry the same value; the storefront historically reads both.
type View struct {
	Product
	FinalPrice float64 `json:"final_price"`
	Price      float64 `json:"price"`
}

func (p *Product) pricingTiers() []pricing.Tier {
	tiers := make([]pricing.Tier, 0, len(p.Tiers))
	for _, t := range p.Tiers {
		tiers = append(tiers, pricing.Tier{PriceCategoryID: t.PriceCategoryID, Price: t.Price})
	}
	return tiers
}

func (p *Product) pricingRules() []pricing.Rule {
	rules := make([]pricing.Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, pricing.Rule{
			PriceCategoryID: r.PriceCategoryID,
			Type:            r.DiscountType,
			Value:           r.DiscountValue,
			Active:          r.Active,
			StartsAt:        r.StartsAt,
		})
	}
	return rules
}
