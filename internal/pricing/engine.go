// Package pricing computes the final sale price of a product for a customer
// price category: at most one tier override followed by at most one best-value
// discount rule. The computation is pure and safe for concurrent use.
package pricing

import "time"

// Resolve returns the final price for a product with the given base price,
// tiers and rules, evaluated for priceCategoryID at the given time. An empty
// priceCategoryID matches no tier and only rules without a category.
//
// The result is never negative.
func Resolve(basePrice float64, tiers []Tier, rules []Rule, priceCategoryID string, now time.Time) float64 {
	price := basePrice

	if priceCategoryID != "" {
		for _, t := range tiers {
			if t.PriceCategoryID == priceCategoryID {
				price = t.Price
				break
			}
		}
	}

	if best, ok := bestRule(rules, priceCategoryID, now); ok {
		switch best.Type {
		case DiscountPercentage:
			price -= price * best.Value / 100
		case DiscountFixed:
			price -= best.Value
		}
	}

	if price < 0 {
		return 0
	}
	return price
}

// bestRule selects the qualifying rule with the numerically largest discount
// value. Percentage and fixed values are compared raw, mixing units; that is
// how the rules have always been ranked and stored data depends on it.
func bestRule(rules []Rule, priceCategoryID string, now time.Time) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if r.PriceCategoryID != nil && *r.PriceCategoryID != priceCategoryID {
			continue
		}
		if r.StartsAt != nil && r.StartsAt.After(now) {
			continue
		}
		if !found || r.Value > best.Value {
			best = r
			found = true
		}
	}
	return best, found
}
