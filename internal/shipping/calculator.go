// Package shipping quotes delivery cost from destination zone and parcel
// weight. Rates are a static table; couriers are invoiced out of band.
package shipping

import (
	"errors"
	"math"
	"strings"
)

var ErrUnknownDestination = errors.New("unknown shipping destination")

type rate struct {
	base  float64
	perKg float64
}

// Zone keys are lowercase destination names as submitted at checkout.
var rates = map[string]rate{
	"local":         {base: 5, perKg: 0.5},
	"domestic":      {base: 9, perKg: 1.2},
	"eu":            {base: 15, perKg: 2.5},
	"international": {base: 25, perKg: 4},
}

type Quote struct {
	Destination string  `json:"destination"`
	WeightGrams int     `json:"weight_grams"`
	Cost        float64 `json:"cost"`
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate returns the delivery cost for the given destination and total
// parcel weight. Weight is billed per started kilogram with a one-kilogram
// minimum.
func (c *Calculator) Calculate(destination string, weightGrams int) (Quote, error) {
	r, ok := rates[strings.ToLower(strings.TrimSpace(destination))]
	if !ok {
		return Quote{}, ErrUnknownDestination
	}

	kg := math.Ceil(float64(weightGrams) / 1000)
	if kg < 1 {
		kg = 1
	}

	return Quote{
		Destination: strings.ToLower(strings.TrimSpace(destination)),
		WeightGrams: weightGrams,
		Cost:        r.base + r.perKg*kg,
	}, nil
}
