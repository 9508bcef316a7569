// Package pricing computes line-item and order-level prices. Pure functions,
// no I/O; every result is rounded to 2 decimal places.
package pricing

import (
	"math"

	"quickbite/internal/models"
)

// Round2 rounds to the nearest cent.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalcItemPrice prices one unit of a catalog item with the selected option
// set applied: base price plus the price deltas of the chosen size, add-ons
// and extras. Unknown option ids are ignored.
func CalcItemPrice(item *models.MenuItem, choice models.ItemChoice) float64 {
	base := item.Price

	if choice.SizeID != "" {
		for _, s := range item.Options.Sizes {
			if s.ID == choice.SizeID {
				base += s.PriceDelta
				break
			}
		}
	}

	for _, id := range choice.AddOnIDs {
		for _, a := range item.Options.AddOns {
			if a.ID == id {
				base += a.PriceDelta
				break
			}
		}
	}

	for _, id := range choice.ExtraIDs {
		for _, e := range item.Options.Extras {
			if e.ID == id {
				base += e.PriceDelta
				break
			}
		}
	}

	return Round2(base)
}

// CalcOrderSubtotal sums price × quantity over all line items.
func CalcOrderSubtotal(items []models.OrderItem) float64 {
	var total float64
	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		total += it.Price * float64(qty)
	}
	return Round2(total)
}

type OrderCosts struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
}

// CalculateOrderCosts aggregates line items into subtotal, tax, delivery fee
// and total. taxRate is a percentage (5 means 5%).
func CalculateOrderCosts(items []models.OrderItem, taxRate, deliveryFee float64) OrderCosts {
	subtotal := CalcOrderSubtotal(items)
	tax := Round2(subtotal * (taxRate / 100))
	total := Round2(subtotal + tax + deliveryFee)

	return OrderCosts{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Total:       total,
	}
}
