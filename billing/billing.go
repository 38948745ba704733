// Package billing computes a table's bill from its order items.
package billing

import (
	"fmt"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Discount types
const (
	DiscountPercent = "percent"
	DiscountAmount  = "amount"
)

type Discount struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type BillInput struct {
	Items       []models.OrderItem `json:"items"`
	ServiceFee  bool               `json:"service_fee"`
	FeePercent  float64            `json:"fee_percent"`
	CoverCharge bool               `json:"cover_charge"`
	CoverPrice  float64            `json:"cover_price"`
	Capacity    int                `json:"capacity"`
	Discount    *Discount          `json:"discount,omitempty"`
}

type Bill struct {
	Subtotal float64 `json:"subtotal"`
	Fee      float64 `json:"fee"`
	Cover    float64 `json:"cover"`
	Gross    float64 `json:"gross"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// Subtotal sums unit price times quantity over active items only.
func Subtotal(items []models.OrderItem) float64 {
	var sum float64
	for _, it := range items {
		if it.Active() {
			sum += it.Subtotal()
		}
	}
	return utils.Round2(sum)
}

// Compute builds the bill. An amount discount is not clamped, so a discount
// larger than the gross value yields a negative total.
func Compute(in BillInput) (Bill, error) {
	var b Bill
	b.Subtotal = Subtotal(in.Items)
	if in.ServiceFee {
		b.Fee = utils.Round2(b.Subtotal * in.FeePercent / 100)
	}
	if in.CoverCharge {
		b.Cover = utils.Round2(in.CoverPrice * float64(in.Capacity))
	}
	b.Gross = utils.Round2(b.Subtotal + b.Fee + b.Cover)

	if in.Discount != nil {
		switch in.Discount.Type {
		case DiscountPercent:
			b.Discount = utils.Round2(b.Gross * in.Discount.Value / 100)
		case DiscountAmount:
			b.Discount = utils.Round2(in.Discount.Value)
		default:
			return Bill{}, fmt.Errorf("unknown discount type %q", in.Discount.Type)
		}
	}
	b.Total = utils.Round2(b.Gross - b.Discount)
	return b, nil
}

// ForTable fills the fee and cover settings from the restaurant.
func ForTable(r models.Restaurant, t models.Table, items []models.OrderItem, fee, cover bool, d *Discount) BillInput {
	return BillInput{
		Items:       items,
		ServiceFee:  fee,
		FeePercent:  r.ServiceFeePercent,
		CoverCharge: cover,
		CoverPrice:  r.CoverCharge,
		Capacity:    t.Capacity,
		Discount:    d,
	}
}
