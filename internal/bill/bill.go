// Package bill holds the normalized bill model, its persistence, and the
// HTTP surface of the splitmaat service. The allocation math itself lives
// in the split package; this package feeds it normalized data.
package bill

import (
	"time"

	"github.com/splitmaat/splitmaat/internal/split"
)

// PlaceholderDescription replaces blank item descriptions during
// normalization.
const PlaceholderDescription = "Unnamed item"

// LineItem is one priced row of a normalized bill.
// Invariants after Normalize: Quantity >= 1, Rate >= 0, Description != "".
type LineItem struct {
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`     // per-unit price
	Quantity    int     `json:"quantity"` // units on this line
	// Amount is the line amount as extracted. It may disagree with
	// Rate*Quantity by extraction rounding; the calculator trusts
	// Rate*Quantity, never this field.
	Amount float64 `json:"amount"`
}

// Charge is a named signed adjustment printed on the bill but not
// itemized per line: service charge, SGST, CGST, round-off.
type Charge struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Bill is a normalized parsed bill. Item order is presentation order and
// the item index is the stable identity selections refer to.
type Bill struct {
	ID             string         `json:"id"`
	RestaurantName string         `json:"restaurant_name,omitempty"`
	Items          []LineItem     `json:"items"`
	Charges        []Charge       `json:"charges,omitempty"`
	// DeclaredTotal is the printed total when the extractor found one.
	// Nil means "no declared total", which is distinct from a declared
	// total that happens to equal the subtotal.
	DeclaredTotal *float64       `json:"declared_total,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	ContentType   string         `json:"content_type,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Subtotal is the sum over items of rate times quantity.
func (b *Bill) Subtotal() float64 {
	var sum float64
	for _, item := range b.Items {
		sum += item.Rate * float64(item.Quantity)
	}
	return sum
}

// UnallocatedAdjustment is the gap between the declared total and the
// computed subtotal: the aggregate of taxes, service charges, and rounding
// not broken out per line. It may be negative (a rounding-down bill).
// Without a declared total it falls back to the sum of the named charges.
func (b *Bill) UnallocatedAdjustment() float64 {
	if b.DeclaredTotal != nil {
		return *b.DeclaredTotal - b.Subtotal()
	}
	var sum float64
	for _, charge := range b.Charges {
		sum += charge.Amount
	}
	return sum
}

// SplitItems converts the bill's lines into the calculator's item type.
func (b *Bill) SplitItems() []split.Item {
	items := make([]split.Item, len(b.Items))
	for i, item := range b.Items {
		items[i] = split.Item{
			Description: item.Description,
			Rate:        item.Rate,
			Quantity:    item.Quantity,
		}
	}
	return items
}
