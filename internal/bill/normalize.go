package bill

import (
	"errors"
	"strings"

	"github.com/splitmaat/splitmaat/internal/scanning"
)

// ErrUnusablePayload means the extraction payload could not be shaped into
// a bill at all. Single malformed items never cause it; they are repaired
// in place.
var ErrUnusablePayload = errors.New("extraction payload is unusable")

// Normalize shapes whatever the extractor returned into the bill model's
// invariants. Repairs are local and best-effort: a blank description gets
// a placeholder, a missing or non-positive quantity becomes 1, a missing
// or negative rate becomes 0. The whole bill is rejected only when there
// is no items sequence to work from.
func Normalize(raw *scanning.BillData) (*Bill, error) {
	if raw == nil || raw.Items == nil {
		return nil, ErrUnusablePayload
	}

	bill := &Bill{
		Items: make([]LineItem, 0, len(raw.Items)),
	}

	for _, rawItem := range raw.Items {
		item := LineItem{
			Description: strings.TrimSpace(rawItem.Description),
			Quantity:    1,
		}
		if item.Description == "" {
			item.Description = PlaceholderDescription
		}
		if qty, ok := rawItem.Quantity.Float(); ok && int(qty) >= 1 {
			item.Quantity = int(qty)
		}
		if rate, ok := rawItem.Rate.Float(); ok && rate >= 0 {
			item.Rate = rate
		}
		if amount, ok := rawItem.Amount.Float(); ok && amount >= 0 {
			item.Amount = amount
		}
		bill.Items = append(bill.Items, item)
	}

	bill.Charges = namedCharges(raw)

	// net_amount is the printed amount payable after charges; prefer it
	// over total_amount, which many bills print before round-off.
	if net, ok := raw.NetAmount.Float(); ok {
		bill.DeclaredTotal = &net
	} else if total, ok := raw.TotalAmount.Float(); ok {
		bill.DeclaredTotal = &total
	}

	if len(raw.Extra) > 0 {
		bill.Extra = raw.Extra
		if name, ok := raw.Extra["restaurant_name"].(string); ok {
			bill.RestaurantName = strings.TrimSpace(name)
		}
	}

	return bill, nil
}

func namedCharges(raw *scanning.BillData) []Charge {
	var charges []Charge
	add := func(label string, n scanning.Number) {
		if amount, ok := n.Float(); ok {
			charges = append(charges, Charge{Label: label, Amount: amount})
		}
	}
	add("Service charge @10%", raw.ServiceCharge)
	add("SGST @2.5%", raw.StateGST)
	add("CGST @2.5%", raw.CentralGST)
	add("Round off", raw.RoundOff)
	return charges
}
