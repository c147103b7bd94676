// Package split computes per-party shares of a restaurant bill.
//
// All functions are pure: they take the normalized bill lines, a party's
// claimed quantities, and a tip or charge policy, and return rounded
// monetary amounts. Nothing here touches storage, the network, or any
// mutable state, so callers can recompute on every selection change.
package split

import (
	"math"
	"sort"
)

// Item is one normalized bill line as the calculator sees it.
// Rate is the per-unit price and is the ground truth for splitting;
// an extractor-supplied line amount that disagrees with Rate*Quantity
// is ignored by this package.
type Item struct {
	Description string
	Rate        float64 // per-unit price, >= 0
	Quantity    int     // units on the bill line, >= 1
}

// Share is one party's computed liability in single-payer "my share" mode.
type Share struct {
	Subtotal float64 `json:"subtotal"`
	Tip      float64 `json:"tip"`
	Total    float64 `json:"total"`
}

// PartyShare is one party's computed liability when a bill's overall
// taxes and service charges are split proportionally across parties.
type PartyShare struct {
	Subtotal   float64 `json:"subtotal"`
	Adjustment float64 `json:"adjustment"`
	Total      float64 `json:"total"`
}

// Round2 rounds to the currency's minor unit (2 decimal places),
// half away from zero. Applying it twice equals applying it once.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ComputeShare computes one party's subtotal, tip, and total from its
// claimed quantities. An empty selection yields all zeros with no error.
// A negative tip percentage or a claim outside the bill's bounds returns
// a *RangeError.
func ComputeShare(items []Item, sel Selection, tipPercent float64) (Share, error) {
	if tipPercent < 0 {
		return Share{}, rangeErrorf("tip percentage %.2f cannot be negative", tipPercent)
	}
	if err := sel.validate(items); err != nil {
		return Share{}, err
	}

	subtotal := sel.Subtotal(items)
	tip := Round2(subtotal * tipPercent / 100)
	return Share{
		Subtotal: Round2(subtotal),
		Tip:      tip,
		Total:    Round2(subtotal + tip),
	}, nil
}

// AllocateAdjustment splits an unallocated adjustment (the gap between a
// bill's declared total and the sum of its lines: taxes, service charges,
// rounding) across parties proportionally to their claimed subtotals.
//
// The shares always sum to exactly Round2(adjustment): the split runs on
// integer cents and the leftover cents after truncation go to the parties
// with the largest fractional remainders. When nobody has claimed anything
// yet every share is zero.
func AllocateAdjustment(adjustment float64, subtotals map[string]float64) map[string]float64 {
	shares := make(map[string]float64, len(subtotals))
	var total float64
	for _, s := range subtotals {
		total += s
	}
	if total <= 0 {
		for party := range subtotals {
			shares[party] = 0
		}
		return shares
	}

	// Deterministic party order so remainder cents land the same way
	// on every recomputation.
	parties := make([]string, 0, len(subtotals))
	for party := range subtotals {
		parties = append(parties, party)
	}
	sort.Strings(parties)

	targetCents := int64(math.Round(adjustment * 100))
	cents := make(map[string]int64, len(parties))
	remainders := make([]string, len(parties))
	copy(remainders, parties)
	fraction := make(map[string]float64, len(parties))

	var assigned int64
	for _, party := range parties {
		exact := float64(targetCents) * subtotals[party] / total
		whole := int64(math.Trunc(exact))
		cents[party] = whole
		fraction[party] = math.Abs(exact - float64(whole))
		assigned += whole
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		return fraction[remainders[i]] > fraction[remainders[j]]
	})

	// Truncation always leaves |residual| < len(parties) cents, all with
	// the sign of the target.
	residual := targetCents - assigned
	step := int64(1)
	if residual < 0 {
		step = -1
	}
	for i := 0; residual != 0; i = (i + 1) % len(remainders) {
		cents[remainders[i]] += step
		residual -= step
	}

	for _, party := range parties {
		shares[party] = float64(cents[party]) / 100
	}
	return shares
}

// SplitBill computes every party's share of a bill whose overall taxes and
// charges (adjustment) are allocated proportionally to claimed subtotals.
// It rejects, with a *RangeError, any selection that claims outside the
// bill's bounds and any item whose aggregate claims across all parties
// exceed the units on the line. A negative adjustment never drives a
// party's total below zero.
func SplitBill(items []Item, adjustment float64, selections map[string]Selection) (map[string]PartyShare, error) {
	claimed := make([]int, len(items))
	for _, sel := range selections {
		if err := sel.validate(items); err != nil {
			return nil, err
		}
		for index, quantity := range sel {
			claimed[index] += quantity
		}
	}
	for index, quantity := range claimed {
		if quantity > items[index].Quantity {
			return nil, rangeErrorf("aggregate claims %d for item %d exceed bill quantity %d", quantity, index, items[index].Quantity)
		}
	}

	subtotals := make(map[string]float64, len(selections))
	for party, sel := range selections {
		subtotals[party] = sel.Subtotal(items)
	}
	adjustments := AllocateAdjustment(adjustment, subtotals)

	shares := make(map[string]PartyShare, len(selections))
	for party, subtotal := range subtotals {
		total := Round2(subtotal + adjustments[party])
		if total < 0 {
			total = 0
		}
		shares[party] = PartyShare{
			Subtotal:   Round2(subtotal),
			Adjustment: adjustments[party],
			Total:      total,
		}
	}
	return shares, nil
}
