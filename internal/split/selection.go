package split

// Selection maps an item index to the quantity one party claims of it.
// The item index is the stable identity for a line: items are never
// reordered after normalization.
type Selection map[int]int

// Set assigns a claimed quantity for an item. It returns a *RangeError if
// the index does not exist on the bill, the quantity is negative, or the
// quantity exceeds the units on the bill line. A failed Set leaves the
// selection unchanged. Setting zero removes the entry.
func (s Selection) Set(items []Item, index, quantity int) error {
	if index < 0 || index >= len(items) {
		return rangeErrorf("item index %d out of range (bill has %d items)", index, len(items))
	}
	if quantity < 0 {
		return rangeErrorf("claimed quantity %d for item %d cannot be negative", quantity, index)
	}
	if quantity > items[index].Quantity {
		return rangeErrorf("claimed quantity %d for item %d exceeds bill quantity %d", quantity, index, items[index].Quantity)
	}
	if quantity == 0 {
		delete(s, index)
		return nil
	}
	s[index] = quantity
	return nil
}

// Increment claims one more unit of an item. At the bill line's quantity
// ceiling it is a silent no-op, so a UI can keep a "+" control wired
// without handling an error on every tap.
func (s Selection) Increment(items []Item, index int) {
	if index < 0 || index >= len(items) {
		return
	}
	if s[index] >= items[index].Quantity {
		return
	}
	s[index]++
}

// Decrement releases one claimed unit of an item. A no-op at zero;
// entries that reach zero are removed.
func (s Selection) Decrement(index int) {
	if s[index] <= 1 {
		delete(s, index)
		return
	}
	s[index]--
}

// Subtotal sums claimed quantity times unit rate over all claimed items.
// Entries pointing outside the item list contribute nothing; validate
// catches those before any computation that must reject them.
func (s Selection) Subtotal(items []Item) float64 {
	var sum float64
	for index, quantity := range s {
		if index < 0 || index >= len(items) || quantity <= 0 {
			continue
		}
		sum += float64(quantity) * items[index].Rate
	}
	return sum
}

// validate checks every entry of the selection against the bill's items.
func (s Selection) validate(items []Item) error {
	for index, quantity := range s {
		if index < 0 || index >= len(items) {
			return rangeErrorf("item index %d out of range (bill has %d items)", index, len(items))
		}
		if quantity < 0 {
			return rangeErrorf("claimed quantity %d for item %d cannot be negative", quantity, index)
		}
		if quantity > items[index].Quantity {
			return rangeErrorf("claimed quantity %d for item %d exceeds bill quantity %d", quantity, index, items[index].Quantity)
		}
	}
	return nil
}
