package scanning

import (
	"strconv"
	"strings"
)

// BillItem is one line item as extracted from a bill image. Every field is
// untrusted: quantities and rates may be absent, null, zero, negative, or
// formatted as strings depending on what the model produced.
type BillItem struct {
	Description string `json:"description"`
	Quantity    Number `json:"quantity"`
	Rate        Number `json:"rate"`
	Amount      Number `json:"amount"`
}

// BillData is the raw extraction payload for a restaurant bill. Top-level
// fields mirror what Indian restaurant bills commonly print: a service
// charge, state and central GST lines, a rounding correction, and the net
// amount after all of them. Anything else the model returns (restaurant
// name, bill number, date, table, covers) passes through in Extra.
type BillData struct {
	Items         []BillItem     `json:"items"`
	TotalAmount   Number         `json:"total_amount"`
	ServiceCharge Number         `json:"serc_at_10_percent"`
	StateGST      Number         `json:"state_gst_at_2_5_percent"`
	CentralGST    Number         `json:"central_gst_at_2_5_percent"`
	RoundOff      Number         `json:"round_off"`
	NetAmount     Number         `json:"net_amount"`
	Extra         map[string]any `json:"-"`
}

// Scanner defines the interface for bill extraction backends.
type Scanner interface {
	// ScanBill analyzes a bill image/PDF and extracts line items and totals
	ScanBill(imageData []byte, contentType string) (*BillData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Number is a monetary or count field that tolerates the model emitting a
// JSON number, a numeric string, null, or garbage. Anything unparseable
// decodes as absent rather than failing the whole payload.
type Number struct {
	value   float64
	present bool
}

// Float returns the numeric value and whether one was present.
func (n Number) Float() (float64, bool) {
	return n.value, n.present
}

// NumberOf builds a present Number, for tests and hand-built payloads.
func NumberOf(v float64) Number {
	return Number{value: v, present: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.value = v
	n.present = true
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.present {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.value, 'f', -1, 64)), nil
}

// billScanPrompt is the shared prompt used by all LLM providers.
const billScanPrompt = `Analyze this restaurant bill image. Extract all item details including 'description', 'quantity', 'rate', and 'amount'. Also, extract the 'total_amount', 'serc_at_10_percent', 'state_gst_at_2_5_percent', 'central_gst_at_2_5_percent', 'round_off', and 'net_amount'. If available, also extract 'restaurant_name', 'address', 'bill_no', 'date', 'time', 'table_no', and 'covers'.

Format the output strictly as a JSON object. If a field is not found, omit it from the JSON. For items, if quantity or rate is missing, infer them if possible or set to null. Ensure numerical values are parsed correctly.

Example structure (do not include the example, just produce the data):
{
  "restaurant_name": "...",
  "bill_no": "...",
  "date": "...",
  "items": [
    {"description": "ITEM NAME", "quantity": 1, "rate": 100.00, "amount": 100.00},
    {"description": "ANOTHER ITEM", "quantity": 2, "rate": 50.00, "amount": 100.00}
  ],
  "total_amount": 200.00,
  "serc_at_10_percent": 20.00,
  "state_gst_at_2_5_percent": 5.00,
  "central_gst_at_2_5_percent": 5.00,
  "round_off": -0.02,
  "net_amount": 230.00
}

Important:
- Return ONLY valid JSON, with no text before or after it
- Do not use markdown code blocks`
