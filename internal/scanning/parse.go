package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// billFields are the top-level keys the core interprets; everything else
// the model returns is carried through untouched in BillData.Extra.
var billFields = map[string]bool{
	"items":                      true,
	"total_amount":               true,
	"serc_at_10_percent":         true,
	"state_gst_at_2_5_percent":   true,
	"central_gst_at_2_5_percent": true,
	"round_off":                  true,
	"net_amount":                 true,
}

// parseBillJSON parses the JSON response from a vision model into a
// BillData. Models wrap output in markdown fences or chat filler often
// enough that the parser slices from the first '{' to the last '}' before
// decoding.
func parseBillJSON(text string) (*BillData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data BillData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Second pass for the pass-through fields.
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		for key, value := range raw {
			if billFields[key] {
				continue
			}
			if data.Extra == nil {
				data.Extra = make(map[string]any)
			}
			data.Extra[key] = value
		}
	}

	return &data, nil
}
