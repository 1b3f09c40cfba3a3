package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (order_number -> po_number, grand_total -> total)
// - Drops null/empty optionals
// - Coerces string -> number for numeric fields
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("purchase_order_number", "po_number")
	renamed("order_number", "po_number")
	renamed("number", "po_number")
	renamed("grand_total", "total")
	renamed("total_amount", "total")
	renamed("lines", "items")
	renamed("line_items", "items")
	renamed("buyer", "buyer_name")
	renamed("email", "buyer_email")
	renamed("ship_to", "delivery_location")

	// 2) coerce numeric fields; drop null / "" optionals
	numberFields := []string{"total", "gross_weight", "net_weight", "confidence"}
	for _, k := range numberFields {
		coerceNumber(m, k, &dropped)
	}

	// 3) items: coerce per-element numerics and prune unknown keys
	if items, ok := m["items"].([]any); ok {
		itemAllowed := map[string]struct{}{
			"code": {}, "description": {}, "quantity": {}, "unit_cost": {}, "line_total": {},
		}
		itemRenames := map[string]string{
			"item_code": "code", "sku": "code", "price": "unit_cost",
			"unit_price": "unit_cost", "amount": "line_total", "qty": "quantity",
		}
		for i, raw := range items {
			it, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for from, to := range itemRenames {
				if v, ok := it[from]; ok {
					if _, exists := it[to]; !exists {
						it[to] = v
					}
					delete(it, from)
					dropped = append(dropped, fmt.Sprintf("items[%d].%s->%s", i, from, to))
				}
			}
			for _, k := range []string{"quantity", "unit_cost", "line_total"} {
				coerceNumber(it, k, &dropped)
			}
			for k := range maps.Clone(it) {
				if _, ok := itemAllowed[k]; !ok {
					delete(it, k)
					dropped = append(dropped, fmt.Sprintf("items[%d].%s(unknown)", i, k))
				}
			}
		}
	}

	// 4) normalize the status label
	if v, ok := m["status"].(string); ok {
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "" {
			delete(m, "status")
			dropped = append(dropped, "status(empty)")
		} else {
			m["status"] = s
		}
	}

	// 5) remove unknown top-level keys
	allowed := map[string]struct{}{
		"po_number": {}, "status": {}, "order_date": {}, "buyer_name": {},
		"buyer_email": {}, "delivery_location": {}, "delivery_instructions": {},
		"items": {}, "gross_weight": {}, "net_weight": {}, "total": {},
		"notes": {}, "confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 6) trim obvious strings
	trimKeys := []string{
		"po_number", "order_date", "buyer_name", "buyer_email",
		"delivery_location", "delivery_instructions", "notes",
	}
	for _, k := range trimKeys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.structure.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// coerceNumber rewrites m[k] into a float64 when it arrived as a numeric
// string, and drops null / unparseable values.
func coerceNumber(m map[string]any, k string, dropped *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch t := v.(type) {
	case float64:
		// already fine
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		s = strings.TrimPrefix(s, "$")
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, k)
			*dropped = append(*dropped, k+"(empty)")
			return
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			delete(m, k)
			*dropped = append(*dropped, k+"(unparseable)")
			return
		}
		m[k] = f
		*dropped = append(*dropped, k+"(coerced)")
	case nil:
		delete(m, k)
		*dropped = append(*dropped, k+"(null)")
	default:
		delete(m, k)
		*dropped = append(*dropped, k+"(type)")
	}
}
