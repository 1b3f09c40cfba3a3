package llm

// BuildOrderJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it
// locally to validate. Field presence is deliberately lax: missing required
// business fields are the validate stage's call, not a model-transport fault.
func BuildOrderJSONSchema(allowedStatuses []string) map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"code":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "number", "minimum": 0},
			"unit_cost":   map[string]any{"type": "number"},
			"line_total":  map[string]any{"type": "number"},
		},
		"required": []string{"code", "quantity", "unit_cost"},
	}

	props := map[string]any{
		"po_number":             map[string]any{"type": "string"},
		"status":                map[string]any{"type": "string"},
		"order_date":            map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"buyer_name":            map[string]any{"type": "string"},
		"buyer_email":           map[string]any{"type": "string"},
		"delivery_location":     map[string]any{"type": "string"},
		"delivery_instructions": map[string]any{"type": "string"},
		"items":                 map[string]any{"type": "array", "items": item},
		"gross_weight":          map[string]any{"type": "number", "minimum": 0},
		"net_weight":            map[string]any{"type": "number", "minimum": 0},
		"total":                 map[string]any{"type": "number"},
		"notes":                 map[string]any{"type": "string"},
		"confidence":            map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	// Constrain status if the lifecycle set is provided.
	if len(allowedStatuses) > 0 {
		props["status"] = map[string]any{
			"type": "string",
			"enum": allowedStatuses,
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"items"},
	}
}
