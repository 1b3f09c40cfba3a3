package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

// RuleStructurer is the deterministic stage-3 substitute: a key/value and
// line-table parser for documents produced by known templates. No network,
// no token cost, selected at construction time via feature flag.
type RuleStructurer struct {
	logger *slog.Logger
}

func NewRuleStructurer(logger *slog.Logger) *RuleStructurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleStructurer{logger: logger}
}

func (r *RuleStructurer) Structure(_ context.Context, req StructureRequest) (StructureResult, error) {
	var (
		fields     OrderFields
		recognized int
	)

	for _, line := range strings.Split(req.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, val, ok := splitHeader(line); ok {
			if applyHeader(&fields, key, val) {
				recognized++
				continue
			}
		}
		if item, ok := parseItemLine(line); ok {
			fields.Items = append(fields.Items, item)
			recognized++
		}
	}

	if recognized == 0 {
		r.logger.Warn("llm.rules.no_structure", "text_len", len(req.Text))
		return StructureResult{Model: "rules"}, failure.Parsing("no recognizable purchase-order structure", req.Text)
	}

	// If totals were not printed, derive them from the lines.
	if fields.Total == 0 {
		for _, it := range fields.Items {
			if it.LineTotal != 0 {
				fields.Total += it.LineTotal
			} else {
				fields.Total += it.Quantity * it.UnitCost
			}
		}
	}

	raw, _ := json.Marshal(fields)
	r.logger.Debug("llm.rules.ok", "recognized", recognized, "items", len(fields.Items))
	return StructureResult{Fields: fields, Raw: raw, Model: "rules"}, nil
}

func splitHeader(line string) (key, val string, ok bool) {
	i := strings.Index(line, ":")
	if i <= 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:i]))
	key = strings.ReplaceAll(key, " ", "_")
	val = strings.TrimSpace(line[i+1:])
	return key, val, val != ""
}

func applyHeader(f *OrderFields, key, val string) bool {
	switch key {
	case "po_number", "po", "purchase_order", "order_number":
		f.PONumber = val
	case "status":
		f.Status = strings.ToLower(val)
	case "order_date", "date":
		f.OrderDate = val
	case "buyer", "buyer_name":
		f.BuyerName = val
	case "email", "buyer_email", "contact":
		f.BuyerEmail = val
	case "deliver_to", "delivery_location", "ship_to", "location":
		f.DeliveryLocation = val
	case "instructions", "delivery_instructions":
		f.DeliveryInstructions = val
	case "notes":
		f.Notes = val
	case "total", "grand_total":
		if n, ok := parseNumber(val); ok {
			f.Total = n
		} else {
			return false
		}
	case "gross_weight":
		if n, ok := parseNumber(val); ok {
			f.GrossWeight = n
		} else {
			return false
		}
	case "net_weight":
		if n, ok := parseNumber(val); ok {
			f.NetWeight = n
		} else {
			return false
		}
	default:
		return false
	}
	return true
}

// parseItemLine accepts pipe-separated rows:
//
//	CODE | description | qty | unit cost [| line total]
func parseItemLine(line string) (OrderItem, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return OrderItem{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	qty, okQ := parseNumber(parts[2])
	cost, okC := parseNumber(parts[3])
	if parts[0] == "" || !okQ || !okC {
		return OrderItem{}, false
	}
	item := OrderItem{
		Code:        parts[0],
		Description: parts[1],
		Quantity:    qty,
		UnitCost:    cost,
	}
	if len(parts) >= 5 {
		if lt, ok := parseNumber(parts[4]); ok {
			item.LineTotal = lt
		}
	}
	if item.LineTotal == 0 {
		item.LineTotal = qty * cost
	}
	return item, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
