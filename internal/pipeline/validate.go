package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
	"github.com/oluwaseun-a/po-tracker/internal/validation"
)

const historyUser = "ingestion-pipeline"

// validateAndNormalize is stage 4: it turns the candidate fields into a
// purchase order, normalizing derivable values and collecting blocking
// errors, warnings and notes. Warnings never block persistence.
func validateAndNormalize(fields llm.OrderFields, rules validation.Ruleset, now time.Time) (*entity.PurchaseOrder, *validation.Result) {
	result := &validation.Result{}

	po := &entity.PurchaseOrder{
		ID:       uuid.New(),
		PONumber: strings.TrimSpace(fields.PONumber),
		Buyer: entity.BuyerInfo{
			Name:  strings.TrimSpace(fields.BuyerName),
			Email: strings.TrimSpace(fields.BuyerEmail),
		},
		Delivery: entity.DeliveryInfo{
			Location:     strings.TrimSpace(fields.DeliveryLocation),
			Instructions: strings.TrimSpace(fields.DeliveryInstructions),
		},
		Weights: entity.WeightTotals{
			Gross: fields.GrossWeight,
			Net:   fields.NetWeight,
		},
		Total:     fields.Total,
		Revision:  1,
		Notes:     strings.TrimSpace(fields.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Status: unknown labels fall back to uploaded with a warning.
	status := constants.StatusUploaded
	if s := strings.TrimSpace(fields.Status); s != "" {
		if canon, ok := constants.CanonicalStatus(s); ok {
			status = canon
		} else {
			result.AddWarning("status", fmt.Sprintf("unknown status %q, defaulted to %s", s, constants.StatusUploaded))
		}
	}
	po.AppendHistory(status, historyUser, "created from uploaded document", now)

	// Line items: derive missing line totals, flag suspicious rows.
	for i, it := range fields.Items {
		item := entity.LineItem{
			Code:        strings.TrimSpace(it.Code),
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitCost:    it.UnitCost,
			LineTotal:   it.LineTotal,
		}
		field := fmt.Sprintf("items[%d]", i)
		if item.Code == "" {
			result.AddWarning(field+".code", "line item has no code")
		}
		if item.Quantity <= 0 {
			result.AddWarning(field+".quantity", "line item quantity is not positive")
		}
		if item.LineTotal == 0 && item.Quantity != 0 {
			item.LineTotal = round2(item.Quantity * item.UnitCost)
			result.AddNote(field+".lineTotal", "derived from quantity and unit cost")
		}
		po.Items = append(po.Items, item)
	}
	if len(po.Items) == 0 {
		result.AddWarning("items", "no line items extracted")
	}

	// Grand total: derive when absent, reconcile when present.
	if po.Total == 0 && len(po.Items) > 0 {
		po.Total = round2(po.ItemsTotal())
		result.AddNote("total", "derived from line-item totals")
	} else if len(po.Items) > 0 && !po.TotalReconciles(rules.MoneyTolerance) {
		result.AddError("total", fmt.Sprintf(
			"grand total %.2f does not reconcile with line-item sum %.2f (tolerance %.2f)",
			po.Total, po.ItemsTotal(), rules.MoneyTolerance,
		))
	}

	// Order date must be well-formed when present.
	if d := strings.TrimSpace(fields.OrderDate); d != "" {
		if t, err := parseOrderDate(d); err != nil {
			result.AddError("orderDate", fmt.Sprintf("malformed date %q, want YYYY-MM-DD", d))
		} else {
			po.OrderDate = t
		}
	}

	// Required fields from the configured ruleset.
	if rules.Requires("poNumber") && po.PONumber == "" {
		result.AddError("poNumber", "is required")
	}
	if rules.Requires("buyerInfo.name") && po.Buyer.Name == "" {
		result.AddError("buyerInfo.name", "is required")
	}
	if rules.Requires("buyerInfo.email") && po.Buyer.Email == "" {
		result.AddError("buyerInfo.email", "is required")
	}
	if rules.Requires("orderDate") && po.OrderDate.IsZero() && strings.TrimSpace(fields.OrderDate) == "" {
		result.AddError("orderDate", "is required")
	}
	if rules.Requires("deliveryInfo.location") && po.Delivery.Location == "" {
		result.AddError("deliveryInfo.location", "is required")
	}

	if po.Buyer.Email != "" && !strings.Contains(po.Buyer.Email, "@") {
		result.AddWarning("buyerInfo.email", fmt.Sprintf("%q does not look like an email address", po.Buyer.Email))
	}
	if po.Weights.Net > po.Weights.Gross && po.Weights.Gross > 0 {
		result.AddWarning("weights", "net weight exceeds gross weight")
	}

	return po, result
}

func parseOrderDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02", "02.01.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
