package llm

import (
	"context"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

// OrderItem is one extracted line item.
type OrderItem struct {
	Code        string  `json:"code"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	LineTotal   float64 `json:"line_total,omitempty"`
}

// OrderFields is the normalized candidate record we want from the structurer.
type OrderFields struct {
	PONumber             string      `json:"po_number"`
	Status               string      `json:"status,omitempty"`
	OrderDate            string      `json:"order_date"` // YYYY-MM-DD
	BuyerName            string      `json:"buyer_name"`
	BuyerEmail           string      `json:"buyer_email,omitempty"`
	DeliveryLocation     string      `json:"delivery_location,omitempty"`
	DeliveryInstructions string      `json:"delivery_instructions,omitempty"`
	Items                []OrderItem `json:"items"`
	GrossWeight          float64     `json:"gross_weight,omitempty"`
	NetWeight            float64     `json:"net_weight,omitempty"`
	Total                float64     `json:"total"`
	Notes                string      `json:"notes,omitempty"`
	ModelConfidence      float32     `json:"confidence,omitempty"` // optional (0..1)
}

// StructureRequest carries the extracted text plus hints for the structurer.
type StructureRequest struct {
	Text         string
	FilenameHint string
}

// StructureResult is the structurer's answer. Raw and Usage are best-effort
// populated even when Structure returns an error, so failures can carry them.
type StructureResult struct {
	Fields OrderFields
	Usage  *failure.TokenUsage
	Raw    []byte // raw JSON content as returned (post-sanitize when applied)
	Model  string
}

// Structurer is the capability the pipeline depends on for stage 3:
// extracted text -> candidate purchase-order record.
type Structurer interface {
	Structure(ctx context.Context, req StructureRequest) (StructureResult, error)
}
