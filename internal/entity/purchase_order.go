package entity

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/oluwaseun-a/po-tracker/constants"
)

// BuyerInfo identifies the purchasing party on an order.
type BuyerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DeliveryInfo holds the destination and any handling instructions.
type DeliveryInfo struct {
	Location     string `json:"location"`
	Instructions string `json:"instructions,omitempty"`
}

// LineItem is a single ordered line on a purchase order.
type LineItem struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	LineTotal   float64 `json:"line_total"`
}

// WeightTotals aggregates shipment weight across all line items.
type WeightTotals struct {
	Gross float64 `json:"gross"`
	Net   float64 `json:"net"`
}

// StatusChange is one entry in an order's append-only status history.
type StatusChange struct {
	Status    constants.POStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	User      string             `json:"user"`
	Notes     string             `json:"notes,omitempty"`
}

// PurchaseOrder is the structured record produced by the ingestion pipeline
// and consumed by the persistence layer.
//
// Invariants: Total equals the sum of line totals within tolerance; PONumber
// never changes once assigned; Revision increases monotonically on any
// structural edit (the repository enforces the latter two).
type PurchaseOrder struct {
	ID        uuid.UUID          `json:"id"`
	PONumber  string             `json:"po_number"`
	Status    constants.POStatus `json:"status"`
	OrderDate time.Time          `json:"order_date"`
	Buyer     BuyerInfo          `json:"buyer"`
	Delivery  DeliveryInfo       `json:"delivery"`
	Items     []LineItem         `json:"items"`
	Weights   WeightTotals       `json:"weights"`
	Total     float64            `json:"total"`
	Revision  int                `json:"revision"`
	Notes     string             `json:"notes,omitempty"`
	History   []StatusChange     `json:"history"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ItemsTotal sums the line totals.
func (po *PurchaseOrder) ItemsTotal() float64 {
	var sum float64
	for _, it := range po.Items {
		sum += it.LineTotal
	}
	return sum
}

// TotalReconciles reports whether the grand total matches the line-item sum
// within tolerance.
func (po *PurchaseOrder) TotalReconciles(tolerance float64) bool {
	return math.Abs(po.Total-po.ItemsTotal()) <= tolerance
}

// AppendHistory records a status transition without rewriting earlier entries.
func (po *PurchaseOrder) AppendHistory(status constants.POStatus, user, notes string, at time.Time) {
	po.Status = status
	po.History = append(po.History, StatusChange{
		Status:    status,
		Timestamp: at,
		User:      user,
		Notes:     notes,
	})
}
