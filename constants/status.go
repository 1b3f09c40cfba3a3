package constants

import "strings"

// POStatus is the canonical lifecycle status for a purchase order.
type POStatus string

// Stable values (store these exact strings).
const (
	StatusUploaded  POStatus = "uploaded"  // record created from an ingested document
	StatusConfirmed POStatus = "confirmed" // supplier confirmed the order
	StatusShipped   POStatus = "shipped"   // goods in transit
	StatusInvoiced  POStatus = "invoiced"  // invoice received
	StatusDelivered POStatus = "delivered" // goods received
	StatusCancelled POStatus = "cancelled" // terminal
)

var allStatuses = []POStatus{
	StatusUploaded,
	StatusConfirmed,
	StatusShipped,
	StatusInvoiced,
	StatusDelivered,
	StatusCancelled,
}

// Statuses returns the fixed status set as strings, in lifecycle order.
func Statuses() []string {
	out := make([]string, len(allStatuses))
	for i, s := range allStatuses {
		out[i] = string(s)
	}
	return out
}

// CanonicalStatus maps a free-form label to a known status.
// Returns false when the label is not in the fixed set.
func CanonicalStatus(label string) (POStatus, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, s := range allStatuses {
		if string(s) == l {
			return s, true
		}
	}
	return "", false
}
