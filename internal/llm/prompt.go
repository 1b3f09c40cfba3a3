package llm

import (
	"strings"
)

// BuildSystemPrompt composes the system message with the status enum and
// strict-but-practical formatting rules.
func BuildSystemPrompt(allowedStatuses []string) string {
	var statusLine string
	if len(allowedStatuses) > 0 {
		statusLine = "If the document states an order status it MUST be exactly one of: " +
			strings.Join(allowedStatuses, ", ") + ". If uncertain, omit 'status'. "
	} else {
		statusLine = "If the document states an order status, include it as a short lowercase label. "
	}

	parts := []string{
		"You are a purchase-order parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		statusLine,
		"Extract every line item with its code, quantity and unit cost; include 'line_total' when printed.",
		"Put the document's grand total in 'total' as a number, never a string.",
		"Record shipment weights under 'gross_weight' and 'net_weight' when present.",
		"Copy delivery address into 'delivery_location' and any handling remarks into 'delivery_instructions'.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the extracted text plus a filename hint.
func BuildUserPrompt(req StructureRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Document text:\n")
	b.WriteString(req.Text)
	return b.String()
}
