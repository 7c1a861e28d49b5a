package messages

// LineItemKind tells which side of the reconciliation a line item belongs to.
type LineItemKind string

const (
	LineItemInvoice LineItemKind = "invoice"
	LineItemCharge  LineItemKind = "charge"
)

// LineItemReceived is one billing line consumed by the discrepancy worker.
// Amount and weight are decimal strings, parsed by discrepancy.FromMessage.
type LineItemReceived struct {
	Kind           LineItemKind `json:"kind"`
	BatchID        string       `json:"batch_id"`
	TrackingNumber string       `json:"tracking_number"`
	Amount         string       `json:"amount"`
	Weight         string       `json:"weight"`
	Zone           string       `json:"zone,omitempty"`
}
