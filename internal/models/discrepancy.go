package models

import "time"

const (
	DiscrepancyKindAmount = "amount"
	DiscrepancyKindWeight = "weight"
)

// Discrepancy is one mismatch between an invoice line and a charge line with
// the same tracking number. Pair counts the earlier pairs of that batch and
// tracking number, so repeated lines for one parcel stay distinct.
type Discrepancy struct {
	BatchID        string    `json:"batchId,omitempty"`
	TrackingNumber string    `json:"trackingNumber"`
	Pair           int       `json:"pair"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}
