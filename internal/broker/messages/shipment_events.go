package messages

import "time"

// ShipmentCreated is published after a shipment was added to the store.
type ShipmentCreated struct {
	ShipmentID     string    `json:"shipment_id"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	Amount         float64   `json:"amount"`
	Zone           string    `json:"zone"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// LabelCreated carries label metadata only; the label bytes stay in the store.
type LabelCreated struct {
	LabelID    string    `json:"label_id"`
	ShipmentID string    `json:"shipment_id"`
	Format     string    `json:"format"`
	Size       int       `json:"size"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}
