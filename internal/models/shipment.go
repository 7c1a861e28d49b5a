package models

import "time"

// Label formats accepted by the label store.
const (
	LabelFormatPDF = "PDF"
	LabelFormatPNG = "PNG"
)

type Account struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
}

// Credential is a plaintext username/password pair (demo seed data only).
type Credential struct {
	UserName string
	Password string
}

// TokenInfo describes an issued bearer token.
type TokenInfo struct {
	Token  string
	Expiry time.Time
}

// InvalidTokenInfo signals a failed authentication. It compares unequal (==) to any issued token.
var InvalidTokenInfo = TokenInfo{}

func (t TokenInfo) IsValid(now time.Time) bool {
	return t.Token != "" && t.Expiry.After(now)
}

type Shipment struct {
	ID             string  `json:"id"`
	Carrier        string  `json:"carrier"`
	TrackingNumber string  `json:"trackingNumber"`
	Amount         float64 `json:"amount"` // weight in kg
	Zone           string  `json:"zone"`
}

type ShipmentLabel struct {
	ID         string `json:"id"`
	ShipmentID string `json:"shipmentId"`
	LabelData  []byte `json:"labelData"`
	Format     string `json:"format"`
}
