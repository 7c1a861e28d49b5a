package discrepancy

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/BearBump/CarrierBox/internal/broker/messages"
	"github.com/pkg/errors"
)

// LineItem is a billing line on either side of the reconciliation.
// Amount is money, Weight is kilograms.
type LineItem struct {
	TrackingNumber string  `json:"trackingNumber"`
	Amount         float64 `json:"amount"`
	Weight         float64 `json:"weight"`
	Zone           string  `json:"zone"`
}

// ParseError reports a missing or mistyped field of a raw line item.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Field names of the two feeds. Carrier invoices prefix amount and weight
// with "billed"; internal charges don't.
var (
	invoiceFields = fieldNames{trackingNumber: "trackingNumber", amount: "billedAmount", weight: "billedWeight", zone: "zone"}
	chargeFields  = fieldNames{trackingNumber: "trackingNumber", amount: "amount", weight: "weight", zone: "zone"}
)

type fieldNames struct {
	trackingNumber, amount, weight, zone string
}

func ParseInvoiceItem(raw []byte) (LineItem, error) {
	return parseItem(raw, invoiceFields)
}

func ParseChargeItem(raw []byte) (LineItem, error) {
	return parseItem(raw, chargeFields)
}

// LoadInvoices reads a JSON array of invoice objects.
func LoadInvoices(r io.Reader) ([]LineItem, error) {
	return loadItems(r, ParseInvoiceItem)
}

// LoadCharges reads a JSON array of charge objects.
func LoadCharges(r io.Reader) ([]LineItem, error) {
	return loadItems(r, ParseChargeItem)
}

// FromMessage converts a line item consumed from kafka. Amount and weight
// arrive as decimal strings.
func FromMessage(m messages.LineItemReceived) (LineItem, error) {
	if m.Kind != messages.LineItemInvoice && m.Kind != messages.LineItemCharge {
		return LineItem{}, &ParseError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", m.Kind)}
	}
	if strings.TrimSpace(m.TrackingNumber) == "" {
		return LineItem{}, &ParseError{Field: "tracking_number", Reason: "required"}
	}
	amount, err := parseDecimal("amount", m.Amount)
	if err != nil {
		return LineItem{}, err
	}
	weight, err := parseDecimal("weight", m.Weight)
	if err != nil {
		return LineItem{}, err
	}
	return LineItem{TrackingNumber: m.TrackingNumber, Amount: amount, Weight: weight, Zone: m.Zone}, nil
}

func loadItems(r io.Reader, parse func([]byte) (LineItem, error)) ([]LineItem, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, errors.Wrap(err, "decode line items")
	}
	out := make([]LineItem, 0, len(raws))
	for i, raw := range raws {
		it, err := parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "line item %d", i)
		}
		out = append(out, it)
	}
	return out, nil
}

func parseItem(raw []byte, names fieldNames) (LineItem, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return LineItem{}, &ParseError{Field: "", Reason: "not a JSON object"}
	}

	var (
		it  LineItem
		err error
	)
	if it.TrackingNumber, err = stringField(obj, names.trackingNumber); err != nil {
		return LineItem{}, err
	}
	if it.TrackingNumber == "" {
		return LineItem{}, &ParseError{Field: names.trackingNumber, Reason: "required"}
	}
	if it.Amount, err = numberField(obj, names.amount); err != nil {
		return LineItem{}, err
	}
	if it.Weight, err = numberField(obj, names.weight); err != nil {
		return LineItem{}, err
	}
	if it.Zone, err = stringField(obj, names.zone); err != nil {
		return LineItem{}, err
	}
	return it, nil
}

func stringField(obj map[string]json.RawMessage, name string) (string, error) {
	raw, ok := obj[name]
	if !ok {
		return "", &ParseError{Field: name, Reason: "missing"}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ParseError{Field: name, Reason: "expected a string"}
	}
	return s, nil
}

// numberField accepts a JSON number or a decimal string.
func numberField(obj map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := obj[name]
	if !ok {
		return 0, &ParseError{Field: name, Reason: "missing"}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &ParseError{Field: name, Reason: "expected a number"}
	}
	return parseDecimal(name, n.String())
}

func parseDecimal(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}
