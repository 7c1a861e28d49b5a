package discrepancy

import (
	"fmt"
	"strconv"

	"github.com/BearBump/CarrierBox/internal/models"
)

// Finder compares a matched invoice/charge pair. Find returns "" when the
// pair agrees on whatever the finder checks.
type Finder interface {
	Kind() string
	Find(invoice, charge LineItem) string
}

type AmountFinder struct{}

func (AmountFinder) Kind() string { return models.DiscrepancyKindAmount }

func (AmountFinder) Find(invoice, charge LineItem) string {
	if invoice.Amount == charge.Amount {
		return ""
	}
	return fmt.Sprintf("Amount mismatch for Tracking Number %s: Invoice(%s) vs Charge(%s)",
		invoice.TrackingNumber, formatNumber(invoice.Amount), formatNumber(charge.Amount))
}

type WeightFinder struct{}

func (WeightFinder) Kind() string { return models.DiscrepancyKindWeight }

func (WeightFinder) Find(invoice, charge LineItem) string {
	if invoice.Weight == charge.Weight {
		return ""
	}
	return fmt.Sprintf("Weight mismatch for Tracking Number %s: Invoice(%s) vs Charge(%s)",
		invoice.TrackingNumber, formatNumber(invoice.Weight), formatNumber(charge.Weight))
}

func DefaultFinders() []Finder {
	return []Finder{AmountFinder{}, WeightFinder{}}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// compare runs every finder over one pair, in finder order.
func compare(invoice, charge LineItem, pair int, finders []Finder) []models.Discrepancy {
	var out []models.Discrepancy
	for _, f := range finders {
		if msg := f.Find(invoice, charge); msg != "" {
			out = append(out, models.Discrepancy{
				TrackingNumber: invoice.TrackingNumber,
				Pair:           pair,
				Kind:           f.Kind(),
				Message:        msg,
			})
		}
	}
	return out
}
