package discrepancy

import (
	"github.com/BearBump/CarrierBox/internal/models"
)

type Report struct {
	Discrepancies     []models.Discrepancy `json:"discrepancies"`
	Matched           int                  `json:"matched"`
	UnmatchedInvoices []LineItem           `json:"unmatchedInvoices"`
	UnmatchedCharges  []LineItem           `json:"unmatchedCharges"`
}

// Reconcile pairs invoices with charges by tracking number and runs finders
// over each pair. With no finders, DefaultFinders is used. When a tracking
// number repeats, lines are paired in input order; leftovers are unmatched.
func Reconcile(invoices, charges []LineItem, finders ...Finder) Report {
	if len(finders) == 0 {
		finders = DefaultFinders()
	}

	pending := make(map[string][]int, len(charges))
	for i, c := range charges {
		pending[c.TrackingNumber] = append(pending[c.TrackingNumber], i)
	}
	used := make([]bool, len(charges))
	pairs := make(map[string]int, len(invoices))

	rep := Report{
		Discrepancies:     []models.Discrepancy{},
		UnmatchedInvoices: []LineItem{},
		UnmatchedCharges:  []LineItem{},
	}
	for _, inv := range invoices {
		queue := pending[inv.TrackingNumber]
		if len(queue) == 0 {
			rep.UnmatchedInvoices = append(rep.UnmatchedInvoices, inv)
			continue
		}
		ci := queue[0]
		pending[inv.TrackingNumber] = queue[1:]
		used[ci] = true

		rep.Matched++
		rep.Discrepancies = append(rep.Discrepancies, compare(inv, charges[ci], pairs[inv.TrackingNumber], finders)...)
		pairs[inv.TrackingNumber]++
	}
	for i, c := range charges {
		if !used[i] {
			rep.UnmatchedCharges = append(rep.UnmatchedCharges, c)
		}
	}
	return rep
}
