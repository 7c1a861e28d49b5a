package discrepancy

import (
	"sync"

	"github.com/BearBump/CarrierBox/internal/models"
)

// Matcher pairs line items arriving one at a time, in any order. Items wait
// until their counterpart with the same batch and tracking number shows up.
// Safe for concurrent use.
type Matcher struct {
	finders []Finder

	mu       sync.Mutex
	invoices map[matchKey][]LineItem
	charges  map[matchKey][]LineItem
	// completed pairs per key
	pairs map[matchKey]int
}

type matchKey struct {
	batchID        string
	trackingNumber string
}

func NewMatcher(finders ...Finder) *Matcher {
	if len(finders) == 0 {
		finders = DefaultFinders()
	}
	return &Matcher{
		finders:  finders,
		invoices: map[matchKey][]LineItem{},
		charges:  map[matchKey][]LineItem{},
		pairs:    map[matchKey]int{},
	}
}

// AddInvoice returns the discrepancies of the completed pair and true, or
// false when the invoice is now waiting for its charge.
func (m *Matcher) AddInvoice(batchID string, inv LineItem) ([]models.Discrepancy, bool) {
	k := matchKey{batchID, inv.TrackingNumber}
	m.mu.Lock()
	charge, ok := take(m.charges, k)
	if !ok {
		m.invoices[k] = append(m.invoices[k], inv)
		m.mu.Unlock()
		return nil, false
	}
	pair := m.nextPairLocked(k)
	m.mu.Unlock()

	return withBatch(compare(inv, charge, pair, m.finders), batchID), true
}

func (m *Matcher) AddCharge(batchID string, charge LineItem) ([]models.Discrepancy, bool) {
	k := matchKey{batchID, charge.TrackingNumber}
	m.mu.Lock()
	inv, ok := take(m.invoices, k)
	if !ok {
		m.charges[k] = append(m.charges[k], charge)
		m.mu.Unlock()
		return nil, false
	}
	pair := m.nextPairLocked(k)
	m.mu.Unlock()

	return withBatch(compare(inv, charge, pair, m.finders), batchID), true
}

func (m *Matcher) nextPairLocked(k matchKey) int {
	n := m.pairs[k]
	m.pairs[k] = n + 1
	return n
}

// Pending counts items still waiting for a counterpart.
func (m *Matcher) Pending() (invoices, charges int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.invoices {
		invoices += len(q)
	}
	for _, q := range m.charges {
		charges += len(q)
	}
	return invoices, charges
}

func take(waiting map[matchKey][]LineItem, k matchKey) (LineItem, bool) {
	q := waiting[k]
	if len(q) == 0 {
		return LineItem{}, false
	}
	if len(q) == 1 {
		delete(waiting, k)
	} else {
		waiting[k] = q[1:]
	}
	return q[0], true
}

func withBatch(ds []models.Discrepancy, batchID string) []models.Discrepancy {
	for i := range ds {
		ds[i].BatchID = batchID
	}
	return ds
}
