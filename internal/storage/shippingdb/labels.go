package shippingdb

import (
	"bytes"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/google/uuid"
)

// AddLabel stores a label under a new id. ShipmentID is not checked against
// the shipment store; callers look the shipment up first.
func (s *Store) AddLabel(l models.ShipmentLabel) models.ShipmentLabel {
	id := uuid.New()
	l.ID = id.String()
	l.LabelData = cloneData(l.LabelData)

	s.mu.Lock()
	s.labels[id] = l
	s.labelOrder = append(s.labelOrder, id)
	s.mu.Unlock()

	l.LabelData = cloneData(l.LabelData)
	return l
}

// ListLabels returns copies of every label attached to sh, in insertion order.
func (s *Store) ListLabels(sh models.Shipment) []models.ShipmentLabel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ShipmentLabel{}
	for _, id := range s.labelOrder {
		l := s.labels[id]
		if l.ShipmentID != sh.ID {
			continue
		}
		l.LabelData = cloneData(l.LabelData)
		out = append(out, l)
	}
	return out
}

func cloneData(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return bytes.Clone(b)
}
